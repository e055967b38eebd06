// Package routes defines HTTP route constants for the console.
package routes

import "net/url"

const (
	// Static and assets
	RobotsPath     = "/robots.txt"
	ThemeToggle    = "/theme/toggle"
	SyntaxThemeSet = "/syntax-theme/set"
	SyntaxThemeGet = "/syntax-theme/{theme}"
	MetricsPath    = "/metrics"

	// SSE
	SSEPath = "/sse"

	// Root (pages dashboard)
	RootPath = "/"

	// Pages list
	PagesPartial = "/partials/pages"
	PagesReorder = "/api/pages/reorder"
	PageDelete   = "/api/pages/{id}"

	// Page editor
	PageEditor = "/pages/{id}"

	// Sections of a page
	SectionsPartial = "/partials/pages/{pageId}/sections"
	SectionsReorder = "/api/pages/{pageId}/sections/reorder"
	SectionDelete   = "/api/pages/{pageId}/sections/{sectionId}"

	// Section editor
	SectionEditor  = "/pages/{pageId}/sections/{sectionId}"
	SectionPreview = "/partials/section/preview"

	// Draft images
	DraftImages      = "/drafts/{draft}/images"
	DraftImageDelete = "/drafts/{draft}/images/{index}/delete"

	// Auth routes
	AuthLogin  = "/auth/login"
	AuthLogout = "/auth/logout"
)

func esc(s string) string { return url.PathEscape(s) }

func PageEditorURL(id string) string { return "/pages/" + esc(id) }

func SectionEditorURL(pageID, sectionID string) string {
	return "/pages/" + esc(pageID) + "/sections/" + esc(sectionID)
}

func SectionsPartialURL(pageID string) string { return "/partials/pages/" + esc(pageID) + "/sections" }

func SectionsReorderURL(pageID string) string {
	return "/api/pages/" + esc(pageID) + "/sections/reorder"
}

func DraftImagesURL(draft string) string { return "/drafts/" + esc(draft) + "/images" }
