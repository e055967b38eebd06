package model

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/theme"
)

// PageData is the common header data every console template receives.
type PageData struct {
	SiteName string

	PageURL string

	Theme string

	SyntaxCSS    template.CSS
	SyntaxTheme  string
	SyntaxThemes []string

	// Error is the banner shown above the content, empty when there is nothing to report.
	Error string

	LoggedIn bool
}

func NewPageData(r *http.Request) *PageData {
	syntaxTheme := theme.GetSyntaxThemeFromRequest(r)
	return &PageData{
		SiteName:     config.AppConfig.Site.Name,
		PageURL:      r.URL.Path,
		Theme:        theme.GetThemeFromRequest(r),
		SyntaxTheme:  syntaxTheme,
		SyntaxThemes: theme.GetSyntaxThemes(),
		SyntaxCSS:    theme.GenerateSyntaxCSS(syntaxTheme),
	}
}

func (pd *PageData) IsEditor() bool {
	return strings.HasPrefix(pd.PageURL, "/pages/")
}
