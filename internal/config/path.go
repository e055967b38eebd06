package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticUrlPath  = "/" + StaticLocalDir + "/"

	TemplatesLocalDir = "templates"

	TemplateLayout        = "layout.html"
	TemplateLogin         = "login.html"
	TemplateDashboard     = "dashboard.html"
	TemplatePageEditor    = "page_editor.html"
	TemplateSectionEditor = "section_editor.html"
	TemplatePagesPartial  = "pages_list.html"

	TemplateSectionsPartial = "sections_list.html"
	TemplateImagesPartial   = "section_images.html"
)

// NewRecordID marks a record that does not exist on the backend yet.
const NewRecordID = "new"
