package cache

import "html/template"

var syntaxCSS = NewCache[string, template.CSS]()

// SyntaxCSS returns the stylesheet of a chroma theme, generating it on first use.
func SyntaxCSS(theme string, generate func() template.CSS) template.CSS {
	if css, ok := syntaxCSS.Get(theme); ok {
		return css
	}
	css := generate()
	syntaxCSS.Set(theme, css)
	return css
}
