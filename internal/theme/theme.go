// Package theme handles the console's light/dark theme and the chroma CSS for content previews.
package theme

import (
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/debemdeboas/pages-admin/internal/cache"
	"github.com/debemdeboas/pages-admin/internal/config"
)

func GetThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieTheme); err == nil {
		if cookie.Value == config.LightTheme || cookie.Value == config.DarkTheme {
			return cookie.Value
		}
	}
	return config.AppConfig.Theme.Default
}

// Opposite returns the theme a toggle switches to.
func Opposite(theme string) string {
	if theme == config.DarkTheme {
		return config.LightTheme
	}
	return config.DarkTheme
}

func GetDefaultSyntaxTheme(theme string) string {
	if theme == config.LightTheme {
		return config.AppConfig.Theme.SyntaxLight
	}
	return config.AppConfig.Theme.SyntaxDark
}

func GetSyntaxThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil && IsSyntaxTheme(cookie.Value) {
		return cookie.Value
	}
	return GetDefaultSyntaxTheme(GetThemeFromRequest(r))
}

func GetSyntaxThemes() []string {
	styleNames := styles.Names()
	slices.Sort(styleNames)
	return styleNames
}

func IsSyntaxTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

func GetFormatter() *html.Formatter {
	return html.New(
		html.WithClasses(true),
		html.TabWidth(4),
		html.WithLineNumbers(true),
		html.WrapLongLines(true),
	)
}

func GenerateSyntaxCSS(theme string) template.CSS {
	return cache.SyntaxCSS(theme, func() template.CSS {
		var buf strings.Builder
		style := styles.Get(theme)

		bg := style.Get(chroma.Background)
		if !bg.Colour.IsSet() {
			// Light backgrounds without a text colour get dark text.
			luminance := (0.299*float64(bg.Background.Red()) +
				0.587*float64(bg.Background.Green()) +
				0.114*float64(bg.Background.Blue())) / 255
			if luminance > 0.5 {
				buf.WriteString(".chroma { color: #181818; }\n")
			}
		}

		GetFormatter().WriteCSS(&buf, style)
		return template.CSS(buf.String())
	})
}

func GetThemeIcon(theme string) string {
	if theme == config.LightTheme {
		return config.DarkThemeIcon
	}
	return config.LightThemeIcon
}
