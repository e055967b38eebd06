// Package render turns section content into HTML previews.
package render

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/cache"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/theme"
	"github.com/debemdeboas/pages-admin/internal/util"
)

const (
	RendererClassic = "classic"
	RendererMmark   = "mmark"
)

var renderLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

var regexCallout = regexp.MustCompile(`&lt;&lt;(\d+)&gt;&gt;`)

func HighlightCode(code, language, highlightTheme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := theme.GetFormatter().Format(&buf, styles.Get(highlightTheme), iterator); err != nil {
		return code
	}

	res := html.UnescapeString(buf.String())
	return regexCallout.ReplaceAllString(res, "<span class=\"callout\">$1</span>")
}

func codeBlockHook(highlightTheme string) func(io.Writer, ast.Node, bool) (ast.WalkStatus, bool) {
	return func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
		code, ok := node.(*ast.CodeBlock)
		if !ok || !entering {
			return ast.GoToNext, false
		}
		var lang string
		if info := code.Info; info != nil {
			lang = string(info)
		}
		fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", HighlightCode(string(code.Literal), lang, highlightTheme))
		return ast.GoToNext, true
	}
}

// RenderMarkdown renders md with the renderer named in the theme config.
func RenderMarkdown(md []byte, highlightTheme string, arabic bool) []byte {
	switch config.AppConfig.Theme.MarkdownRenderer {
	case RendererMmark:
		return RenderMarkdownMmark(md, highlightTheme, arabic)
	default:
		return RenderMarkdownClassic(md, highlightTheme)
	}
}

func RenderMarkdownClassic(md []byte, highlightTheme string) []byte {
	hook := codeBlockHook(highlightTheme)
	opts := md_html.RendererOptions{
		// Section content is operator-written, but never trust raw HTML in a preview.
		Flags: md_html.CommonFlags | md_html.HrefTargetBlank | md_html.SkipHTML,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if callout, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, "<span class=\"callout\">%s</span>", callout.ID)
				return ast.GoToNext, true
			}
			return hook(w, node, entering)
		},
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.DefinitionLists |
			parser.AutoHeadingIDs | parser.OrderedListStart | parser.NonBlockingSpace,
	).Parse(markdown.NormalizeNewlines(md))
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func RenderMarkdownMmark(md []byte, highlightTheme string, arabic bool) []byte {
	md = markdown.NormalizeNewlines(md)
	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)
	p.Opts = parser.Options{
		ParserHook: mparser.Hook,
		Flags:      parser.FlagsNone,
	}
	doc := markdown.Parse(md, p)

	language := "en"
	if arabic {
		language = "ar"
	}
	mhtmlOpts := mhtml.RendererOptions{Language: lang.New(language)}

	hook := codeBlockHook(highlightTheme)
	opts := md_html.RendererOptions{
		Flags: md_html.CommonFlags | md_html.SkipHTML,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if status, handled := hook(w, node, entering); handled {
				return status, true
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
	}
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

// Preview wraps rendered content in a container that carries the section's
// language and text direction.
func Preview(content []byte, highlightTheme string, arabic bool) []byte {
	body := RenderMarkdown(content, highlightTheme, arabic)

	var buf bytes.Buffer
	if arabic {
		buf.WriteString(`<div class="section-preview" dir="rtl" lang="ar">`)
	} else {
		buf.WriteString(`<div class="section-preview" dir="ltr" lang="en">`)
	}
	buf.Write(body)
	buf.WriteString(`</div>`)
	return buf.Bytes()
}

var previewMu sync.Mutex

// PreviewCached is Preview memoised on the content hash, syntax theme, renderer and direction.
func PreviewCached(content []byte, highlightTheme string, arabic bool) []byte {
	key := cache.PreviewKey{
		ContentHash: util.ContentHash(content),
		SyntaxTheme: highlightTheme,
		Renderer:    config.AppConfig.Theme.MarkdownRenderer,
		RTL:         arabic,
	}
	if out, ok := cache.GetPreview(key); ok {
		renderLogger.Debug().Str("contentHash", key.ContentHash).Msg("Cache hit for preview")
		return out
	}

	previewMu.Lock()
	defer previewMu.Unlock()
	if out, ok := cache.GetPreview(key); ok {
		return out
	}
	renderLogger.Debug().Str("contentHash", key.ContentHash).Msg("Cache miss for preview")
	out := Preview(content, highlightTheme, arabic)
	cache.SetPreview(key, out)
	return out
}
