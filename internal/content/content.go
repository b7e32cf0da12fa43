// Package content turns author input into the exact markup stored for a site.
package content

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlRenderer "github.com/yuin/goldmark/renderer/html"
)

// DefaultTemplate is the starter page offered to new authors.
const DefaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>My Site</title>
</head>
<body>
    <h1>Hello, World!</h1>
    <p>This is my first website.</p>
</body>
</html>`

// Options selects the transformations applied by Prepare.
type Options struct {
	// Markdown renders the input as markdown into a standalone HTML document.
	Markdown bool
	// Minify compacts the resulting HTML, inline CSS and JS.
	Minify bool
}

// Preparer holds the configured markdown and minify pipelines; it is safe for concurrent use.
type Preparer struct {
	md goldmark.Markdown
	m  *minify.M
}

// NewPreparer builds the markdown renderer (GFM, front matter, inline-styled highlighting)
// and the HTML minifier.
func NewPreparer() *Preparer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(chromahtml.WithLineNumbers(false)),
			),
			meta.Meta,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			htmlRenderer.WithUnsafe(),
		),
	)

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)

	return &Preparer{md: md, m: m}
}

// Prepare applies opts to raw and returns the markup to store.
// Blank input is returned untouched so the registry can reject it.
func (p *Preparer) Prepare(raw string, opts Options) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	out := raw
	if opts.Markdown {
		rendered, err := p.renderMarkdown(raw)
		if err != nil {
			return "", err
		}
		out = rendered
	}
	if opts.Minify {
		minified, err := p.m.String("text/html", out)
		if err != nil {
			return "", fmt.Errorf("minify: %w", err)
		}
		out = minified
	}
	return out, nil
}

func (p *Preparer) renderMarkdown(src string) (string, error) {
	var body bytes.Buffer
	pctx := parser.NewContext()
	if err := p.md.Convert([]byte(src), &body, parser.WithContext(pctx)); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	title := "Untitled"
	if v, ok := meta.Get(pctx)["title"]; ok {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			title = s
		}
	}

	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	doc.WriteString("<meta charset=\"utf-8\">\n")
	doc.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(title))
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}
