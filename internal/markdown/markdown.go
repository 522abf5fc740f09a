// Package markdown renders note markup to HTML.
package markdown

import (
	"bytes"
	"context"
	_ "embed"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// ResourceScheme prefixes links to note attachments (":/<resource id>").
const ResourceScheme = ":/"

//go:embed assets/markdown.css
var stylesheet []byte

// StylesheetPath is the asset path of the renderer stylesheet.
const StylesheetPath = "markdown.css"

// Asset is a static file the rendered HTML depends on.
type Asset struct {
	Path    string // relative to the renderer asset directory
	Content []byte
}

// IsStylesheet reports whether the asset should be linked as CSS.
func (a Asset) IsStylesheet() bool { return strings.HasSuffix(a.Path, ".css") }

// Result is the rendered form of one markdown document.
type Result struct {
	HTML   string
	Assets []Asset
}

// Renderer turns markdown into HTML.
type Renderer interface {
	Render(ctx context.Context, md string) (Result, error)
}

// Option configures a Goldmark renderer.
type Option func(*Goldmark)

// WithResourceURL maps attachment ids to published URLs.
func WithResourceURL(fn func(id string) string) Option {
	return func(g *Goldmark) { g.resourceURL = fn }
}

// WithHardWraps renders single newlines as line breaks, the way note editors show them.
func WithHardWraps() Option {
	return func(g *Goldmark) { g.hardWraps = true }
}

// Goldmark renders GitHub flavoured markdown.
type Goldmark struct {
	md          goldmark.Markdown
	resourceURL func(string) string
	hardWraps   bool
}

// NewGoldmark creates a renderer.
func NewGoldmark(opts ...Option) *Goldmark {
	g := &Goldmark{}
	for _, o := range opts {
		o(g)
	}
	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(&linkTransformer{resourceURL: g.resourceURL}, 100)),
		),
	}
	if g.hardWraps {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(gmhtml.WithHardWraps()))
	}
	g.md = goldmark.New(rendererOpts...)
	return g
}

// Render implements Renderer. The HTML is wrapped in a .markdown-body element styled
// by the returned stylesheet asset.
func (g *Goldmark) Render(ctx context.Context, md string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	var buf bytes.Buffer
	buf.WriteString(`<div class="markdown-body">`)
	if err := g.md.Convert([]byte(md), &buf); err != nil {
		return Result{}, err
	}
	buf.WriteString(`</div>`)
	return Result{
		HTML:   buf.String(),
		Assets: []Asset{{Path: StylesheetPath, Content: stylesheet}},
	}, nil
}

// linkTransformer rewrites attachment links and opens external links in a new tab.
type linkTransformer struct {
	resourceURL func(string) string
}

func (t *linkTransformer) Transform(node *gmast.Document, reader text.Reader, _ parser.Context) {
	_ = gmast.Walk(node, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch link := n.(type) {
		case *gmast.Link:
			link.Destination = t.rewrite(link.Destination)
			if isExternal(link.Destination) {
				link.SetAttributeString("target", []byte("_blank"))
				link.SetAttributeString("rel", []byte("noopener noreferrer"))
			}
		case *gmast.Image:
			link.Destination = t.rewrite(link.Destination)
		case *gmast.AutoLink:
			if link.AutoLinkType == gmast.AutoLinkURL && isExternal(link.URL(reader.Source())) {
				link.SetAttributeString("target", []byte("_blank"))
				link.SetAttributeString("rel", []byte("noopener noreferrer"))
			}
		}
		return gmast.WalkContinue, nil
	})
}

func (t *linkTransformer) rewrite(dest []byte) []byte {
	id, ok := ResourceID(string(dest))
	if !ok || t.resourceURL == nil {
		return dest
	}
	return []byte(t.resourceURL(id))
}

// ResourceID returns the attachment id of a ":/<id>" destination.
func ResourceID(dest string) (string, bool) {
	if !strings.HasPrefix(dest, ResourceScheme) {
		return "", false
	}
	id := strings.TrimPrefix(dest, ResourceScheme)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", false
	}
	return id, true
}

func isExternal(dest []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(dest)))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}
