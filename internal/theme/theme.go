// Package theme loads theme bundles: per-page field schemas, site fields, templates
// and static assets. At most one theme is active at a time (see Manager).
package theme

import (
	"html/template"
	"io/fs"
	"slices"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/field"
)

// Reserved page names.
const (
	PageIndex   = "index"
	PageArticle = "article"
)

// Theme is a loaded, immutable theme bundle.
type Theme struct {
	Name        string
	Title       string
	Version     string
	Description string
	SiteFields  []field.Field
	Pages       map[string][]field.Field
	PageOrder   []string // declaration order; always contains index and article
	Templates   *template.Template
	Assets      fs.FS // nil when the bundle ships no assets
	Builtin     bool
}

// Info summarizes an installed theme for selection UIs.
type Info struct {
	Name    string
	Title   string
	Version string
	Builtin bool
}

// PageFields returns the theme-declared fields of a page (nil for undeclared pages).
func (t *Theme) PageFields(page string) []field.Field {
	if t == nil {
		return nil
	}
	return slices.Clone(t.Pages[page])
}

// PageNames returns every page the theme renders, index first.
func (t *Theme) PageNames() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.PageOrder)
}

// TemplateName is the template a page is rendered with.
func TemplateName(page string) string { return page + ".html" }

// HasTemplate reports whether the bundle ships a template for page.
func (t *Theme) HasTemplate(page string) bool {
	return t != nil && t.Templates != nil && t.Templates.Lookup(TemplateName(page)) != nil
}

// Info returns the selection summary of t.
func (t *Theme) Info() Info {
	return Info{Name: t.Name, Title: t.Title, Version: t.Version, Builtin: t.Builtin}
}
