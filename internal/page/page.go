// Package page merges predefined fields, theme-declared fields and persisted values
// into one editable unit.
package page

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/field"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

// Predefined field names.
const (
	FieldURL        = "url"
	FieldDateFormat = "dateFormat"
)

// DefaultDateFormat is the default of the article page's dateFormat field.
const DefaultDateFormat = "YYYY-MM-DD HH:mm"

func urlField() field.Field {
	return field.Field{
		Name:      FieldURL,
		Label:     "URL",
		InputType: field.Input,
		Rules: &field.Rules{
			Pattern: `^[\w\-./]*$`,
			Message: "URL may only contain letters, digits, '-', '_', '.' and '/'",
		},
	}
}

// predefined returns the system fields of a page, excluding url.
func predefined(name string) []field.Field {
	if name == theme.PageArticle {
		return []field.Field{{
			Name:         FieldDateFormat,
			Label:        "Date format",
			InputType:    field.Input,
			DefaultValue: DefaultDateFormat,
		}}
	}
	return nil
}

// Page is a named, field-driven unit of site content.
type Page struct {
	name   string
	fields []field.Field
	vars   map[string]any
}

// New builds a page. It never fails: malformed persisted values are kept as-is and
// unknown keys are retained in FieldVars.
func New(name string, persisted map[string]any, th *theme.Theme) *Page {
	var fields []field.Field
	if name != theme.PageIndex {
		fields = append(fields, urlField())
	}
	fields = append(fields, predefined(name)...)

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.Name] = true
	}
	for _, f := range th.PageFields(name) {
		if seen[f.Name] {
			slog.Warn("Theme field shadows a predefined field and is ignored",
				logfields.Page(name), logfields.Field(f.Name))
			continue
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}

	p := &Page{name: name, fields: fields, vars: make(map[string]any, len(fields))}
	for _, f := range fields {
		if f.DefaultValue != nil {
			p.vars[f.Name] = f.DefaultValue
		}
	}
	p.SetValues(persisted)
	return p
}

// Name returns the page name.
func (p *Page) Name() string { return p.name }

// Fields returns the merged field list: url (unless index), predefined, then theme fields.
func (p *Page) Fields() []field.Field {
	out := make([]field.Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// MarkdownFieldNames returns the names of markdown-typed fields in the current schema.
func (p *Page) MarkdownFieldNames() map[string]bool {
	out := map[string]bool{}
	for _, f := range p.fields {
		if f.InputType == field.Markdown {
			out[f.Name] = true
		}
	}
	return out
}

// SetValues merges partial into the field values, decoding markdown fields.
func (p *Page) SetValues(partial map[string]any) {
	md := p.MarkdownFieldNames()
	for k, v := range partial {
		if md[k] {
			v = DecodeMarkdown(v)
		}
		p.vars[k] = v
	}
}

// FieldVars returns a copy of the decoded field values.
func (p *Page) FieldVars() map[string]any {
	return maps.Clone(p.vars)
}

// OutputValues returns the values to persist: markdown string values carry the
// content-type prefix again.
func (p *Page) OutputValues() map[string]any {
	md := p.MarkdownFieldNames()
	out := make(map[string]any, len(p.vars))
	for k, v := range p.vars {
		if md[k] {
			v = EncodeMarkdownValue(v)
		}
		out[k] = v
	}
	return out
}

// URL resolves the page's root-relative URL.
func (p *Page) URL() string {
	if p.name == theme.PageIndex {
		return "/"
	}
	if s, ok := p.vars[FieldURL].(string); ok {
		if s = strings.Trim(strings.TrimSpace(s), "/"); s != "" {
			return "/" + s
		}
	}
	return "/" + p.name
}

// Validate checks every declared field value.
func (p *Page) Validate() error {
	if err := field.ValidateAll(p.fields, p.vars); err != nil {
		return ferrors.ValidationError("invalid field values").
			WithCause(err).
			WithContext("page", p.name).
			Build()
	}
	return nil
}
