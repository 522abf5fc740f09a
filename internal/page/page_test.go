package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/field"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

func testTheme() *theme.Theme {
	return &theme.Theme{
		Name: "t",
		Pages: map[string][]field.Field{
			"index":   {{Name: "intro", InputType: field.Markdown}},
			"article": {{Name: "url", InputType: field.Textarea}, {Name: "showTags", InputType: field.Switch, DefaultValue: true}},
			"about": {
				{Name: "body", InputType: field.Markdown},
				{Name: "title", InputType: field.Input, Rules: &field.Rules{Required: true}},
			},
		},
		PageOrder: []string{"index", "about", "article"},
	}
}

func TestMarkdownRoundTrip(t *testing.T) {
	for _, v := range []string{"", "plain", "markdown://nested", "# heading\n\n* a\n* b", "ünïcödé"} {
		assert.Equal(t, v, DecodeMarkdown(EncodeMarkdown(v)))
	}
	for _, v := range []any{nil, 42, true, []any{"x"}, map[string]any{"a": 1}} {
		assert.NotPanics(t, func() { assert.Equal(t, v, DecodeMarkdown(v)) })
	}
}

func TestFieldOrdering(t *testing.T) {
	th := testTheme()

	index := New("index", nil, th)
	assert.NotContains(t, field.Names(index.Fields()), FieldURL)
	assert.Equal(t, []string{"intro"}, field.Names(index.Fields()))

	article := New("article", nil, th)
	assert.Equal(t, []string{"url", "dateFormat", "showTags"}, field.Names(article.Fields()))
	assert.Equal(t, DefaultDateFormat, article.Fields()[1].DefaultValue)
	assert.Equal(t, DefaultDateFormat, article.FieldVars()[FieldDateFormat])
	// predefined url wins over the theme's redeclaration
	assert.Equal(t, field.Input, article.Fields()[0].InputType)

	about := New("about", nil, th)
	assert.Equal(t, []string{"url", "body", "title"}, field.Names(about.Fields()))
}

func TestPersistedValues(t *testing.T) {
	p := New("about", map[string]any{
		"body":   "markdown://**hi**",
		"title":  "About",
		"legacy": "kept",
		"url":    "about-me",
	}, testTheme())

	vars := p.FieldVars()
	assert.Equal(t, "**hi**", vars["body"])
	assert.Equal(t, "kept", vars["legacy"])
	assert.Equal(t, "/about-me", p.URL())

	out := p.OutputValues()
	assert.Equal(t, "markdown://**hi**", out["body"])
	assert.Equal(t, "About", out["title"])
	assert.Equal(t, "kept", out["legacy"])
}

func TestMalformedPersistedValues(t *testing.T) {
	require.NotPanics(t, func() {
		p := New("about", map[string]any{"body": 12, "url": []int{1}}, testTheme())
		assert.Equal(t, 12, p.FieldVars()["body"])
		assert.Equal(t, 12, p.OutputValues()["body"])
		assert.Equal(t, "/about", p.URL())
	})
	require.NotPanics(t, func() { New("unknown", nil, nil) })
}

func TestSetValuesDecodesOnlyMarkdown(t *testing.T) {
	p := New("about", nil, testTheme())
	p.SetValues(map[string]any{"body": "markdown://x", "title": "markdown://y"})
	assert.Equal(t, "x", p.FieldVars()["body"])
	assert.Equal(t, "markdown://y", p.FieldVars()["title"])
}

func TestURL(t *testing.T) {
	th := testTheme()
	assert.Equal(t, "/", New("index", map[string]any{"url": "x"}, th).URL())
	assert.Equal(t, "/about", New("about", nil, th).URL())
	assert.Equal(t, "/a/b", New("about", map[string]any{"url": "/a/b/"}, th).URL())
}

func TestValidate(t *testing.T) {
	p := New("about", map[string]any{"url": "bad url!"}, testTheme())
	err := p.Validate()
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryValidation, ce.Category())
	assert.Equal(t, "about", ce.Context()["page"])

	p.SetValues(map[string]any{"url": "about", "title": "About"})
	require.NoError(t, p.Validate())
}
