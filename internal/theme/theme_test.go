package theme

import (
	"bytes"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

const blogDescriptor = `
name: blog
title: Blog
version: 0.3.0
siteFields:
  - name: title
    inputType: input
pages:
  about:
    - name: body
      inputType: markdown
  article:
    - name: comments
      inputType: switch
  index:
    - name: intro
      inputType: textarea
`

func blogFS() fstest.MapFS {
	return fstest.MapFS{
		"blog/theme.yaml":                   {Data: []byte(blogDescriptor)},
		"blog/templates/index.html":         {Data: []byte(`{{template "head" .}}index {{index .Site "title"}}`)},
		"blog/templates/article.html":       {Data: []byte(`article`)},
		"blog/templates/about.html":         {Data: []byte(`about`)},
		"blog/templates/partials/head.html": {Data: []byte(`{{define "head"}}<head>{{end}}`)},
		"blog/assets/main.css":              {Data: []byte(`body{}`)},
		"broken/theme.yaml":                 {Data: []byte("pages: [1, 2]")},
		"broken/templates/index.html":       {Data: []byte(`x`)},
		"notemplate/theme.yaml":             {Data: []byte("name: notemplate\n")},
		"notemplate/templates/index.html":   {Data: []byte(`x`)},
		".hidden/theme.yaml":                {Data: []byte("name: hidden\n")},
		"nodescriptor/templates/index.html": {Data: []byte(`x`)},
	}
}

func TestLoaderLoadPreservesPageOrder(t *testing.T) {
	th, err := NewLoader(blogFS()).Load("blog")
	require.NoError(t, err)

	assert.Equal(t, []string{"index", "about", "article"}, th.PageNames())
	assert.Equal(t, "Blog", th.Title)
	require.Len(t, th.PageFields("about"), 1)
	assert.Equal(t, "body", th.PageFields("about")[0].Name)
	assert.True(t, th.HasTemplate("about"))
	require.NotNil(t, th.Assets)

	var buf bytes.Buffer
	require.NoError(t, th.Templates.ExecuteTemplate(&buf, "index.html", map[string]any{"Site": map[string]any{"title": "T"}}))
	assert.Equal(t, "<head>index T", buf.String())
}

func TestLoaderLoadFailures(t *testing.T) {
	l := NewLoader(blogFS())
	for _, name := range []string{"broken", "notemplate", "missing", "../blog", ""} {
		t.Run(name, func(t *testing.T) {
			_, err := l.Load(name)
			require.Error(t, err)
			ce, ok := ferrors.AsClassified(err)
			require.True(t, ok)
			assert.Equal(t, ferrors.CategoryTheme, ce.Category())
		})
	}
}

func TestLoaderList(t *testing.T) {
	infos, err := NewLoader(blogFS()).List()
	require.NoError(t, err)

	var names []string
	for _, i := range infos {
		names = append(names, i.Name)
	}
	// broken still has a readable descriptor; it only fails on Load
	assert.Equal(t, []string{"blog", "broken", "notemplate"}, names)
	assert.Equal(t, "Notemplate", infos[2].Title)
}

func TestManagerKeepsPreviousThemeOnFailure(t *testing.T) {
	m := NewManagerWithLoaders("default", NewLoader(blogFS()), BuiltinLoader())

	th, err := m.Load("blog")
	require.NoError(t, err)
	require.Equal(t, "blog", th.Name)

	th, err = m.Load("broken")
	require.Error(t, err)
	assert.Equal(t, "blog", th.Name)
	assert.Equal(t, "blog", m.Active().Name)
}

func TestManagerActivatesFallback(t *testing.T) {
	m := NewManagerWithLoaders("default", NewLoader(blogFS()), BuiltinLoader())
	require.Nil(t, m.Active())

	th, err := m.Load("broken")
	require.Error(t, err)
	require.NotNil(t, th)
	assert.Equal(t, "default", th.Name)
	assert.True(t, th.Builtin)
	assert.Same(t, th, m.Active())
}

func TestManagerThemesShadowBuiltins(t *testing.T) {
	fsys := blogFS()
	fsys["default/theme.yaml"] = &fstest.MapFile{Data: []byte("title: Mine\n")}
	m := NewManagerWithLoaders("default", NewLoader(fsys), BuiltinLoader())

	infos, err := m.Themes()
	require.NoError(t, err)
	var def Info
	for _, i := range infos {
		if i.Name == "default" {
			def = i
		}
	}
	assert.Equal(t, "Mine", def.Title)
	assert.False(t, def.Builtin)
	assert.Nil(t, m.Active(), "listing must not activate a theme")
}

func TestBuiltinDefaultTheme(t *testing.T) {
	th, err := BuiltinLoader().Load("default")
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "article"}, th.PageNames())
	assert.True(t, th.HasTemplate("article"))
	require.NotNil(t, th.Assets)
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-07 09:05", FormatDate(ts, ""))
	assert.Equal(t, "07/03/24", FormatDate(ts, "DD/MM/YY"))
	assert.Equal(t, "March 7, 2024", FormatDate(ts, "MMMM D, YYYY"))
}

func TestFormatDateLiterals(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01 at 12:00", FormatDate(ts, "YYYY-MM-DD [at] HH:mm"))
	assert.Equal(t, "Day 1 of May, 2006 Jan", FormatDate(ts, "[Day] D [of] MMMM, [2006 Jan]"))
	assert.Equal(t, "2024[", FormatDate(ts, "YYYY["))
	assert.Equal(t, "", FormatDate(ts, "[]"))
}

func TestFuncMapDict(t *testing.T) {
	dict := FuncMap()["dict"].(func(...any) (map[string]any, error))
	m, err := dict("a", 1, "b", "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, m)

	_, err = dict("a")
	require.Error(t, err)
}
