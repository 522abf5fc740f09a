package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/notes"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/session"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/store"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

var genTime = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func themeFS(extra map[string]string) fstest.MapFS {
	files := map[string]string{
		"t/theme.yaml": `
siteFields:
  - {name: title, inputType: input, defaultValue: Test Site}
pages:
  index:
    - {name: intro, inputType: markdown}
  about:
    - {name: body, inputType: markdown}
`,
		"t/templates/index.html":   `<title>{{index .Site.Fields "title"}}</title>{{markdown (index .Page "intro")}}{{range .Site.Articles}}<a href="{{.Link}}">{{.Title}}</a>{{end}}{{range .Site.Styles}}<link href="{{.}}">{{end}}`,
		"t/templates/article.html": `<h1>{{.Article.Title}}</h1>{{.Article.HTML}}<time>{{formatDate .Article.UpdatedAt (index .Page "dateFormat")}}</time>`,
		"t/templates/about.html":   `{{markdown (index .Page "body")}}`,
		"t/assets/css/site.css":    `body{}`,
	}
	for k, v := range extra {
		files[k] = v
	}
	fsys := fstest.MapFS{}
	for k, v := range files {
		fsys[k] = &fstest.MapFile{Data: []byte(v)}
	}
	return fsys
}

type fixture struct {
	sess  *session.Session
	kv    *store.Memory
	notes string
}

func newFixture(t *testing.T, fsys fstest.MapFS) *fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	write("one.md", "---\ntitle: First Post\nresources: [pic.png]\nupdated: 2024-01-01T00:00:00Z\n---\nHello ![p](:/pic.png)\n")
	write("two.md", "---\ntitle: Second Post\nupdated: 2024-02-01T00:00:00Z\n---\n**Bold** body text that is long enough\n")
	write("three.md", "---\ntitle: Draft\nupdated: 2024-03-01T00:00:00Z\n---\nsecret draft\n")
	write(filepath.Join(notes.ResourcesDir, "pic.png"), "PNG")

	kv := store.NewMemory()
	m := theme.NewManagerWithLoaders("default", theme.NewLoader(fsys), theme.BuiltinLoader())
	sess := session.New(kv, m, notes.NewDirSource(dir), session.Options{DefaultTheme: "t"})
	_, err := sess.Load(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"one", "two", "three"} {
		_, err := sess.AddArticle(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, sess.SetPublished(ctx, "one", true))
	require.NoError(t, sess.SetPublished(ctx, "two", true))
	require.NoError(t, sess.SavePage(ctx, "index", map[string]any{"intro": "Welcome *all*"}))
	return &fixture{sess: sess, kv: kv, notes: dir}
}

func newGenerator() *Generator {
	return New(Options{Now: func() time.Time { return genTime }, SiteURL: "https://example.org"})
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, themeFS(nil))
	g := newGenerator()
	assert.Equal(t, StateIdle, g.State())

	out, err := g.Generate(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Equal(t, StateDone, g.State())

	assert.ElementsMatch(t, []string{
		"index.html",
		"about/index.html",
		"article/first-post/index.html",
		"article/second-post/index.html",
		"rss.xml",
		"_assets/css/site.css",
		"_plugin/markdown.css",
		"_resources/pic.png",
	}, out.Paths())

	index := string(out["index.html"])
	assert.Contains(t, index, "<title>Test Site</title>")
	assert.Contains(t, index, "<em>all</em>")
	assert.Contains(t, index, `href="/_plugin/markdown.css"`)
	// newest first
	assert.Less(t, strings.Index(index, "Second Post"), strings.Index(index, "First Post"))
	assert.NotContains(t, index, "Draft")

	article := string(out["article/first-post/index.html"])
	assert.Contains(t, article, `src="/_resources/pic.png"`)
	assert.Contains(t, article, "<time>2024-01-01 00:00</time>")

	gen := f.sess.Site().GeneratedAt
	require.NotNil(t, gen)
	assert.True(t, genTime.Equal(*gen))
}

func TestGenerateExcludesUnpublished(t *testing.T) {
	f := newFixture(t, themeFS(nil))
	require.NoError(t, f.sess.SetPublished(context.Background(), "two", false))

	out, err := newGenerator().Generate(context.Background(), f.sess)
	require.NoError(t, err)
	for p, data := range out {
		assert.NotContains(t, p, "second-post")
		assert.NotContains(t, string(data), "Second Post", p)
		assert.NotContains(t, string(data), "secret draft", p)
	}
}

func TestGenerateRSSBounds(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, themeFS(nil))
	require.NoError(t, f.sess.UpdateSettings(ctx, site.RSSDigest, 1))
	out, err := newGenerator().Generate(ctx, f.sess)
	require.NoError(t, err)
	rss := string(out[FeedPath])
	assert.Equal(t, 1, strings.Count(rss, "<item>"))
	assert.Contains(t, rss, "https://example.org/article/second-post/")
	assert.Contains(t, rss, "Bold body text")
	assert.NotContains(t, rss, "&lt;strong&gt;")

	require.NoError(t, f.sess.UpdateSettings(ctx, site.RSSNone, 10))
	out, err = newGenerator().Generate(ctx, f.sess)
	require.NoError(t, err)
	assert.NotContains(t, out, FeedPath)
}

func TestGenerateAbortsAtomically(t *testing.T) {
	f := newFixture(t, themeFS(map[string]string{
		"t/templates/about.html": `{{.Nope}}`,
	}))
	g := newGenerator()

	out, err := g.Generate(context.Background(), f.sess)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, StateFailed, g.State())

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryGeneration, ce.Category())
	assert.Equal(t, "about", ce.Context()["page"])
	assert.Nil(t, f.sess.Site().GeneratedAt)
}

func TestGenerateDuplicatePath(t *testing.T) {
	f := newFixture(t, themeFS(nil))
	require.NoError(t, f.sess.SavePage(context.Background(), "about", map[string]any{"url": "rss.xml"}))

	_, err := newGenerator().Generate(context.Background(), f.sess)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryGeneration))
}

func TestGenerateWithoutTheme(t *testing.T) {
	sess := session.New(store.NewMemory(), theme.NewManagerWithLoaders("default", theme.BuiltinLoader()), notes.NewDirSource(t.TempDir()), session.Options{})
	_, err := newGenerator().Generate(context.Background(), sess)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInvariant))
}

func TestGenerateBuiltinTheme(t *testing.T) {
	f := newFixture(t, themeFS(nil))
	require.NoError(t, f.sess.SwitchTheme(context.Background(), "default"))

	out, err := newGenerator().Generate(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Contains(t, out, "_assets/style.css")
	assert.Contains(t, string(out["index.html"]), "My Notes")
	assert.Contains(t, string(out["index.html"]), `type="application/rss+xml"`)
}

func TestWriteOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.html"), []byte("old"), 0o600))

	require.NoError(t, WriteOutput(dir, Output{"index.html": []byte("i"), "a/b/index.html": []byte("b")}))
	data, err := os.ReadFile(filepath.Join(dir, "a", "b", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "stale.html"))

	require.NoError(t, WriteOutput(dir, Output{"../escape.html": []byte("x")}))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.html"))
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "Hello world", Digest("<p>Hello <b>world</b></p>", 200))
	assert.Equal(t, "abc…", Digest("<p>abcdef</p>", 3))
	assert.Equal(t, "日本…", Digest("<p>日本語</p>", 2))
	assert.Equal(t, "x", Digest("<style>p{}</style>x<script>y()</script>", 10))
}

func TestPagePath(t *testing.T) {
	assert.Equal(t, "index.html", pagePath("/"))
	assert.Equal(t, "about/index.html", pagePath("/about"))
	assert.Equal(t, "a/b/index.html", pagePath("/a/b/"))
	assert.Equal(t, "feed.xml", pagePath("/feed.xml"))
}
