// Package generator renders the active theme, the pages and the published articles
// of a session into an in-memory output file set.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/markdown"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/metrics"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/notes"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/page"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

// Output directories inside the generated site.
const (
	PluginAssetsDir = "_plugin"
	ResourcesDir    = "_resources"
)

// DefaultDigestLength is the digest size in runes when none is configured.
const DefaultDigestLength = 200

// ResourceURL is the published URL of a note attachment.
func ResourceURL(id string) string { return "/" + ResourcesDir + "/" + id }

// Session is the workspace state a generation pass reads.
type Session interface {
	Theme() (*theme.Theme, error)
	Site() site.Site
	SiteFieldVars() (map[string]any, error)
	PublishedArticles() []site.Article
	Page(name string) (*page.Page, error)
	Notes() notes.Source
	MarkGenerated(ctx context.Context, at time.Time) error
}

// Options configure a Generator.
type Options struct {
	Renderer     markdown.Renderer
	Recorder     metrics.Recorder
	DigestLength int
	SiteURL      string // absolute base for feed links
	Now          func() time.Time
}

// Generator runs generation passes. A Generator may be reused but passes must not
// overlap.
type Generator struct {
	opts  Options
	state atomic.Int32
}

// New creates a generator.
func New(opts Options) *Generator {
	if opts.Renderer == nil {
		opts.Renderer = markdown.NewGoldmark(markdown.WithResourceURL(ResourceURL))
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	if opts.DigestLength <= 0 {
		opts.DigestLength = DefaultDigestLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{opts: opts}
}

// State returns the current lifecycle state.
func (g *Generator) State() State { return State(g.state.Load()) }

func (g *Generator) setState(s State, runID string) {
	g.state.Store(int32(s))
	slog.Debug("Generator state changed", logfields.RunID(runID), logfields.State(s.String()))
}

// Generate renders the whole site. Any failure aborts the pass and no output is
// returned; on success the site's generatedAt is persisted through sess.
func (g *Generator) Generate(ctx context.Context, sess Session) (Output, error) {
	runID := uuid.NewString()
	start := time.Now()
	out, err := g.generate(ctx, sess, runID)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
		if errors.Is(err, context.Canceled) {
			outcome = metrics.OutcomeCanceled
		}
		g.setState(StateFailed, runID)
		slog.Error("Generation failed", logfields.RunID(runID), logfields.Error(err))
		out = nil
	} else {
		g.setState(StateDone, runID)
		g.opts.Recorder.SetPagesRendered(len(out))
		slog.Info("Generation finished", logfields.RunID(runID), logfields.Count(len(out)),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	}
	g.opts.Recorder.ObserveGeneration(time.Since(start), outcome)
	return out, err
}

type pass struct {
	ctx      context.Context
	sess     Session
	theme    *theme.Theme
	tpl      *template.Template
	site     *SiteContext
	bundle   *bundle
	renderer markdown.Renderer
}

func (g *Generator) generate(ctx context.Context, sess Session, runID string) (Output, error) {
	g.setState(StateInitializing, runID)
	th, err := sess.Theme()
	if err != nil {
		return nil, err
	}
	if th.Templates == nil {
		return nil, ferrors.InvariantViolation("active theme has no templates").WithContext("theme", th.Name).Build()
	}
	st := sess.Site()
	fields, err := sess.SiteFieldVars()
	if err != nil {
		return nil, err
	}
	tpl, err := th.Templates.Clone()
	if err != nil {
		return nil, ferrors.GenerationError("cannot prepare templates").WithCause(err).WithContext("theme", th.Name).Build()
	}

	now := g.opts.Now().UTC()
	p := &pass{
		ctx:      ctx,
		sess:     sess,
		theme:    th,
		tpl:      tpl,
		bundle:   newBundle(),
		renderer: g.opts.Renderer,
		site: &SiteContext{
			ThemeName:   th.Name,
			GeneratedAt: now,
			RSSMode:     st.RSSMode,
			RSSLength:   st.RSSLength,
			Fields:      fields,
			Pages:       map[string]string{},
		},
	}
	if st.RSSMode != site.RSSNone {
		p.site.RSSURL = "/" + FeedPath
	}
	// the renderer's base assets are linked from every page
	empty, err := p.renderer.Render(ctx, "")
	if err != nil {
		return nil, ferrors.GenerationError("markup renderer failed").WithCause(err).Build()
	}
	p.addRendererAssets(empty.Assets)

	g.setState(StateRendering, runID)
	pages := make(map[string]*page.Page, len(th.PageOrder))
	for _, name := range th.PageNames() {
		pg, err := sess.Page(name)
		if err != nil {
			return nil, err
		}
		if err := pg.Validate(); err != nil {
			return nil, err
		}
		pages[name] = pg
		p.site.Pages[name] = pg.URL()
	}
	articlePage := pages[theme.PageArticle]
	if articlePage == nil {
		return nil, ferrors.InvariantViolation("theme has no article page").WithContext("theme", th.Name).Build()
	}
	articleBase := strings.Trim(articlePage.URL(), "/")

	for _, a := range sess.PublishedArticles() {
		res, err := p.renderer.Render(ctx, a.Content)
		if err != nil {
			return nil, ferrors.GenerationError("cannot render article markup").
				WithCause(err).
				WithContext("page", theme.PageArticle).
				WithContext("article", a.URL).
				Build()
		}
		p.addRendererAssets(res.Assets)
		p.site.Articles = append(p.site.Articles, &ArticleContext{
			NoteID:     a.NoteID,
			Title:      a.Title,
			URL:        a.URL,
			Link:       "/" + path.Join(articleBase, a.URL) + "/",
			Tags:       a.Tags,
			HTML:       template.HTML(res.HTML), //nolint:gosec // produced by the markup renderer
			Content:    a.Content,
			CoverImage: a.CoverImage,
			CreatedAt:  a.CreatedAt,
			UpdatedAt:  a.UpdatedAt,
		})
	}

	p.tpl.Funcs(template.FuncMap{"markdown": p.markdownFunc})

	for _, name := range th.PageNames() {
		if name == theme.PageArticle {
			continue
		}
		pg := pages[name]
		if err := p.renderPage(name, pagePath(pg.URL()), pg.FieldVars(), nil); err != nil {
			return nil, err
		}
	}
	for _, a := range p.site.Articles {
		target := path.Join(articleBase, a.URL, "index.html")
		if err := p.renderPage(theme.PageArticle, target, articlePage.FieldVars(), a); err != nil {
			return nil, err
		}
	}

	if st.RSSMode != site.RSSNone {
		title, _ := fields["title"].(string)
		if title == "" {
			title = th.Title
		}
		description, _ := fields["description"].(string)
		rss, err := buildFeed(p.site, g.opts.SiteURL, title, description, g.opts.DigestLength)
		if err != nil {
			return nil, ferrors.GenerationError("cannot build feed").WithCause(err).Build()
		}
		if err := p.bundle.add(FeedPath, []byte(rss), "rss"); err != nil {
			return nil, err
		}
	}

	g.setState(StatePackaging, runID)
	if err := p.packageAssets(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sess.MarkGenerated(ctx, now); err != nil {
		return nil, err
	}
	return p.bundle.files, nil
}

func (p *pass) renderPage(name, target string, vars map[string]any, article *ArticleContext) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	fail := func(msg string, cause error) error {
		b := ferrors.GenerationError(msg).WithCause(cause).WithContext("page", name)
		if article != nil {
			b = b.WithContext("article", article.URL)
		}
		return b.Build()
	}
	if p.tpl.Lookup(theme.TemplateName(name)) == nil {
		return fail("missing page template", fmt.Errorf("%s not found", theme.TemplateName(name)))
	}
	var buf bytes.Buffer
	data := TemplateContext{PageName: name, Page: vars, Site: p.site, Article: article}
	if err := p.tpl.ExecuteTemplate(&buf, theme.TemplateName(name), data); err != nil {
		return fail("template execution failed", err)
	}
	return p.bundle.add(target, buf.Bytes(), name)
}

func (p *pass) markdownFunc(v any) (template.HTML, error) {
	src := theme.ToString(v)
	if src == "" {
		return "", nil
	}
	res, err := p.renderer.Render(p.ctx, src)
	if err != nil {
		return "", err
	}
	p.addRendererAssets(res.Assets)
	return template.HTML(res.HTML), nil //nolint:gosec // produced by the markup renderer
}

func (p *pass) addRendererAssets(assets []markdown.Asset) {
	for _, a := range assets {
		target := path.Join(PluginAssetsDir, a.Path)
		if _, seen := p.bundle.files[target]; seen {
			continue
		}
		p.bundle.files[target] = a.Content
		url := "/" + target
		switch {
		case a.IsStylesheet():
			p.site.Styles = append(p.site.Styles, url)
		case strings.HasSuffix(a.Path, ".js"):
			p.site.Scripts = append(p.site.Scripts, url)
		}
	}
}

func (p *pass) packageAssets() error {
	if p.theme.Assets != nil {
		err := fs.WalkDir(p.theme.Assets, ".", func(name string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := fs.ReadFile(p.theme.Assets, name)
			if err != nil {
				return err
			}
			return p.bundle.add(path.Join(theme.AssetsPrefix, name), data, "theme assets")
		})
		if err != nil {
			if ferrors.IsClassified(err) {
				return err
			}
			return ferrors.GenerationError("cannot package theme assets").WithCause(err).WithContext("theme", p.theme.Name).Build()
		}
	}

	rr, ok := p.sess.Notes().(notes.ResourceReader)
	if !ok {
		return nil
	}
	for _, a := range p.sess.PublishedArticles() {
		for _, id := range a.Attachments {
			target := path.Join(ResourcesDir, id)
			if _, done := p.bundle.files[target]; done {
				continue
			}
			data, err := rr.ReadResource(p.ctx, id)
			if err != nil {
				return ferrors.GenerationError("cannot read attachment").
					WithCause(err).
					WithContext("article", a.URL).
					WithContext("path", id).
					Build()
			}
			p.bundle.files[target] = data
		}
	}
	return nil
}

// pagePath maps a root-relative page URL to its output file.
func pagePath(url string) string {
	u := strings.Trim(url, "/")
	if u == "" {
		return "index.html"
	}
	if ext := path.Ext(u); ext == ".html" || ext == ".htm" || ext == ".xml" {
		return u
	}
	return path.Join(u, "index.html")
}
