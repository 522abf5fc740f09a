// Package session owns the state of one workspace: the site record, the article
// collection and the active theme. It is the only writer of that state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/field"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/notes"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/page"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/store"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

// Options tune a session.
type Options struct {
	DefaultTheme string // used when the site has never selected one
	PageSize     int    // note listing page size
	Now          func() time.Time
}

// Session is an explicit workspace session. It is not safe for concurrent use;
// callers sequence operations.
type Session struct {
	kv     store.KV
	themes *theme.Manager
	notes  notes.Source
	opts   Options

	site     *site.Site
	articles site.Articles
	loaded   bool
}

// New creates a session. Call Load before anything else.
func New(kv store.KV, themes *theme.Manager, src notes.Source, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize <= 0 {
		opts.PageSize = notes.DefaultPageSize
	}
	return &Session{kv: kv, themes: themes, notes: src, opts: opts, site: site.New()}
}

// LoadReport describes recoverable problems met while loading.
type LoadReport struct {
	// ThemeErr is set when the selected theme failed to load and another theme
	// (the last good one or the fallback) is active instead.
	ThemeErr error
}

// Load reads the persisted site and articles and activates the selected theme.
func (s *Session) Load(ctx context.Context) (LoadReport, error) {
	var report LoadReport

	st := site.New()
	if _, err := s.kv.Get(ctx, store.KeySite, st); err != nil {
		return report, err
	}
	st.Normalize()

	var articles site.Articles
	if _, err := s.kv.Get(ctx, store.KeyArticles, &articles); err != nil {
		return report, err
	}

	name := st.ThemeName
	if name == "" {
		name = s.opts.DefaultTheme
	}
	th, err := s.themes.Load(name)
	if err != nil {
		if th == nil {
			return report, err
		}
		report.ThemeErr = err
		slog.Warn("Continuing with another theme", logfields.Theme(th.Name), logfields.Error(err))
	}
	st.SwitchTheme(th.Name)

	s.site, s.articles, s.loaded = st, articles, true
	slog.Debug("Session loaded", logfields.Theme(th.Name), logfields.Count(len(articles)))
	return report, nil
}

// Theme returns the active theme.
func (s *Session) Theme() (*theme.Theme, error) {
	th := s.themes.Active()
	if th == nil || !s.loaded {
		return nil, ferrors.InvariantViolation("no active theme; session not loaded").Build()
	}
	return th, nil
}

// Themes lists installed themes.
func (s *Session) Themes() ([]theme.Info, error) { return s.themes.Themes() }

// Notes returns the note source.
func (s *Session) Notes() notes.Source { return s.notes }

// Site returns a copy of the site record.
func (s *Session) Site() site.Site {
	cp := *s.site
	cp.Custom = make(map[string]site.ThemeValues, len(s.site.Custom))
	for k, v := range s.site.Custom {
		pages := make(map[string]map[string]any, len(v.Pages))
		for p, vals := range v.Pages {
			pages[p] = cloneMap(vals)
		}
		cp.Custom[k] = site.ThemeValues{Site: cloneMap(v.Site), Pages: pages}
	}
	if s.site.GeneratedAt != nil {
		t := *s.site.GeneratedAt
		cp.GeneratedAt = &t
	}
	return cp
}

// SwitchTheme activates name. On failure the current theme stays active.
func (s *Session) SwitchTheme(ctx context.Context, name string) error {
	if _, err := s.Theme(); err != nil {
		return err
	}
	th, err := s.themes.Load(name)
	if err != nil {
		return err
	}
	s.site.SwitchTheme(th.Name)
	return s.saveSite(ctx)
}

// Page builds the named page of the active theme from its saved values.
func (s *Session) Page(name string) (*page.Page, error) {
	th, err := s.Theme()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(th.PageNames(), name) {
		return nil, ferrors.NotFoundError("page not declared by theme").
			WithContext("page", name).
			WithContext("theme", th.Name).
			Build()
	}
	return page.New(name, s.site.PageValues(name), th), nil
}

// SavePage merges values into a page, validates it and persists it.
func (s *Session) SavePage(ctx context.Context, name string, values map[string]any) error {
	p, err := s.Page(name)
	if err != nil {
		return err
	}
	p.SetValues(values)
	if err := p.Validate(); err != nil {
		return err
	}
	s.site.SetPageValues(name, p.OutputValues())
	return s.saveSite(ctx)
}

// SiteFieldVars returns the active theme's site field values, defaults applied and
// markdown fields decoded.
func (s *Session) SiteFieldVars() (map[string]any, error) {
	th, err := s.Theme()
	if err != nil {
		return nil, err
	}
	saved := s.site.SiteValues()
	out := make(map[string]any, len(th.SiteFields)+len(saved))
	for _, f := range th.SiteFields {
		if f.DefaultValue != nil {
			out[f.Name] = f.DefaultValue
		}
	}
	for k, v := range saved {
		out[k] = v
	}
	for _, f := range th.SiteFields {
		if f.InputType == field.Markdown {
			out[f.Name] = page.DecodeMarkdown(out[f.Name])
		}
	}
	return out, nil
}

// SaveSiteFields validates and persists site field values of the active theme.
func (s *Session) SaveSiteFields(ctx context.Context, values map[string]any) error {
	th, err := s.Theme()
	if err != nil {
		return err
	}
	merged, err := s.SiteFieldVars()
	if err != nil {
		return err
	}
	for k, v := range values {
		merged[k] = v
	}
	if err := field.ValidateAll(th.SiteFields, merged); err != nil {
		return ferrors.ValidationError("invalid site fields").WithCause(err).WithContext("theme", th.Name).Build()
	}
	encoded := make(map[string]any, len(values))
	for _, f := range th.SiteFields {
		if v, ok := values[f.Name]; ok && f.InputType == field.Markdown {
			encoded[f.Name] = page.EncodeMarkdownValue(page.DecodeMarkdown(v))
		}
	}
	for k, v := range values {
		if _, done := encoded[k]; !done {
			encoded[k] = v
		}
	}
	s.site.SetSiteValues(encoded)
	return s.saveSite(ctx)
}

// UpdateSettings changes the feed settings.
func (s *Session) UpdateSettings(ctx context.Context, mode site.RSSMode, length int) error {
	if _, err := site.ParseRSSMode(string(mode)); err != nil {
		return ferrors.ValidationError(err.Error()).WithContext("field", "rssMode").Build()
	}
	if length < 0 {
		return ferrors.ValidationError(fmt.Sprintf("rss length must be >= 0, got %d", length)).
			WithContext("field", "rssLength").
			Build()
	}
	s.site.RSSMode, s.site.RSSLength = mode, length
	return s.saveSite(ctx)
}

// MarkGenerated records a successful generation.
func (s *Session) MarkGenerated(ctx context.Context, at time.Time) error {
	s.site.GeneratedAt = &at
	return s.saveSite(ctx)
}

func (s *Session) saveSite(ctx context.Context) error {
	return s.kv.Set(ctx, store.KeySite, s.site)
}

func (s *Session) saveArticles(ctx context.Context) error {
	if s.articles == nil {
		return s.kv.Set(ctx, store.KeyArticles, site.Articles{})
	}
	return s.kv.Set(ctx, store.KeyArticles, s.articles)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
