package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/inful/mdfp"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/markdown"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/notes"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
)

// Articles returns copies of every article.
func (s *Session) Articles() []site.Article {
	out := make([]site.Article, len(s.articles))
	for i, a := range s.articles {
		out[i] = a.Clone()
	}
	return out
}

// PublishedArticles returns copies of the published articles, newest first.
func (s *Session) PublishedArticles() []site.Article {
	return s.articles.Published()
}

// AddArticle turns a note into an unpublished article with a unique URL.
func (s *Session) AddArticle(ctx context.Context, noteID string) (site.Article, error) {
	if _, ok := s.articles.Find(noteID); ok {
		return site.Article{}, ferrors.ValidationError("note is already an article").WithContext("note_id", noteID).Build()
	}
	n, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return site.Article{}, err
	}
	a := site.Article{NoteID: n.ID, CreatedAt: n.CreatedAt}
	if err := s.refresh(ctx, &a, n); err != nil {
		return site.Article{}, err
	}
	added, err := s.articles.Add(a)
	if err != nil {
		return site.Article{}, ferrors.InternalError("add article").WithCause(err).Build()
	}
	if err := s.saveArticles(ctx); err != nil {
		return site.Article{}, err
	}
	slog.Info("Article added", logfields.Note(noteID), logfields.Article(added.URL))
	return added.Clone(), nil
}

// SetPublished toggles whether an article is part of the site.
func (s *Session) SetPublished(ctx context.Context, noteID string, published bool) error {
	a, err := s.find(noteID)
	if err != nil {
		return err
	}
	a.Published = published
	return s.saveArticles(ctx)
}

// SetArticleURL assigns a unique URL derived from base.
func (s *Session) SetArticleURL(ctx context.Context, noteID, base string) (string, error) {
	if _, err := s.find(noteID); err != nil {
		return "", err
	}
	u, err := s.articles.SetURL(noteID, base)
	if err != nil {
		return "", ferrors.InternalError("set article url").WithCause(err).Build()
	}
	return u, s.saveArticles(ctx)
}

// RemoveArticle deletes an article; the note itself is untouched.
func (s *Session) RemoveArticle(ctx context.Context, noteID string) error {
	if !s.articles.Remove(noteID) {
		return notFound(noteID)
	}
	return s.saveArticles(ctx)
}

// SyncReport summarizes a SyncArticles run.
type SyncReport struct {
	RunID   string
	Checked int
	Updated int
	Missing []string // articles whose note no longer exists
}

// SyncArticles refreshes every article from its note. UpdatedAt only moves when the
// note content fingerprint changes.
func (s *Session) SyncArticles(ctx context.Context) (SyncReport, error) {
	report := SyncReport{RunID: uuid.NewString()}
	all, err := notes.FetchAll(ctx, s.opts.PageSize, s.notes.ListNotes)
	if err != nil {
		return report, err
	}
	byID := make(map[string]notes.Note, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}

	for i := range s.articles {
		a := &s.articles[i]
		report.Checked++
		n, ok := byID[a.NoteID]
		if !ok {
			report.Missing = append(report.Missing, a.NoteID)
			slog.Warn("Article note is gone", logfields.RunID(report.RunID), logfields.Note(a.NoteID))
			continue
		}
		before := a.Fingerprint
		if err := s.refresh(ctx, a, n); err != nil {
			return report, err
		}
		if a.Fingerprint != before {
			report.Updated++
		}
	}
	if err := s.saveArticles(ctx); err != nil {
		return report, err
	}
	slog.Info("Articles synchronized",
		logfields.RunID(report.RunID),
		logfields.Count(report.Checked),
		slog.Int("updated", report.Updated),
		slog.Int("missing", len(report.Missing)))
	return report, nil
}

// refresh copies note content into a, bumping UpdatedAt when the fingerprint changed.
func (s *Session) refresh(ctx context.Context, a *site.Article, n notes.Note) error {
	fp := fingerprint(n)
	if fp == a.Fingerprint {
		return nil
	}
	resources, err := notes.FetchAll(ctx, s.opts.PageSize, func(ctx context.Context, q notes.Query) (notes.Page[notes.Resource], error) {
		return s.notes.ListResources(ctx, n.ID, q)
	})
	listed := err == nil
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Cannot list note resources, using body references", logfields.Note(n.ID), logfields.Error(err))
	}

	refs := markdown.ExtractReferences(n.Body)
	a.Title = n.Title
	a.Tags = append([]string(nil), n.Tags...)
	a.Content = n.Body
	a.NoteContent = n.Body
	a.Images = refs.Images
	a.Attachments = attachments(n.ID, resources, refs.Resources, listed)
	a.CoverImage = ""
	if len(refs.Images) > 0 {
		a.CoverImage = refs.Images[0]
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = n.CreatedAt
	}
	prev := a.UpdatedAt
	a.UpdatedAt = n.UpdatedAt
	if a.UpdatedAt.IsZero() || (!prev.IsZero() && !a.UpdatedAt.After(prev)) {
		a.UpdatedAt = s.opts.Now().UTC()
	}
	a.Fingerprint = fp
	return nil
}

// attachments lists the resource ids published with a note: the ones the body
// references first, in body order, then the remaining listed ones. When the
// listing succeeded, body references to unknown resources are dropped.
func attachments(noteID string, listed []notes.Resource, referenced []string, trusted bool) []string {
	known := make(map[string]bool, len(listed))
	for _, r := range listed {
		known[r.ID] = true
	}
	var out []string
	seen := map[string]bool{}
	for _, id := range referenced {
		if trusted && !known[id] {
			slog.Warn("Note references an unknown resource", logfields.Note(noteID), slog.String("resource", id))
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, r := range listed {
		if !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r.ID)
		}
	}
	return out
}

func fingerprint(n notes.Note) string {
	meta := "title: " + n.Title + "\ntags: " + strings.Join(n.Tags, ",")
	return mdfp.CalculateFingerprintFromParts(meta, n.Body)
}

func (s *Session) find(noteID string) (*site.Article, error) {
	a, ok := s.articles.Find(noteID)
	if !ok {
		return nil, notFound(noteID)
	}
	return a, nil
}

func notFound(noteID string) error {
	return ferrors.NotFoundError("article not found").WithContext("note_id", noteID).Build()
}
