// Package notes adapts the note store the site is built from.
package notes

import (
	"context"
	"time"
)

// DefaultPageSize is used when a query leaves Limit unset.
const DefaultPageSize = 50

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Query selects a page of a listing. Page numbers start at 1.
type Query struct {
	Page  int
	Limit int
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	return q
}

// Note is a note as seen by the site.
type Note struct {
	ID        string
	Title     string
	Body      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resource is a file attached to a note.
type Resource struct {
	ID       string
	Title    string
	Mime     string
	Filename string
	Size     int64
}

// Source is a paginated note store.
type Source interface {
	ListNotes(ctx context.Context, q Query) (Page[Note], error)
	ListResources(ctx context.Context, noteID string, q Query) (Page[Resource], error)
	GetNote(ctx context.Context, id string) (Note, error)
}

// ResourceReader is implemented by sources that can return attachment content.
type ResourceReader interface {
	ReadResource(ctx context.Context, id string) ([]byte, error)
}

// FetchAll aggregates every page of a listing, requesting pages until HasMore is false.
func FetchAll[T any](ctx context.Context, pageSize int, fetch func(ctx context.Context, q Query) (Page[T], error)) ([]T, error) {
	var out []T
	q := Query{Page: 1, Limit: pageSize}.normalized()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		if !p.HasMore || len(p.Items) == 0 {
			return out, nil
		}
		q.Page++
	}
}

// paginate slices items according to q.
func paginate[T any](items []T, q Query) Page[T] {
	q = q.normalized()
	start := (q.Page - 1) * q.Limit
	if start >= len(items) {
		return Page[T]{}
	}
	end := min(start+q.Limit, len(items))
	return Page[T]{Items: items[start:end], HasMore: end < len(items)}
}
