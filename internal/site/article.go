package site

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Article is a note-backed unit of content.
type Article struct {
	NoteID      string    `json:"noteId"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Tags        []string  `json:"tags,omitempty"`
	Content     string    `json:"content"`
	NoteContent string    `json:"noteContent"`
	Published   bool      `json:"published"`
	Images      []string  `json:"images,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// Clone returns a deep copy of a.
func (a Article) Clone() Article {
	a.Tags = slices.Clone(a.Tags)
	a.Images = slices.Clone(a.Images)
	a.Attachments = slices.Clone(a.Attachments)
	return a
}

// Articles is the article collection; it is the single source of truth for publish
// status and URL assignment.
type Articles []Article

func (as Articles) index(noteID string) int {
	return slices.IndexFunc(as, func(a Article) bool { return a.NoteID == noteID })
}

// Find returns the article backed by noteID.
func (as Articles) Find(noteID string) (*Article, bool) {
	i := as.index(noteID)
	if i < 0 {
		return nil, false
	}
	return &as[i], true
}

// Add appends a, replacing its URL with a unique one when needed.
func (as *Articles) Add(a Article) (Article, error) {
	if as.index(a.NoteID) >= 0 {
		return Article{}, fmt.Errorf("note %s is already an article", a.NoteID)
	}
	base := a.URL
	if strings.TrimSpace(base) == "" {
		base = Slugify(a.Title)
	}
	a.URL = as.ValidURL(base, "")
	*as = append(*as, a)
	return a, nil
}

// SetURL assigns a unique URL derived from base to the article backed by noteID.
func (as Articles) SetURL(noteID, base string) (string, error) {
	a, ok := as.Find(noteID)
	if !ok {
		return "", fmt.Errorf("article %s not found", noteID)
	}
	a.URL = as.ValidURL(base, noteID)
	return a.URL, nil
}

// Remove deletes the article backed by noteID.
func (as *Articles) Remove(noteID string) bool {
	i := as.index(noteID)
	if i < 0 {
		return false
	}
	*as = slices.Delete(*as, i, i+1)
	return true
}

// Published returns copies of the published articles, most recently updated first.
func (as Articles) Published() []Article {
	var out []Article
	for _, a := range as {
		if a.Published {
			out = append(out, a.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b Article) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

// ValidURL returns a URL starting with base that no article other than self uses.
// Base is kept as given apart from surrounding space. Empty bases become
// "article"; collisions get "-1", "-2", ... appended.
func (as Articles) ValidURL(base, self string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "article"
	}
	taken := func(u string) bool {
		return slices.ContainsFunc(as, func(a Article) bool { return a.URL == u && a.NoteID != self })
	}
	if !taken(base) {
		return base
	}
	for n := 1; ; n++ {
		if u := base + "-" + strconv.Itoa(n); !taken(u) {
			return u
		}
	}
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, strips diacritics and collapses everything that is not a
// letter, digit, '_' or '.' into single dashes. Non-latin letters are kept.
func Slugify(s string) string {
	folded, _, err := transform.String(stripMarks, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}
