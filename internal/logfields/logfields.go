package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyTheme      = "theme"
	KeyPage       = "page"
	KeyArticle    = "article"
	KeyNote       = "note_id"
	KeyField      = "field"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyPhase      = "phase"
	KeyState      = "state"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Theme(name string) slog.Attr     { return slog.String(KeyTheme, name) }
func Page(name string) slog.Attr      { return slog.String(KeyPage, name) }
func Article(url string) slog.Attr    { return slog.String(KeyArticle, url) }
func Note(id string) slog.Attr        { return slog.String(KeyNote, id) }
func Field(name string) slog.Attr     { return slog.String(KeyField, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, redactURL(u)) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Commit(h string) slog.Attr       { return slog.String(KeyCommit, h) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
