package publisher

import (
	"bytes"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Phases reported through progress events.
const (
	PhaseFetch  = "fetch"
	PhaseGrace  = "grace"
	PhaseStage  = "stage"
	PhaseCommit = "commit"
	PhasePush   = "push"
)

// Progress reports how far a phase has advanced.
type Progress struct {
	Phase   string `json:"phase"`
	Percent int    `json:"percent"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// Log is a free-form message produced by the worker or the remote.
type Log struct {
	Level   slog.Level `json:"level"`
	Message string     `json:"message"`
}

// Event is a worker notification. Exactly one of Progress and Log is set.
type Event struct {
	Op       string    `json:"op"`
	At       time.Time `json:"at"`
	Progress *Progress `json:"progress,omitempty"`
	Log      *Log      `json:"log,omitempty"`
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}

// sidebandProgress matches remote progress lines such as
// "Counting objects: 42% (21/50)".
var sidebandProgress = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*):\s+(\d+)% \((\d+)/(\d+)\)`)

// progressWriter turns the go-git sideband stream into events. Lines are
// separated by either \r or \n.
type progressWriter struct {
	emit func(Event)
	op   string
	now  func() time.Time
	buf  []byte
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.line(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *progressWriter) flush() {
	if len(w.buf) > 0 {
		w.line(string(w.buf))
		w.buf = nil
	}
}

func (w *progressWriter) line(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	ev := Event{Op: w.op, At: w.now()}
	if m := sidebandProgress.FindStringSubmatch(s); m != nil {
		pct, _ := strconv.Atoi(m[2])
		done, _ := strconv.Atoi(m[3])
		total, _ := strconv.Atoi(m[4])
		ev.Progress = &Progress{Phase: strings.ToLower(strings.TrimSpace(m[1])), Percent: pct, Done: done, Total: total}
	} else {
		ev.Log = &Log{Level: slog.LevelInfo, Message: s}
	}
	w.emit(ev)
}
