// Package publisher owns the shadow git repository and pushes generated sites to
// the configured remote. All git work happens on a single worker goroutine.
package publisher

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/metrics"
)

// GitInfo describes the publishing target.
type GitInfo struct {
	URL     string
	Branch  string
	Name    string // committer name
	Email   string // committer email
	Depth   int    // fetch depth, 0 fetches the full history
	Message string // commit message template, {{time}} expands to RFC3339
}

// AuthInfo carries HTTP basic credentials. Tokens go in Password.
type AuthInfo struct {
	Username string
	Password string
}

// Files maps slash-separated output paths to their content.
type Files map[string][]byte

func (f Files) clone() Files {
	out := make(Files, len(f))
	for k, v := range f {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Result summarizes a publish.
type Result struct {
	Commit  string   // head of the branch after the publish
	Added   []string // paths not present in the previous commit
	Removed []string // paths dropped from the previous commit
	Pushed  bool     // false when the remote was already up to date
}

// Options tune a Worker.
type Options struct {
	GraceDelay  time.Duration // wait before staging; canceling ctx during it aborts the publish
	EventBuffer int
	Now         func() time.Time
	Recorder    metrics.Recorder
	Logger      *slog.Logger
}

type opKind int

const (
	opInit opKind = iota
	opPublish
)

type request struct {
	ctx   context.Context
	op    opKind
	git   GitInfo
	auth  AuthInfo
	files Files
	reply chan response
}

type response struct {
	result Result
	err    error
}

// Worker serializes git operations on the shadow directory.
type Worker struct {
	dir      string
	opts     Options
	requests chan request
	events   chan Event
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// NewWorker starts a worker owning dir.
func NewWorker(dir string, opts Options) *Worker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)

	w := &Worker{
		dir:      dir,
		opts:     opts,
		requests: make(chan request),
		events:   make(chan Event, opts.EventBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// Dir returns the shadow directory.
func (w *Worker) Dir() string { return w.dir }

// Events returns the notification stream. It is closed by Close.
// Events are dropped when the buffer is full.
func (w *Worker) Events() <-chan Event { return w.events }

// Close stops the worker after the in-flight request finishes.
func (w *Worker) Close() error {
	w.once.Do(func() { close(w.done) })
	<-w.stopped
	return nil
}

// InitRepo recreates the shadow repository and fetches the target branch.
func (w *Worker) InitRepo(ctx context.Context, git GitInfo, auth AuthInfo) error {
	_, err := w.call(ctx, request{op: opInit, git: git, auth: auth})
	return err
}

// Publish replaces the branch content with files and pushes it.
func (w *Worker) Publish(ctx context.Context, git GitInfo, auth AuthInfo, files Files) (Result, error) {
	return w.call(ctx, request{op: opPublish, git: git, auth: auth, files: files.clone()})
}

func (w *Worker) call(ctx context.Context, req request) (Result, error) {
	req.ctx = ctx
	req.reply = make(chan response, 1)
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-w.done:
		return Result{}, errors.RuntimeError("publisher worker closed").Build()
	}
	// the worker always answers an accepted request
	resp := <-req.reply
	return resp.result, resp.err
}

func (w *Worker) loop() {
	defer close(w.stopped)
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			var resp response
			switch req.op {
			case opInit:
				resp.err = w.initRepo(req.ctx, req.git, req.auth)
			case opPublish:
				resp.result, resp.err = w.publish(req.ctx, req.git, req.auth, req.files)
			}
			req.reply <- resp
		}
	}
}

func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

func (w *Worker) progress(op, phase string, done, total int) {
	w.emit(Event{Op: op, At: w.opts.Now(), Progress: &Progress{Phase: phase, Percent: percent(done, total), Done: done, Total: total}})
}

func (w *Worker) log(ctx context.Context, op string, level slog.Level, msg string, attrs ...slog.Attr) {
	w.opts.Logger.LogAttrs(ctx, level, msg, attrs...)
	w.emit(Event{Op: op, At: w.opts.Now(), Log: &Log{Level: level, Message: msg}})
}

func (w *Worker) sideband(op string) *progressWriter {
	return &progressWriter{emit: w.emit, op: op, now: w.opts.Now}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
