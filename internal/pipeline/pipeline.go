// Package pipeline chains article sync, site generation and publishing. Both the
// CLI and the daemon drive publishing through it.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/generator"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/metrics"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/publisher"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/retry"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/session"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/store"
)

// Publisher is the git side of a run. *publisher.Worker implements it.
type Publisher interface {
	InitRepo(ctx context.Context, git publisher.GitInfo, auth publisher.AuthInfo) error
	Publish(ctx context.Context, git publisher.GitInfo, auth publisher.AuthInfo, files publisher.Files) (publisher.Result, error)
}

// Deps wires a Pipeline.
type Deps struct {
	Session   *session.Session
	Generator *generator.Generator
	Publisher Publisher     // required by Publish only
	History   store.History // optional publish log
	Recorder  metrics.Recorder
	Policy    retry.Policy
	Git       publisher.GitInfo
	Auth      publisher.AuthInfo
	OutputDir string // when set, generated files are also written here
	Now       func() time.Time
}

// Pipeline runs sync, generate and publish in order.
type Pipeline struct {
	d Deps
}

// New creates a pipeline.
func New(d Deps) *Pipeline {
	d.Recorder = metrics.OrNoop(d.Recorder)
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Pipeline{d: d}
}

// Report summarizes a pipeline run.
type Report struct {
	RunID    string
	Sync     session.SyncReport
	Files    int
	Result   publisher.Result
	Attempts int
}

// Generate refreshes articles from their notes and renders the site.
func (p *Pipeline) Generate(ctx context.Context) (generator.Output, session.SyncReport, error) {
	sync, err := p.d.Session.SyncArticles(ctx)
	if err != nil {
		return nil, sync, err
	}
	out, err := p.Render(ctx)
	return out, sync, err
}

// Render generates the site from the articles as stored.
func (p *Pipeline) Render(ctx context.Context) (generator.Output, error) {
	out, err := p.d.Generator.Generate(ctx, p.d.Session)
	if err != nil {
		return nil, err
	}
	if p.d.OutputDir != "" {
		if err := generator.WriteOutput(p.d.OutputDir, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Publish generates the site and pushes it. Network failures are retried with
// the configured policy; the shadow repository is initialized on first use.
func (p *Pipeline) Publish(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	log := slog.With(logfields.RunID(report.RunID))

	out, sync, err := p.Generate(ctx)
	report.Sync = sync
	if err != nil {
		p.record(ctx, report, err)
		return report, err
	}
	files := publisher.Files(out)
	report.Files = len(files)

	onRetry := func(attempt int, delay time.Duration, err error) {
		p.d.Recorder.IncPublishRetry()
		log.Warn("Publish failed, retrying", slog.Int("attempt", attempt), slog.Duration("delay", delay), logfields.Error(err))
	}
	err = p.d.Policy.Do(ctx, publisher.IsRetryable, onRetry, func(ctx context.Context) error {
		report.Attempts++
		res, err := p.d.Publisher.Publish(ctx, p.d.Git, p.d.Auth, files)
		if errors.Is(err, publisher.ErrNoRepository) {
			log.Info("Shadow repository missing or stale, initializing")
			if err := p.d.Publisher.InitRepo(ctx, p.d.Git, p.d.Auth); err != nil {
				return err
			}
			res, err = p.d.Publisher.Publish(ctx, p.d.Git, p.d.Auth, files)
		}
		report.Result = res
		return err
	})
	p.record(ctx, report, err)
	if err != nil {
		return report, err
	}
	log.Info("Site published",
		logfields.Commit(report.Result.Commit),
		slog.Int("added", len(report.Result.Added)),
		slog.Int("removed", len(report.Result.Removed)),
		slog.Bool("pushed", report.Result.Pushed))
	return report, nil
}

func (p *Pipeline) record(ctx context.Context, report Report, runErr error) {
	if p.d.History == nil {
		return
	}
	rec := store.PublishRecord{
		RunID:   report.RunID,
		Commit:  report.Result.Commit,
		Added:   len(report.Result.Added),
		Removed: len(report.Result.Removed),
		At:      p.d.Now(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := p.d.History.RecordPublish(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("Failed to record publish history", logfields.RunID(report.RunID), logfields.Error(err))
	}
}
