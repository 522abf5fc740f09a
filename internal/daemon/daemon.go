// Package daemon republishes the site on an interval and exposes health and
// metrics over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/pipeline"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Runner performs one publish run.
type Runner interface {
	Publish(ctx context.Context) (pipeline.Report, error)
}

// Options configure a Daemon.
type Options struct {
	Interval    time.Duration
	MetricsAddr string        // empty disables the HTTP server
	Gatherer    prom.Gatherer // served on /metrics
	Watcher     *theme.Watcher
	RunOnStart  bool
}

// RunInfo describes the most recent publish run.
type RunInfo struct {
	RunID    string        `json:"run_id"`
	Finished time.Time     `json:"finished"`
	Duration time.Duration `json:"duration"`
	Commit   string        `json:"commit,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Daemon owns the scheduler, the theme watcher and the HTTP server.
type Daemon struct {
	runner    Runner
	opts      Options
	status    atomic.Value
	startTime time.Time
	lastRun   atomic.Pointer[RunInfo]
	runs      atomic.Int64
	failures  atomic.Int64

	// runMu serializes runs; the session behind the runner is single-threaded.
	runMu sync.Mutex
}

// New creates a stopped daemon.
func New(runner Runner, opts Options) *Daemon {
	d := &Daemon{runner: runner, opts: opts}
	d.status.Store(StatusStopped)
	return d
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// LastRun returns the most recent run, or nil.
func (d *Daemon) LastRun() *RunInfo { return d.lastRun.Load() }

// Run blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.GetStatus() != StatusStopped {
		return ferrors.DaemonError(fmt.Sprintf("daemon is not in stopped state: %s", d.GetStatus())).Build()
	}
	if d.opts.Interval <= 0 {
		return ferrors.ConfigError("daemon interval must be positive").WithContext("field", "daemon.interval").Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	sched, err := NewScheduler()
	if err != nil {
		d.status.Store(StatusError)
		return ferrors.DaemonError("create scheduler").WithCause(err).Build()
	}
	if _, err := sched.ScheduleEvery("publish", d.opts.Interval, d.opts.RunOnStart, func(jobCtx context.Context) {
		_ = d.RunOnce(jobCtx)
	}); err != nil {
		d.status.Store(StatusError)
		return ferrors.DaemonError("schedule publish").WithCause(err).Build()
	}

	var wg sync.WaitGroup
	var srv *http.Server
	serveErr := make(chan error, 1)
	if d.opts.MetricsAddr != "" {
		srv = &http.Server{Addr: d.opts.MetricsAddr, Handler: d.Handler(), ReadHeaderTimeout: 10 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("HTTP server listening", slog.String("addr", d.opts.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}
	if d.opts.Watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.opts.Watcher.Run(ctx); err != nil {
				slog.Warn("Theme watcher stopped", logfields.Error(err))
			}
		}()
	}

	sched.Start()
	d.status.Store(StatusRunning)
	slog.Info("Daemon running", slog.Duration("interval", d.opts.Interval))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = ferrors.DaemonError("http server failed").WithCause(err).Build()
	}

	d.status.Store(StatusStopping)
	if err := sched.Stop(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	if runErr != nil {
		// the watcher only stops with ctx
		d.status.Store(StatusError)
		return runErr
	}
	wg.Wait()
	d.status.Store(StatusStopped)
	slog.Info("Daemon stopped")
	return nil
}

// RunOnce performs a publish run and records its outcome.
func (d *Daemon) RunOnce(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	start := time.Now()
	report, err := d.runner.Publish(ctx)
	info := &RunInfo{RunID: report.RunID, Finished: time.Now(), Duration: time.Since(start), Commit: report.Result.Commit}
	d.runs.Add(1)
	if err != nil {
		d.failures.Add(1)
		info.Error = err.Error()
		slog.Error("Scheduled publish failed", logfields.RunID(report.RunID), logfields.Error(err))
	}
	d.lastRun.Store(info)
	return err
}
