package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/daemon"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/pipeline"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/retry"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Interval   time.Duration `help:"Override daemon.interval"`
	NoStartRun bool          `help:"Wait one interval before the first publish"`
}

func (c *DaemonCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Config.RequirePublishTarget(); err != nil {
		return err
	}

	interval := c.Interval
	if interval <= 0 {
		if interval, err = time.ParseDuration(app.Config.Daemon.Interval); err != nil {
			return ferrors.ConfigError("invalid daemon.interval").WithCause(err).Build()
		}
	}
	app.Registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))

	w := app.worker()
	stopEvents := watchEvents(g, app, w)
	defer func() {
		_ = w.Close()
		stopEvents()
	}()

	var watcher *theme.Watcher
	if app.Config.Daemon.WatchThemes {
		watcher, err = theme.NewWatcher(app.Config.Themes.Dir, app.Themes, func(th *theme.Theme, err error) {
			if err != nil {
				slog.Warn("Theme reload failed; keeping previous templates", logfields.Error(err))
				return
			}
			slog.Info("Theme reloaded", logfields.Theme(th.Name))
		})
		if err != nil {
			return err
		}
	}

	p := pipeline.New(pipeline.Deps{
		Session:   app.Session,
		Generator: app.generator(),
		Publisher: w,
		History:   app.history(),
		Recorder:  app.Recorder,
		Policy:    retry.FromConfig(app.Config.Publish),
		Git:       app.gitInfo(),
		Auth:      app.authInfo(),
	})
	d := daemon.New(p, daemon.Options{
		Interval:    interval,
		MetricsAddr: app.Config.Daemon.MetricsAddr,
		Gatherer:    app.Registry,
		Watcher:     watcher,
		RunOnStart:  !c.NoStartRun,
	})
	slog.Info("Starting daemon", slog.Duration("interval", interval), slog.String("metrics_addr", app.Config.Daemon.MetricsAddr))
	return d.Run(ctx)
}
