package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/pipeline"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/publisher"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/retry"
)

// RepoCmd groups shadow repository subcommands.
type RepoCmd struct {
	Init RepoInitCmd `cmd:"" help:"Recreate the shadow repository from the remote branch"`
}

type RepoInitCmd struct{}

func (c *RepoInitCmd) Run(g *Global, root *CLI) error {
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

	w := app.worker()
	stop := watchEvents(g, app, w)
	err = w.InitRepo(ctx, app.gitInfo(), app.authInfo())
	_ = w.Close()
	stop()
	if err != nil {
		return err
	}
	printf(g, "Shadow repository ready at %s\n", w.Dir())
	return nil
}

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	NoRetry bool `help:"Fail on the first network error instead of retrying"`
}

func (c *PublishCmd) Run(g *Global, root *CLI) error {
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

	policy := retry.FromConfig(app.Config.Publish)
	if c.NoRetry {
		policy.MaxRetries = 0
	}
	w := app.worker()
	stop := watchEvents(g, app, w)
	p := pipeline.New(pipeline.Deps{
		Session:   app.Session,
		Generator: app.generator(),
		Publisher: w,
		History:   app.history(),
		Recorder:  app.Recorder,
		Policy:    policy,
		Git:       app.gitInfo(),
		Auth:      app.authInfo(),
	})
	printf(g, "Publishing to %s (%s); press Ctrl+C within %s to cancel\n", app.Config.Git.URL, app.Config.Git.Branch, app.Config.Git.GraceDelay)
	report, err := p.Publish(ctx)
	_ = w.Close()
	stop()
	if err != nil {
		return err
	}

	res := report.Result
	switch {
	case res.Pushed:
		printf(g, "Published %s: %d files, %d added, %d removed\n", short(res.Commit), report.Files, len(res.Added), len(res.Removed))
	default:
		printf(g, "Nothing to publish; remote already at %s\n", short(res.Commit))
	}
	return nil
}

// watchEvents prints worker progress and relays it to NATS when configured.
// The returned func waits for the event stream to end; call it after closing w.
func watchEvents(g *Global, app *App, w *publisher.Worker) func() {
	var relay *publisher.NATSRelay
	if url := app.Config.Events.NATSURL; url != "" {
		r, err := publisher.NewNATSRelay(url, app.Config.Events.Subject)
		if err != nil {
			slog.Warn("Publish events will not be relayed", logfields.URL(url), logfields.Error(err))
		} else {
			relay = r
		}
	}

	var wg sync.WaitGroup
	var relayed chan publisher.Event
	if relay != nil {
		relayed = make(chan publisher.Event, 64)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Forward(context.Background(), relayed)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if relayed != nil {
			defer close(relayed)
		}
		last := ""
		for ev := range w.Events() {
			if relayed != nil {
				relayed <- ev
			}
			if line := eventLine(ev); line != "" && line != last {
				printf(g, "%s\n", line)
				last = line
			}
		}
	}()
	return func() {
		wg.Wait()
		if relay != nil {
			_ = relay.Close()
		}
	}
}

func eventLine(ev publisher.Event) string {
	switch {
	case ev.Progress != nil:
		p := ev.Progress
		// only phase boundaries, per-file staging is too chatty
		if p.Percent != 100 && p.Done != 0 {
			return ""
		}
		if p.Total > 1 {
			return fmt.Sprintf("  %-16s %3d%% (%d/%d)", p.Phase, p.Percent, p.Done, p.Total)
		}
		return fmt.Sprintf("  %-16s %3d%%", p.Phase, p.Percent)
	case ev.Log != nil && ev.Log.Level >= slog.LevelWarn:
		return "  " + ev.Log.Message
	}
	return ""
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
