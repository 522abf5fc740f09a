package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/pipeline"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Output string `short:"o" help:"Output directory (defaults to workspace.output_dir)"`
	NoSync bool   `help:"Render articles as stored, without refreshing them from notes"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	dir := c.Output
	if dir == "" {
		dir = app.Config.Workspace.OutputDir
	}
	p := pipeline.New(pipeline.Deps{
		Session:   app.Session,
		Generator: app.generator(),
		Recorder:  app.Recorder,
		OutputDir: dir,
	})

	var n int
	if c.NoSync {
		out, err := p.Render(ctx)
		if err != nil {
			return err
		}
		n = len(out)
	} else {
		out, sync, err := p.Generate(ctx)
		if err != nil {
			return err
		}
		n = len(out)
		printf(g, "Synced %d articles (%d updated)\n", sync.Checked, sync.Updated)
	}
	printf(g, "Wrote %d files to %s\n", n, dir)
	return nil
}
