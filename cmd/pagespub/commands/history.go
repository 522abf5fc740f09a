package commands

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of runs to show" default:"10"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	h := app.history()
	if h == nil {
		return ferrors.ConfigError("the configured store does not keep a publish history").
			WithContext("driver", string(app.Config.Store.Driver)).
			Build()
	}
	records, err := h.History(ctx, c.Limit)
	if err != nil {
		return err
	}
	t := newTable(g.Out, table.Row{"AT", "RUN", "COMMIT", "ADDED", "REMOVED", "ERROR"})
	for _, r := range records {
		t.AppendRow(table.Row{formatTime(r.At), short(r.RunID), short(r.Commit), r.Added, r.Removed, preview(r.Error)})
	}
	t.Render()
	return nil
}
