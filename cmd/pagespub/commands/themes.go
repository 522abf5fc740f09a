package commands

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ThemesCmd groups theme subcommands.
type ThemesCmd struct {
	List ThemesListCmd `cmd:"" default:"1" help:"List installed and built-in themes"`
	Use  ThemesUseCmd  `cmd:"" help:"Switch the site to another theme"`
}

type ThemesListCmd struct{}

func (c *ThemesListCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	infos, err := app.Session.Themes()
	if err != nil {
		return err
	}
	active := ""
	if th, err := app.Session.Theme(); err == nil {
		active = th.Name
	}

	t := newTable(g.Out, table.Row{"", "NAME", "TITLE", "VERSION", "SOURCE"})
	for _, info := range infos {
		mark, source := "", "installed"
		if info.Name == active {
			mark = "*"
		}
		if info.Builtin {
			source = "built-in"
		}
		t.AppendRow(table.Row{mark, info.Name, info.Title, info.Version, source})
	}
	t.Render()
	return nil
}

type ThemesUseCmd struct {
	Name string `arg:"" help:"Theme name"`
}

func (c *ThemesUseCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Session.SwitchTheme(ctx, c.Name); err != nil {
		return err
	}
	printf(g, "Theme switched to %s\n", c.Name)
	return nil
}
