package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/field"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// SiteCmd shows or edits site-wide fields.
type SiteCmd struct {
	Show SiteShowCmd `cmd:"" default:"1" help:"Show site fields"`
	Set  SiteSetCmd  `cmd:"" help:"Set site fields (name=value ...)"`
}

type SiteShowCmd struct{}

func (c *SiteShowCmd) Run(g *Global, root *CLI) error {
	app, err := openApp(context.Background(), root)
	if err != nil {
		return err
	}
	defer app.Close()

	th, err := app.Session.Theme()
	if err != nil {
		return err
	}
	vars, err := app.Session.SiteFieldVars()
	if err != nil {
		return err
	}
	printFields(g, th.SiteFields, vars)
	return nil
}

type SiteSetCmd struct {
	Values []string `arg:"" help:"Assignments like title=\"My Notes\"; values are parsed as YAML"`
}

func (c *SiteSetCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	values, err := parseAssignments(c.Values)
	if err != nil {
		return err
	}
	current, err := app.Session.SiteFieldVars()
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	if err := app.Session.SaveSiteFields(ctx, current); err != nil {
		return err
	}
	printf(g, "Saved %d site field(s)\n", len(values))
	return nil
}

// PageCmd shows or edits the fields of one page.
type PageCmd struct {
	Show PageShowCmd `cmd:"" default:"withargs" help:"Show page fields"`
	Set  PageSetCmd  `cmd:"" help:"Set page fields (name=value ...)"`
}

type PageShowCmd struct {
	Name string `arg:"" help:"Page name" default:"index"`
}

func (c *PageShowCmd) Run(g *Global, root *CLI) error {
	app, err := openApp(context.Background(), root)
	if err != nil {
		return err
	}
	defer app.Close()

	p, err := app.Session.Page(c.Name)
	if err != nil {
		return err
	}
	printFields(g, p.Fields(), p.FieldVars())
	return nil
}

type PageSetCmd struct {
	Name   string   `arg:"" help:"Page name"`
	Values []string `arg:"" help:"Assignments like intro=\"Hello\"; values are parsed as YAML"`
}

func (c *PageSetCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	values, err := parseAssignments(c.Values)
	if err != nil {
		return err
	}
	p, err := app.Session.Page(c.Name)
	if err != nil {
		return err
	}
	current := p.FieldVars()
	for k, v := range values {
		current[k] = v
	}
	if err := app.Session.SavePage(ctx, c.Name, current); err != nil {
		return err
	}
	printf(g, "Saved %d field(s) of page %s\n", len(values), c.Name)
	return nil
}

func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, ferrors.ValidationError(fmt.Sprintf("expected name=value, got %q", arg)).Build()
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			// not YAML; keep the raw text
			v = raw
		}
		if v == nil {
			v = ""
		}
		out[name] = v
	}
	return out, nil
}

func printFields(g *Global, fields []field.Field, values map[string]any) {
	t := newTable(g.Out, table.Row{"NAME", "LABEL", "TYPE", "VALUE"})
	seen := make([]string, 0, len(fields))
	for _, f := range fields {
		seen = append(seen, f.Name)
		t.AppendRow(table.Row{f.Name, f.DisplayLabel(), f.InputType, preview(values[f.Name])})
	}
	// values kept for fields the theme no longer declares
	extra := make([]string, 0)
	for k := range values {
		if !slices.Contains(seen, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		t.AppendRow(table.Row{k, "", "(unused)", preview(values[k])})
	}
	t.Render()
}

func preview(v any) string {
	s := strings.ReplaceAll(fmt.Sprint(v), "\n", " ")
	if v == nil {
		s = ""
	}
	if r := []rune(s); len(r) > 60 {
		s = string(r[:59]) + "…"
	}
	return s
}
