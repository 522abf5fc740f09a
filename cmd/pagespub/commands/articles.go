package commands

import (
	"context"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ArticlesCmd groups article subcommands.
type ArticlesCmd struct {
	List      ArticlesListCmd      `cmd:"" default:"1" help:"List articles"`
	Add       ArticlesAddCmd       `cmd:"" help:"Turn a note into an article"`
	Publish   ArticlesPublishCmd   `cmd:"" help:"Mark an article as published"`
	Unpublish ArticlesUnpublishCmd `cmd:"" help:"Mark an article as unpublished"`
	URL       ArticlesURLCmd       `cmd:"" name:"url" help:"Change the URL of an article"`
	Remove    ArticlesRemoveCmd    `cmd:"" help:"Remove an article (the note is untouched)"`
	Sync      ArticlesSyncCmd      `cmd:"" help:"Refresh articles from their notes"`
}

type ArticlesListCmd struct {
	Published bool `help:"Only published articles, newest first"`
}

func (c *ArticlesListCmd) Run(g *Global, root *CLI) error {
	app, err := openApp(context.Background(), root)
	if err != nil {
		return err
	}
	defer app.Close()

	articles := app.Session.Articles()
	if c.Published {
		articles = app.Session.PublishedArticles()
	}
	t := newTable(g.Out, table.Row{"NOTE", "TITLE", "URL", "TAGS", "PUBLISHED", "UPDATED"})
	for _, a := range articles {
		published := ""
		if a.Published {
			published = "yes"
		}
		t.AppendRow(table.Row{a.NoteID, a.Title, a.URL, strings.Join(a.Tags, ", "), published, formatTime(a.UpdatedAt)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", len(articles)})
	t.Render()
	return nil
}

type ArticlesAddCmd struct {
	NoteID  string `arg:"" help:"Note id"`
	Publish bool   `help:"Publish right away"`
}

func (c *ArticlesAddCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	a, err := app.Session.AddArticle(ctx, c.NoteID)
	if err != nil {
		return err
	}
	if c.Publish {
		if err := app.Session.SetPublished(ctx, c.NoteID, true); err != nil {
			return err
		}
	}
	printf(g, "Added %q with url %q\n", a.Title, a.URL)
	return nil
}

type ArticlesPublishCmd struct {
	NoteID string `arg:"" help:"Note id"`
}

func (c *ArticlesPublishCmd) Run(g *Global, root *CLI) error {
	return setPublished(g, root, c.NoteID, true)
}

type ArticlesUnpublishCmd struct {
	NoteID string `arg:"" help:"Note id"`
}

func (c *ArticlesUnpublishCmd) Run(g *Global, root *CLI) error {
	return setPublished(g, root, c.NoteID, false)
}

func setPublished(g *Global, root *CLI, noteID string, published bool) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Session.SetPublished(ctx, noteID, published); err != nil {
		return err
	}
	state := "unpublished"
	if published {
		state = "published"
	}
	printf(g, "Article %s %s\n", noteID, state)
	return nil
}

type ArticlesURLCmd struct {
	NoteID string `arg:"" help:"Note id"`
	URL    string `arg:"" help:"New URL; made unique if taken"`
}

func (c *ArticlesURLCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	url, err := app.Session.SetArticleURL(ctx, c.NoteID, c.URL)
	if err != nil {
		return err
	}
	printf(g, "Article %s url set to %q\n", c.NoteID, url)
	return nil
}

type ArticlesRemoveCmd struct {
	NoteID string `arg:"" help:"Note id"`
}

func (c *ArticlesRemoveCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Session.RemoveArticle(ctx, c.NoteID); err != nil {
		return err
	}
	printf(g, "Removed article %s\n", c.NoteID)
	return nil
}

type ArticlesSyncCmd struct{}

func (c *ArticlesSyncCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Session.SyncArticles(ctx)
	if err != nil {
		return err
	}
	printf(g, "Checked %d articles, %d updated\n", report.Checked, report.Updated)
	for _, id := range report.Missing {
		printf(g, "  note %s no longer exists\n", id)
	}
	return nil
}
