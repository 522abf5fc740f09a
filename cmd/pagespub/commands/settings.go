package commands

import (
	"context"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
)

// SettingsCmd shows or changes the feed settings.
type SettingsCmd struct {
	RSSMode   string `name:"rss-mode" help:"Feed mode: full, digest or none"`
	RSSLength *int   `name:"rss-length" help:"Number of articles in the feed"`
}

func (c *SettingsCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	app, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer app.Close()

	current := app.Session.Site()
	if c.RSSMode != "" || c.RSSLength != nil {
		mode := current.RSSMode
		if c.RSSMode != "" {
			if mode, err = site.ParseRSSMode(c.RSSMode); err != nil {
				return err
			}
		}
		length := current.RSSLength
		if c.RSSLength != nil {
			length = *c.RSSLength
		}
		if err := app.Session.UpdateSettings(ctx, mode, length); err != nil {
			return err
		}
		current = app.Session.Site()
	}

	generated := "never"
	if current.GeneratedAt != nil {
		generated = formatTime(*current.GeneratedAt)
	}
	printf(g, "theme:        %s\n", current.ThemeName)
	printf(g, "rss mode:     %s\n", current.RSSMode)
	printf(g, "rss length:   %d\n", current.RSSLength)
	printf(g, "generated at: %s\n", generated)
	return nil
}
