package commands

import (
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	printf(g, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	printf(g, "Initialized. Set git.url and notes.dir, then run `pagespub publish`.\n")
	return nil
}
