package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/cmd/pagespub/commands"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Out: os.Stdout}

	parser := kong.Must(cli,
		kong.Name("pagespub"),
		kong.Description("Publish notes as a static site to a git remote."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global, cli),
	)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := kctx.Run(global, cli); err != nil {
		adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.HandleError(err)
	}
}
