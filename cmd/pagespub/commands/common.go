package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jedib0t/go-pretty/v6/table"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/config"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/generator"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/markdown"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/metrics"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/notes"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/publisher"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/session"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/store"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/theme"
)

// Global carries state shared by every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"pagespub.yaml" env:"PAGESPUB_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Themes   ThemesCmd   `cmd:"" help:"List and select themes"`
	Articles ArticlesCmd `cmd:"" help:"Manage articles built from notes"`
	Site     SiteCmd     `cmd:"" help:"Show or edit site fields"`
	Page     PageCmd     `cmd:"" help:"Show or edit page fields"`
	Settings SettingsCmd `cmd:"" help:"Show or change feed settings"`
	Generate GenerateCmd `cmd:"" help:"Generate the static site into a directory"`
	Repo     RepoCmd     `cmd:"" help:"Manage the shadow git repository"`
	Publish  PublishCmd  `cmd:"" help:"Generate the site and push it to the git remote"`
	History  HistoryCmd  `cmd:"" help:"Show recent publish runs"`
	Daemon   DaemonCmd   `cmd:"" help:"Republish on an interval and serve health and metrics"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	format := config.LogFormatText
	// the config may not exist yet (init); logging falls back to defaults
	if cfg, err := config.Load(c.Config); err == nil {
		level = slogLevel(cfg.Logging.Level)
		format = cfg.Logging.Format
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	g.Logger = slog.New(h)
	slog.SetDefault(g.Logger)
	if g.Out == nil {
		g.Out = os.Stdout
	}
	return nil
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// App is the loaded workspace: configuration, settings store, themes and session.
type App struct {
	Config   *config.Config
	KV       store.KV
	Themes   *theme.Manager
	Session  *session.Session
	Registry *prom.Registry
	Recorder metrics.Recorder
}

// openApp loads the configuration and the persisted workspace.
func openApp(ctx context.Context, root *CLI) (*App, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	kv, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	themes := theme.NewManager(cfg.Themes.Dir, cfg.Themes.Fallback)
	sess := session.New(kv, themes, notes.NewDirSource(cfg.Notes.Dir), session.Options{
		DefaultTheme: cfg.Themes.Default,
		PageSize:     cfg.Notes.PageSize,
	})
	report, err := sess.Load(ctx)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	if report.ThemeErr != nil {
		active, _ := sess.Theme()
		name := ""
		if active != nil {
			name = active.Name
		}
		slog.Warn("Selected theme failed to load; using another one", logfields.Theme(name), logfields.Error(report.ThemeErr))
	}

	reg := prom.NewRegistry()
	return &App{
		Config:   cfg,
		KV:       kv,
		Themes:   themes,
		Session:  sess,
		Registry: reg,
		Recorder: metrics.NewPrometheusRecorder(reg),
	}, nil
}

// Close releases the settings store.
func (a *App) Close() {
	if err := a.KV.Close(); err != nil {
		slog.Warn("Failed to close settings store", logfields.Error(err))
	}
}

func (a *App) generator() *generator.Generator {
	return generator.New(generator.Options{
		Renderer:     markdown.NewGoldmark(markdown.WithResourceURL(generator.ResourceURL), markdown.WithHardWraps()),
		Recorder:     a.Recorder,
		DigestLength: a.Config.RSS.DigestLength,
		SiteURL:      a.Config.RSS.SiteURL,
	})
}

func (a *App) gitInfo() publisher.GitInfo {
	g := a.Config.Git
	return publisher.GitInfo{
		URL:     g.URL,
		Branch:  g.Branch,
		Name:    g.AuthorName,
		Email:   g.AuthorEmail,
		Depth:   g.ShallowDepth(),
		Message: g.CommitMessage,
	}
}

func (a *App) authInfo() publisher.AuthInfo {
	user, pass := a.Config.Git.Auth.Credentials()
	return publisher.AuthInfo{Username: user, Password: pass}
}

func (a *App) worker() *publisher.Worker {
	grace, _ := time.ParseDuration(a.Config.Git.GraceDelay)
	return publisher.NewWorker(a.Config.Workspace.RepoDir, publisher.Options{
		GraceDelay: grace,
		Recorder:   a.Recorder,
	})
}

// history returns the publish log when the store keeps one.
func (a *App) history() store.History {
	h, _ := a.KV.(store.History)
	return h
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printf(g *Global, format string, args ...any) {
	_, _ = fmt.Fprintf(g.Out, format, args...)
}
