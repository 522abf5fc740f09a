package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/publisher"
)

// run parses args like the binary does and returns what the command printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cli := &CLI{}
	var out bytes.Buffer
	g := &Global{Out: &out}
	parser, err := kong.New(cli,
		kong.Name("pagespub"),
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }),
		kong.Bind(g, cli),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(g, cli)
	return out.String(), err
}

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	notesDir := filepath.Join(dir, "notes")
	require.NoError(t, os.MkdirAll(notesDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(notesDir, "n1.md"), []byte("---\ntitle: Hello World\ntags: [go]\n---\nFirst post.\n"), 0o600))

	cfg := fmt.Sprintf("workspace:\n  data_dir: %s\n  output_dir: %s\nthemes:\n  dir: %s\nnotes:\n  dir: %s\n",
		filepath.Join(dir, "data"), filepath.Join(dir, "public"), filepath.Join(dir, "themes"), notesDir)
	path := filepath.Join(dir, "pagespub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })
	return path
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagespub.yaml")

	out, err := run(t, "-c", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized")
	assert.FileExists(t, path)

	_, err = run(t, "-c", path, "init")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = run(t, "-c", path, "init", "--force")
	require.NoError(t, err)
}

func TestArticlesAndGenerate(t *testing.T) {
	cfg := workspace(t)

	out, err := run(t, "-c", cfg, "articles", "add", "n1", "--publish")
	require.NoError(t, err)
	assert.Contains(t, out, `Added "Hello World"`)

	out, err = run(t, "-c", cfg, "articles", "list", "--published")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello World")
	assert.Contains(t, out, "yes")

	_, err = run(t, "-c", cfg, "articles", "publish", "missing")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	out, err = run(t, "-c", cfg, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 1 articles")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg), "public", "index.html"))

	out, err = run(t, "-c", cfg, "settings")
	require.NoError(t, err)
	assert.NotContains(t, out, "generated at: never")
}

func TestHistoryWithoutRuns(t *testing.T) {
	cfg := workspace(t)
	out, err := run(t, "-c", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"title=My Notes", "count=3", "tags=[a, b]", "empty=", "flag=true"})
	require.NoError(t, err)
	assert.Equal(t, "My Notes", got["title"])
	assert.Equal(t, 3, got["count"])
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	assert.Equal(t, "", got["empty"])
	assert.Equal(t, true, got["flag"])

	_, err = parseAssignments([]string{"novalue"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = parseAssignments([]string{"=x"})
	require.Error(t, err)
}

func TestEventLine(t *testing.T) {
	tests := []struct {
		name string
		ev   publisher.Event
		want string
	}{
		{"phase start", publisher.Event{Progress: &publisher.Progress{Phase: "push", Percent: 0}}, "  push               0%"},
		{"mid phase", publisher.Event{Progress: &publisher.Progress{Phase: "stage", Percent: 50, Done: 1, Total: 2}}, ""},
		{"phase end", publisher.Event{Progress: &publisher.Progress{Phase: "stage", Percent: 100, Done: 2, Total: 2}}, "  stage            100% (2/2)"},
		{"warning", publisher.Event{Log: &publisher.Log{Level: slog.LevelWarn, Message: "remote branch missing"}}, "  remote branch missing"},
		{"info", publisher.Event{Log: &publisher.Log{Level: slog.LevelInfo, Message: "counting objects"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eventLine(tt.ev))
		})
	}
}

func TestPreviewAndShort(t *testing.T) {
	assert.Equal(t, "", preview(nil))
	assert.Equal(t, "a b", preview("a\nb"))
	long := preview(string(bytes.Repeat([]byte("x"), 100)))
	assert.Equal(t, 60, len([]rune(long)))
	assert.Equal(t, "abcdef12", short("abcdef1234567890"))
	assert.Equal(t, "abc", short("abc"))
}
