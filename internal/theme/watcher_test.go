package theme

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, dir, name string) {
	t.Helper()
	for p, f := range blogFS() {
		rest, ok := strings.CutPrefix(p, name+"/")
		if !ok {
			continue
		}
		target := filepath.Join(dir, name, filepath.FromSlash(rest))
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o750))
		require.NoError(t, os.WriteFile(target, f.Data, 0o600))
	}
}

func TestWatcherReloadsActiveTheme(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "blog")

	m := NewManager(dir, "default")
	_, err := m.Load("blog")
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		reloads []*Theme
	)
	w, err := NewWatcher(dir, m, func(th *Theme, err error) {
		assert.NoError(t, err)
		mu.Lock()
		reloads = append(reloads, th)
		mu.Unlock()
	})
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	index := filepath.Join(dir, "blog", "templates", "index.html")
	// keep touching the file until the watch is in place and a reload lands
	require.Eventually(t, func() bool {
		_ = os.WriteFile(index, []byte(`changed`), 0o600)
		mu.Lock()
		defer mu.Unlock()
		return len(reloads) > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	active := m.Active()
	require.NotNil(t, active)
	assert.Equal(t, "blog", active.Name)
	assert.True(t, active.HasTemplate("index"))
}

func TestWatcherIdleForBuiltinTheme(t *testing.T) {
	m := NewManagerWithLoaders("default", BuiltinLoader())
	_, err := m.Load("default")
	require.NoError(t, err)

	w, err := NewWatcher(t.TempDir(), m, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx))
}
