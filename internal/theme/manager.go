package theme

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
)

// Manager owns the active theme. A failed load never replaces the active theme;
// when no theme was ever loaded, the fallback theme is activated instead.
type Manager struct {
	mu       sync.RWMutex
	loaders  []*Loader // searched in order; installed themes shadow built-ins
	fallback string
	active   *Theme
}

// NewManager creates a manager searching dir (may be empty) and then the built-in themes.
func NewManager(dir, fallback string) *Manager {
	var loaders []*Loader
	if dir != "" {
		loaders = append(loaders, NewLoader(os.DirFS(dir)))
	}
	loaders = append(loaders, BuiltinLoader())
	return NewManagerWithLoaders(fallback, loaders...)
}

// NewManagerWithLoaders creates a manager from explicit loaders (tests, embedding).
func NewManagerWithLoaders(fallback string, loaders ...*Loader) *Manager {
	return &Manager{loaders: loaders, fallback: fallback}
}

// Active returns the active theme, or nil before the first Load.
func (m *Manager) Active() *Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Load activates the theme called name. On failure the previously active theme is
// kept (or the fallback is activated if none was) and the ThemeLoadError is returned
// for reporting.
func (m *Manager) Load(name string) (*Theme, error) {
	th, err := m.find(name)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		prev := ""
		if m.active != nil {
			prev = m.active.Name
		}
		m.active = th
		slog.Info("Theme activated", logfields.Theme(name), slog.String("previous", prev))
		return th, nil
	}

	slog.Warn("Theme load failed", logfields.Theme(name), logfields.Error(err))
	if m.active == nil {
		fb, fbErr := m.find(m.fallback)
		if fbErr != nil {
			return nil, errors.Join(err, ferrors.InvariantViolation("fallback theme cannot be loaded").
				WithCause(fbErr).
				WithContext("theme", m.fallback).
				Build())
		}
		m.active = fb
		slog.Info("Fallback theme activated", logfields.Theme(fb.Name))
	}
	return m.active, err
}

func (m *Manager) find(name string) (*Theme, error) {
	for _, l := range m.loaders {
		// a broken installed bundle must not fall through to a built-in of the same name
		if l.Has(name) {
			return l.Load(name)
		}
	}
	return nil, ferrors.ThemeLoadError("theme not installed").
		WithCause(fs.ErrNotExist).
		WithContext("theme", name).
		Build()
}

// Themes enumerates every installed theme; installed bundles shadow built-ins with
// the same name. Listing does not change the active theme.
func (m *Manager) Themes() ([]Info, error) {
	seen := map[string]bool{}
	var out []Info
	for _, l := range m.loaders {
		infos, err := l.List()
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if seen[info.Name] {
				continue
			}
			seen[info.Name] = true
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
