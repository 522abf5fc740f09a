// Package site holds the per-workspace site record and the article collection.
package site

import (
	"fmt"
	"maps"
	"time"
)

// RSSMode selects what the generated feed contains.
type RSSMode string

const (
	RSSFull   RSSMode = "full"
	RSSDigest RSSMode = "digest"
	RSSNone   RSSMode = "none"
)

// DefaultRSSLength is the feed size of a new site.
const DefaultRSSLength = 10

// ParseRSSMode validates a mode name.
func ParseRSSMode(s string) (RSSMode, error) {
	switch m := RSSMode(s); m {
	case RSSFull, RSSDigest, RSSNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown rss mode %q (full|digest|none)", s)
}

// ThemeValues are the values a user saved for one theme.
type ThemeValues struct {
	Site  map[string]any            `json:"site"`
	Pages map[string]map[string]any `json:"pages"`
}

// Site is the singleton site record of a workspace.
type Site struct {
	ThemeName   string                 `json:"themeName"`
	RSSMode     RSSMode                `json:"rssMode"`
	RSSLength   int                    `json:"rssLength"`
	GeneratedAt *time.Time             `json:"generatedAt,omitempty"`
	Custom      map[string]ThemeValues `json:"custom"`
}

// New returns a site with default feed settings.
func New() *Site {
	return &Site{RSSMode: RSSFull, RSSLength: DefaultRSSLength, Custom: map[string]ThemeValues{}}
}

// Normalize fills zero fields of a decoded record.
func (s *Site) Normalize() {
	if s.RSSMode == "" {
		s.RSSMode = RSSFull
	}
	if s.RSSLength < 0 {
		s.RSSLength = 0
	}
	if s.Custom == nil {
		s.Custom = map[string]ThemeValues{}
	}
}

// EnsureTheme guarantees value storage for theme name exists.
func (s *Site) EnsureTheme(name string) ThemeValues {
	if s.Custom == nil {
		s.Custom = map[string]ThemeValues{}
	}
	tv := s.Custom[name]
	if tv.Site == nil {
		tv.Site = map[string]any{}
	}
	if tv.Pages == nil {
		tv.Pages = map[string]map[string]any{}
	}
	s.Custom[name] = tv
	return tv
}

// SwitchTheme makes name the active theme. Values saved for other themes are untouched.
func (s *Site) SwitchTheme(name string) {
	s.ThemeName = name
	s.EnsureTheme(name)
}

// Values returns the active theme's values.
func (s *Site) Values() ThemeValues {
	return s.EnsureTheme(s.ThemeName)
}

// PageValues returns a copy of the saved values of page under the active theme.
func (s *Site) PageValues(page string) map[string]any {
	return maps.Clone(s.Values().Pages[page])
}

// SetPageValues replaces the saved values of page under the active theme.
func (s *Site) SetPageValues(page string, values map[string]any) {
	s.Values().Pages[page] = maps.Clone(values)
}

// SiteValues returns a copy of the active theme's site field values.
func (s *Site) SiteValues() map[string]any {
	return maps.Clone(s.Values().Site)
}

// SetSiteValues merges values into the active theme's site field values.
func (s *Site) SetSiteValues(values map[string]any) {
	tv := s.Values()
	for k, v := range values {
		tv.Site[k] = v
	}
}
