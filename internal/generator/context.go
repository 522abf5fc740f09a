package generator

import (
	"html/template"
	"time"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
)

// SiteContext is exposed to templates as .Site.
type SiteContext struct {
	ThemeName   string
	GeneratedAt time.Time
	RSSMode     site.RSSMode
	RSSLength   int
	RSSURL      string // empty when the feed is disabled
	Fields      map[string]any
	Articles    []*ArticleContext // published only, newest first
	Pages       map[string]string // page name -> URL
	Styles      []string
	Scripts     []string
}

// ArticleContext is exposed to templates as .Article and in .Site.Articles.
type ArticleContext struct {
	NoteID     string
	Title      string
	URL        string
	Link       string // root-relative URL of the article page
	Tags       []string
	HTML       template.HTML
	Content    string
	CoverImage string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TemplateContext is the data every page template executes with.
type TemplateContext struct {
	PageName string
	Page     map[string]any // decoded field values of the page being rendered
	Site     *SiteContext
	Article  *ArticleContext // article pages only
}
