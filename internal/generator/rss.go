package generator

import (
	"strings"
	"unicode"

	"github.com/gorilla/feeds"
	"golang.org/x/net/html"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/site"
)

// FeedPath is the output path of the RSS feed.
const FeedPath = "rss.xml"

// feedItems returns the articles that go into the feed: at most length of the
// newest ones, none when the feed is disabled.
func feedItems(mode site.RSSMode, length int, articles []*ArticleContext) []*ArticleContext {
	if mode == site.RSSNone || length <= 0 {
		return nil
	}
	if len(articles) > length {
		return articles[:length]
	}
	return articles
}

func buildFeed(sc *SiteContext, baseURL, title, description string, digestLength int) (string, error) {
	abs := func(p string) string { return strings.TrimRight(baseURL, "/") + p }
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: abs("/")},
		Description: description,
		Created:     sc.GeneratedAt,
		Updated:     sc.GeneratedAt,
	}
	for _, a := range feedItems(sc.RSSMode, sc.RSSLength, sc.Articles) {
		item := &feeds.Item{
			Id:      abs(a.Link),
			Title:   a.Title,
			Link:    &feeds.Link{Href: abs(a.Link)},
			Created: a.CreatedAt,
			Updated: a.UpdatedAt,
		}
		if sc.RSSMode == site.RSSDigest {
			item.Description = Digest(string(a.HTML), digestLength)
		} else {
			item.Description = string(a.HTML)
			item.Content = string(a.HTML)
		}
		feed.Items = append(feed.Items, item)
	}
	return feed.ToRss()
}

// Digest reduces rendered HTML to plain text of at most n runes, ending with an
// ellipsis when it was cut.
func Digest(fragment string, n int) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return truncateRunes(collapseSpace(b.String()), n)
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				} else if skip > 0 {
					skip--
				}
			}
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRightFunc(string(r[:n]), unicode.IsSpace) + "…"
}
