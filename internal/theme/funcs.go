package theme

import (
	"encoding/json"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"
)

// momentTokens converts moment.js style date tokens (used by theme authors and the
// dateFormat field) to Go layout fragments. Longer tokens come first.
var momentTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"M", "1",
	"dddd", "Monday",
	"ddd", "Mon",
	"DD", "02",
	"D", "2",
	"HH", "15",
	"hh", "03",
	"h", "3",
	"mm", "04",
	"m", "4",
	"ss", "05",
	"s", "5",
	"A", "PM",
	"a", "pm",
	"ZZ", "-0700",
	"Z", "-07:00",
)

// MomentLayout converts a moment.js date format into a Go time layout.
func MomentLayout(format string) string {
	return momentTokens.Replace(format)
}

// FormatDate formats t with a moment.js style format. Text inside [brackets] is
// copied verbatim.
func FormatDate(t time.Time, format string) string {
	if format == "" {
		format = "YYYY-MM-DD HH:mm"
	}
	var b strings.Builder
	for format != "" {
		open := strings.IndexByte(format, '[')
		if open < 0 {
			b.WriteString(t.Format(MomentLayout(format)))
			break
		}
		n := strings.IndexByte(format[open:], ']')
		if n < 0 {
			// unterminated escape is plain text, as in moment
			b.WriteString(t.Format(MomentLayout(format)))
			break
		}
		b.WriteString(t.Format(MomentLayout(format[:open])))
		b.WriteString(format[open+1 : open+n])
		format = format[open+n+1:]
	}
	return b.String()
}

// FuncMap returns the helpers available to every theme template. "markdown" is a
// placeholder that escapes its input; the generator rebinds it to the real renderer.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"markdown": func(s any) template.HTML {
			return template.HTML(template.HTMLEscapeString(ToString(s))) //nolint:gosec // escaped above
		},
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, fmt.Errorf("dict expects key/value pairs")
			}
			m := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				k, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is not a string", kv[i])
				}
				m[k] = kv[i+1]
			}
			return m, nil
		},
		"formatDate": func(v any, format string) string {
			switch t := v.(type) {
			case time.Time:
				return FormatDate(t, format)
			case *time.Time:
				if t == nil {
					return ""
				}
				return FormatDate(*t, format)
			}
			return fmt.Sprint(v)
		},
		"asset": func(p string) string {
			return "/" + path.Join(AssetsPrefix, strings.TrimPrefix(p, "/"))
		},
		"json": func(v any) (template.JS, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return template.JS(b), nil //nolint:gosec // json encoding
		},
		"safeHTML": func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec // theme-controlled
		"join":     strings.Join,
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}
			return v
		},
	}
}

// ToString renders a field value as text; nil becomes the empty string.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// AssetsPrefix is the output directory theme assets are published under.
const AssetsPrefix = "_assets"
