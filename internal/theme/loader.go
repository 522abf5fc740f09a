package theme

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/field"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
)

// DescriptorFile is the bundle descriptor at the root of every theme directory.
const DescriptorFile = "theme.yaml"

// descriptor is the on-disk shape of theme.yaml. Pages is kept as a node so page
// declaration order survives decoding.
type descriptor struct {
	Name        string        `yaml:"name"`
	Title       string        `yaml:"title"`
	Version     string        `yaml:"version"`
	Description string        `yaml:"description"`
	SiteFields  []field.Field `yaml:"siteFields"`
	Pages       yaml.Node     `yaml:"pages"`
}

// Loader reads theme bundles from a filesystem whose top-level directories are themes.
type Loader struct {
	fsys    fs.FS
	builtin bool
}

// NewLoader creates a loader over fsys.
func NewLoader(fsys fs.FS) *Loader { return &Loader{fsys: fsys} }

// List enumerates installed themes. Directories without a readable descriptor are
// skipped with a warning; listing never activates a theme.
func (l *Loader) List() ([]Info, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ferrors.ThemeLoadError("cannot enumerate themes").WithCause(err).Build()
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		d, err := l.readDescriptor(e.Name())
		if err != nil {
			slog.Warn("Skipping unreadable theme", logfields.Theme(e.Name()), logfields.Error(err))
			continue
		}
		out = append(out, Info{Name: e.Name(), Title: displayTitle(d.Title, e.Name()), Version: d.Version, Builtin: l.builtin})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Has reports whether a bundle named name exists.
func (l *Loader) Has(name string) bool {
	_, err := fs.Stat(l.fsys, path.Join(name, DescriptorFile))
	return err == nil
}

// Load reads and validates the bundle called name.
func (l *Loader) Load(name string) (*Theme, error) {
	fail := func(msg string, cause error) error {
		return ferrors.ThemeLoadError(msg).WithCause(cause).WithContext("theme", name).Build()
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fail("invalid theme name", fmt.Errorf("%q", name))
	}

	d, err := l.readDescriptor(name)
	if err != nil {
		return nil, fail("cannot read theme descriptor", err)
	}

	if err := field.Check(d.SiteFields); err != nil {
		return nil, fail("invalid site fields", err)
	}
	pages, order, err := decodePages(&d.Pages)
	if err != nil {
		return nil, fail("invalid page declarations", err)
	}

	root, err := fs.Sub(l.fsys, name)
	if err != nil {
		return nil, fail("cannot open theme directory", err)
	}
	tpl, err := parseTemplates(root)
	if err != nil {
		return nil, fail("cannot parse templates", err)
	}
	for _, p := range order {
		if tpl.Lookup(TemplateName(p)) == nil {
			return nil, fail("missing page template", fmt.Errorf("templates/%s not found", TemplateName(p)))
		}
	}

	var assets fs.FS
	if st, err := fs.Stat(root, "assets"); err == nil && st.IsDir() {
		assets, _ = fs.Sub(root, "assets")
	}

	th := &Theme{
		Name:        name,
		Title:       displayTitle(d.Title, name),
		Version:     d.Version,
		Description: d.Description,
		SiteFields:  d.SiteFields,
		Pages:       pages,
		PageOrder:   order,
		Templates:   tpl,
		Assets:      assets,
		Builtin:     l.builtin,
	}
	slog.Debug("Theme loaded", logfields.Theme(name), logfields.Count(len(order)))
	return th, nil
}

func (l *Loader) readDescriptor(name string) (*descriptor, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(name, DescriptorFile))
	if err != nil {
		return nil, err
	}
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", DescriptorFile, err)
	}
	return &d, nil
}

// decodePages decodes the pages mapping preserving declaration order. index and
// article are always present; index is moved to the front.
func decodePages(node *yaml.Node) (map[string][]field.Field, []string, error) {
	pages := map[string][]field.Field{}
	var order []string

	if node.Kind != 0 {
		if node.Kind != yaml.MappingNode {
			return nil, nil, fmt.Errorf("pages must be a mapping of page name to fields")
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			if name == "" || strings.ContainsAny(name, `/\ `) {
				return nil, nil, fmt.Errorf("invalid page name %q", name)
			}
			if _, dup := pages[name]; dup {
				return nil, nil, fmt.Errorf("page %q declared twice", name)
			}
			var fields []field.Field
			if err := node.Content[i+1].Decode(&fields); err != nil {
				return nil, nil, fmt.Errorf("page %q: %w", name, err)
			}
			if err := field.Check(fields); err != nil {
				return nil, nil, fmt.Errorf("page %q: %w", name, err)
			}
			pages[name] = fields
			order = append(order, name)
		}
	}

	for _, reserved := range []string{PageArticle, PageIndex} {
		if _, ok := pages[reserved]; !ok {
			pages[reserved] = nil
			order = append(order, reserved)
		}
	}
	// index first, everything else in declaration order
	sorted := []string{PageIndex}
	for _, p := range order {
		if p != PageIndex {
			sorted = append(sorted, p)
		}
	}
	return pages, sorted, nil
}

func parseTemplates(root fs.FS) (*template.Template, error) {
	tpl := template.New("theme").Funcs(FuncMap()).Option("missingkey=zero")
	patterns := []string{"templates/*.html"}
	if matches, _ := fs.Glob(root, "templates/partials/*.html"); len(matches) > 0 {
		patterns = append(patterns, "templates/partials/*.html")
	}
	matches, err := fs.Glob(root, patterns[0])
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no templates found under templates/")
	}
	return tpl.ParseFS(root, patterns...)
}

var titleCaser = cases.Title(language.Und)

func displayTitle(title, name string) string {
	if title != "" {
		return title
	}
	return titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(name))
}
