package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/frontmatter"
)

// ResourcesDir holds note attachments inside a DirSource root.
const ResourcesDir = "_resources"

// noteMeta is the frontmatter understood by DirSource.
type noteMeta struct {
	Title     string    `yaml:"title"`
	Tags      []string  `yaml:"tags"`
	Resources []string  `yaml:"resources"`
	Created   time.Time `yaml:"created"`
	Updated   time.Time `yaml:"updated"`
}

// DirSource reads notes from a directory of `<id>.md` files. Attachments live in
// `_resources/` and are referenced by file name from the `resources` frontmatter list.
type DirSource struct {
	root string
}

// NewDirSource creates a source over root.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// ListNotes implements Source. Notes are ordered by id.
func (d *DirSource) ListNotes(ctx context.Context, q Query) (Page[Note], error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return Page[Note]{}, ferrors.NotesError("cannot list notes").WithCause(err).WithContext("path", d.root).Build()
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".md"))
	}
	slices.Sort(ids)

	page := paginate(ids, q)
	out := Page[Note]{HasMore: page.HasMore}
	for _, id := range page.Items {
		n, err := d.GetNote(ctx, id)
		if err != nil {
			return Page[Note]{}, err
		}
		out.Items = append(out.Items, n)
	}
	return out, nil
}

// GetNote implements Source.
func (d *DirSource) GetNote(_ context.Context, id string) (Note, error) {
	n, _, err := d.read(id)
	return n, err
}

// ListResources implements Source.
func (d *DirSource) ListResources(_ context.Context, noteID string, q Query) (Page[Resource], error) {
	_, meta, err := d.read(noteID)
	if err != nil {
		return Page[Resource]{}, err
	}
	var all []Resource
	for _, name := range meta.Resources {
		p, err := securejoin.SecureJoin(filepath.Join(d.root, ResourcesDir), name)
		if err != nil {
			return Page[Resource]{}, ferrors.NotesError("invalid resource name").WithCause(err).WithContext("path", name).Build()
		}
		st, err := os.Stat(p)
		if err != nil {
			return Page[Resource]{}, ferrors.NotesError("resource not found").
				WithCause(err).
				WithContext("note_id", noteID).
				WithContext("path", name).
				Build()
		}
		all = append(all, Resource{
			ID:       name,
			Title:    strings.TrimSuffix(name, path.Ext(name)),
			Mime:     mime.TypeByExtension(path.Ext(name)),
			Filename: name,
			Size:     st.Size(),
		})
	}
	return paginate(all, q), nil
}

// ReadResource implements ResourceReader.
func (d *DirSource) ReadResource(_ context.Context, id string) ([]byte, error) {
	p, err := securejoin.SecureJoin(filepath.Join(d.root, ResourcesDir), id)
	if err != nil {
		return nil, ferrors.NotesError("invalid resource name").WithCause(err).WithContext("path", id).Build()
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, ferrors.NotesError("cannot read resource").WithCause(err).WithContext("path", id).Build()
	}
	return data, nil
}

func (d *DirSource) read(id string) (Note, noteMeta, error) {
	var meta noteMeta
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return Note{}, meta, ferrors.NotesError(fmt.Sprintf("invalid note id %q", id)).Build()
	}
	p := filepath.Join(d.root, id+".md")
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Note{}, meta, ferrors.NotFoundError("note not found").WithContext("note_id", id).Build()
		}
		return Note{}, meta, ferrors.NotesError("cannot read note").WithCause(err).WithContext("note_id", id).Build()
	}
	body, err := frontmatter.Decode(data, &meta)
	if err != nil {
		return Note{}, meta, ferrors.NotesError("invalid note frontmatter").WithCause(err).WithContext("note_id", id).Build()
	}

	n := Note{
		ID:        id,
		Title:     meta.Title,
		Body:      string(body),
		Tags:      meta.Tags,
		CreatedAt: meta.Created,
		UpdatedAt: meta.Updated,
	}
	if n.Title == "" {
		n.Title = titleFromBody(n.Body, id)
	}
	if n.UpdatedAt.IsZero() || n.CreatedAt.IsZero() {
		if st, err := os.Stat(p); err == nil {
			if n.UpdatedAt.IsZero() {
				n.UpdatedAt = st.ModTime().UTC()
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = n.UpdatedAt
			}
		}
	}
	return n, meta, nil
}

// titleFromBody takes the first ATX heading, falling back to the note id.
func titleFromBody(body, id string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return id
}
