package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// Output maps root-relative slash-separated paths to file content.
type Output map[string][]byte

// Paths returns the output paths in sorted order.
func (o Output) Paths() []string {
	out := make([]string, 0, len(o))
	for p := range o {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

type bundle struct {
	files  Output
	owners map[string]string
}

func newBundle() *bundle {
	return &bundle{files: Output{}, owners: map[string]string{}}
}

// add stores a file; two producers claiming one path is a configuration error.
func (b *bundle) add(target string, data []byte, owner string) error {
	if prev, dup := b.owners[target]; dup {
		return ferrors.GenerationError("duplicate output path").
			WithCause(fmt.Errorf("%s is produced by both %s and %s", target, prev, owner)).
			WithContext("page", owner).
			WithContext("path", target).
			Build()
	}
	if _, taken := b.files[target]; taken {
		return ferrors.GenerationError("output path collides with an asset").
			WithContext("page", owner).
			WithContext("path", target).
			Build()
	}
	b.owners[target] = owner
	b.files[target] = data
	return nil
}

// WriteOutput replaces dir with the content of out. Files are written to a sibling
// staging directory first, so dir is only swapped once every file is on disk.
func WriteOutput(dir string, out Output) error {
	dir = filepath.Clean(dir)
	staging := dir + ".staging-" + uuid.NewString()[:8]
	fail := func(msg string, err error) error {
		_ = os.RemoveAll(staging)
		return ferrors.FileSystemError(msg).WithCause(err).WithContext("path", dir).Build()
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fail("cannot create staging directory", err)
	}
	for _, p := range out.Paths() {
		target, err := securejoin.SecureJoin(staging, filepath.FromSlash(p))
		if err != nil {
			return fail("invalid output path "+p, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fail("cannot create directory", err)
		}
		if err := os.WriteFile(target, out[p], 0o644); err != nil {
			return fail("cannot write "+p, err)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fail("cannot remove previous output", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fail("cannot move output into place", err)
	}
	return nil
}
