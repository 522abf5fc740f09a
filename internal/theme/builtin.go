package theme

import (
	"embed"
	"io/fs"
)

//go:embed all:builtin
var builtinFS embed.FS

// BuiltinLoader returns a loader over the themes compiled into the binary.
func BuiltinLoader() *Loader {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(err) // embed layout is fixed at compile time
	}
	return &Loader{fsys: sub, builtin: true}
}
