// Package migrations ships the archive schema with the binary.
package migrations

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed *.sql
var files embed.FS

// Source returns dir from disk when set and the embedded files otherwise.
func Source(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return files
}
