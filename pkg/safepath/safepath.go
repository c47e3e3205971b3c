// Package safepath confines paths taken from untrusted archive entries and
// manifest fields to a root directory on a billy filesystem.
package safepath

import (
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-billy/v5"
)

type billyVFS struct {
	fs billy.Filesystem
}

func (v billyVFS) Lstat(name string) (os.FileInfo, error) {
	return v.fs.Lstat(name)
}

func (v billyVFS) Readlink(name string) (string, error) {
	return v.fs.Readlink(name)
}

// Join joins root and unsafePath so that the result never leaves root, even
// when unsafePath contains ".." elements, is absolute or crosses symlinks.
func Join(fs billy.Filesystem, root string, unsafePath string) (string, error) {
	return securejoin.SecureJoinVFS(root, unsafePath, billyVFS{fs: fs})
}
