package local

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrTimesUnsupported is returned by Chtimes for filesystems that neither
// implement billy.Change nor are backed by the operating system.
var ErrTimesUnsupported = errors.New("changing file times not supported")

// Chtimes sets the access and modification time of name to mtime. go-billy's
// osfs does not implement billy.Change, so for OS-backed filesystems the
// file is changed directly below fs.Root() once it is known to be the same
// file the billy filesystem sees.
func Chtimes(fs billy.Filesystem, name string, mtime time.Time) error {
	if change, ok := fs.(billy.Change); ok {
		return change.Chtimes(name, mtime, mtime)
	}

	info, err := fs.Lstat(name)
	if err != nil {
		return errors.Wrapf(err, "stat %s", name)
	}
	osPath := filepath.Join(fs.Root(), filepath.FromSlash(name))
	osInfo, err := os.Lstat(osPath)
	if err != nil || !os.SameFile(info, osInfo) {
		return errors.Wrap(ErrTimesUnsupported, name)
	}
	return errors.Wrapf(os.Chtimes(osPath, mtime, mtime), "setting times of %s", name)
}

// SplitExt splits name into base and extension. Leading dots belong to the
// base, so ".bashrc" has no extension.
func SplitExt(name string) (base string, ext string) {
	trimmed := strings.TrimLeft(name, ".")
	ext = path.Ext(trimmed)
	if ext == "" || ext == trimmed {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// UniqueName returns a path in dir for name that does not exist yet. On
// collision a counter is inserted before the extension: name_1.ext, name_2.ext.
func UniqueName(fs billy.Filesystem, dir string, name string) (string, error) {
	candidate := fs.Join(dir, name)
	base, ext := SplitExt(name)

	for counter := 1; ; counter++ {
		_, err := fs.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", errors.Wrapf(err, "checking %s", candidate)
		}
		candidate = fs.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}
}

// Copy copies src to dst, creating dst's parent directories, and carries over
// the modification time of src when the filesystem supports it.
func Copy(fs billy.Filesystem, src string, dst string) (int64, error) {
	info, err := fs.Stat(src)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", src)
	}

	in, err := fs.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	if err := fs.MkdirAll(path.Dir(dst), 0755); err != nil {
		return 0, errors.Wrapf(err, "creating %s", path.Dir(dst))
	}

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm()|0200)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", dst)
	}

	written, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, errors.Wrapf(err, "copying %s to %s", src, dst)
	}

	if err := Chtimes(fs, dst, info.ModTime()); err != nil {
		log.Debug().Err(err).Str("file", dst).Msg("could not preserve modification time")
	}

	log.Debug().Str("src", src).Str("dst", dst).Int64("bytes", written).Msg("file copied")
	return written, nil
}
