package local

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitExt(t *testing.T) {
	tests := []struct {
		name, base, ext string
	}{
		{"essay.pdf", "essay", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".bashrc", ".bashrc", ""},
		{"..hidden.txt", "..hidden", ".txt"},
		{"trailing.", "trailing", "."},
	}
	for _, tt := range tests {
		base, ext := SplitExt(tt.name)
		assert.Equal(t, tt.base, base, tt.name)
		assert.Equal(t, tt.ext, ext, tt.name)
	}
}

func TestUniqueName(t *testing.T) {
	fs := memfs.New()

	p, err := UniqueName(fs, "/out", "essay.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/out/essay.pdf", p)

	require.NoError(t, util.WriteFile(fs, "/out/essay.pdf", []byte("a"), 0644))
	p, err = UniqueName(fs, "/out", "essay.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/out/essay_1.pdf", p)

	require.NoError(t, util.WriteFile(fs, "/out/essay_1.pdf", []byte("b"), 0644))
	p, err = UniqueName(fs, "/out", "essay.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/out/essay_2.pdf", p)

	require.NoError(t, util.WriteFile(fs, "/out/.bashrc", []byte("c"), 0644))
	p, err = UniqueName(fs, "/out", ".bashrc")
	require.NoError(t, err)
	assert.Equal(t, "/out/.bashrc_1", p)
}

func TestCopy(t *testing.T) {
	fs := osfs.New(t.TempDir())
	require.NoError(t, util.WriteFile(fs, "/blobs/ab/abcd", []byte("hello world"), 0600))
	mtime := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, Chtimes(fs, "/blobs/ab/abcd", mtime))

	n, err := Copy(fs, "/blobs/ab/abcd", "/out/deep/dir/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	data, err := util.ReadFile(fs, "/out/deep/dir/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	info, err := fs.Stat("/out/deep/dir/hello.txt")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), info.ModTime().String())
}

func TestCopyInMemory(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/src", []byte("hello"), 0644))

	n, err := Copy(fs, "/src", "/out/dst")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestChtimes(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.New(dir)
	require.NoError(t, util.WriteFile(fs, "/a/file.txt", []byte("x"), 0644))

	mtime := time.Unix(1600000000, 0)
	require.NoError(t, Chtimes(fs, "/a/file.txt", mtime))

	info, err := os.Stat(filepath.Join(dir, "a", "file.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), info.ModTime().String())
}

func TestChtimesInMemoryUnsupported(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/file.txt", []byte("x"), 0644))

	err := Chtimes(fs, "/file.txt", time.Unix(1600000000, 0))
	assert.True(t, errors.Is(err, ErrTimesUnsupported))
}

func TestCopyRefusesOverwrite(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/src", []byte("new"), 0644))
	require.NoError(t, util.WriteFile(fs, "/dst", []byte("old"), 0644))

	_, err := Copy(fs, "/src", "/dst")
	assert.Error(t, err)

	data, err := util.ReadFile(fs, "/dst")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestCopyMissingSource(t *testing.T) {
	_, err := Copy(memfs.New(), "/missing", "/dst")
	assert.Error(t, err)
}
