package safepath

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/root/a", 0755))

	tests := []struct {
		unsafe string
		want   string
	}{
		{"a/b.txt", "/root/a/b.txt"},
		{"../../etc/passwd", "/root/etc/passwd"},
		{"/abs/file", "/root/abs/file"},
		{"a/../../b", "/root/b"},
		{"", "/root"},
	}

	for _, tt := range tests {
		got, err := Join(fs, "/root", tt.unsafe)
		require.NoError(t, err, tt.unsafe)
		assert.Equal(t, tt.want, got, tt.unsafe)
	}
}

func TestJoinSymlinkEscape(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/root", 0755))
	require.NoError(t, fs.Symlink("/etc", "/root/link"))

	got, err := Join(fs, "/root", "link/passwd")
	require.NoError(t, err)
	assert.Equal(t, "/root/etc/passwd", got)
}
