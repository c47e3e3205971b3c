package mbz

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filesXML = `<?xml version="1.0" encoding="UTF-8"?>
<files>
  <file id="11">
    <contenthash>da39a3ee5e6b4b0d3255bfef95601890afd80709</contenthash>
    <contextid>42</contextid>
    <component>mod_assign</component>
    <filearea>submission_files</filearea>
    <itemid>3</itemid>
    <filepath>/</filepath>
    <filename>.</filename>
    <userid>7</userid>
    <filesize>0</filesize>
    <mimetype>$@NULL@$</mimetype>
  </file>
  <file id="12">
    <contenthash>5d41402abc4b2a76b9719d911017c592aaaaaaaa</contenthash>
    <contextid>42</contextid>
    <component>mod_assign</component>
    <filearea>submission_files</filearea>
    <itemid>3</itemid>
    <filepath>/drafts/</filepath>
    <filename>essay.pdf</filename>
    <userid>7</userid>
    <filesize>2048</filesize>
    <mimetype>application/pdf</mimetype>
    <author>Jane Doe</author>
    <license>allrightsreserved</license>
  </file>
</files>`

const usersXML = `<?xml version="1.0" encoding="UTF-8"?>
<users>
  <user id="7" contextid="99">
    <username>jdoe</username>
    <firstname>Jane</firstname>
  </user>
  <user id="8" contextid="100">
    <username></username>
  </user>
</users>`

const courseXML = `<?xml version="1.0" encoding="UTF-8"?>
<course id="5" contextid="42">
  <shortname>BIO101</shortname>
  <fullname>Introduction to Biology</fullname>
</course>`

func TestParseFiles(t *testing.T) {
	files, err := ParseFiles(strings.NewReader(filesXML))
	require.NoError(t, err)
	require.Len(t, files, 2)

	dir := files[0]
	assert.True(t, dir.IsDirectory())
	assert.True(t, dir.IsEmpty())
	assert.True(t, dir.Skippable())

	f := files[1]
	assert.Equal(t, "12", f.ID)
	assert.Equal(t, "mod_assign", f.Component)
	assert.Equal(t, "submission_files", f.FileArea)
	assert.Equal(t, "/drafts/", f.FilePath)
	assert.Equal(t, "essay.pdf", f.FileName)
	assert.Equal(t, "7", f.UserID)
	assert.Equal(t, int64(2048), f.FileSize)
	assert.Equal(t, "Jane Doe", f.Author)
	assert.False(t, f.Skippable())

	p, err := f.BlobPath()
	require.NoError(t, err)
	assert.Equal(t, "files/5d/5d41402abc4b2a76b9719d911017c592aaaaaaaa", p)
}

func TestParseFilesEmptySize(t *testing.T) {
	files, err := ParseFiles(strings.NewReader(`<files><file id="1"><filename>a.txt</filename><filesize></filesize></file></files>`))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].IsEmpty())
}

func TestParseFilesMalformed(t *testing.T) {
	_, err := ParseFiles(strings.NewReader(`<files><file>`))
	assert.Error(t, err)
}

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(strings.NewReader(usersXML))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"7": "jdoe"}, users)
}

func TestParseCourse(t *testing.T) {
	course, err := ParseCourse(strings.NewReader(courseXML))
	require.NoError(t, err)
	assert.Equal(t, "5", course.ID)
	assert.Equal(t, "BIO101", course.ShortName)
	assert.Equal(t, "Introduction to Biology", course.DisplayName())
}

func TestCourseDisplayNameFallback(t *testing.T) {
	var nilCourse *Course
	assert.Equal(t, UnknownCourse, nilCourse.DisplayName())
	assert.Equal(t, UnknownCourse, (&Course{FullName: "  "}).DisplayName())
}

func TestBlobPath(t *testing.T) {
	p, err := BlobPath("ab")
	require.NoError(t, err)
	assert.Equal(t, "files/ab/ab", p)

	for _, bad := range []string{"", "a", "../../etc", "ABCD", "zz00"} {
		_, err := BlobPath(bad)
		assert.True(t, errors.Is(err, ErrInvalidHash), bad)
	}
}
