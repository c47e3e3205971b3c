// Package mbz reads the manifest documents of an extracted Moodle course
// backup and locates the content blobs they reference.
package mbz

import (
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Locations of the manifest documents relative to a backup root.
const (
	FilesManifest  = "files.xml"
	UsersManifest  = "users.xml"
	CourseManifest = "course/course.xml"
	BlobDir        = "files"
)

// UnknownCourse is used when a backup carries no usable course name.
const UnknownCourse = "Unknown"

var ErrInvalidHash = errors.New("invalid content hash")

// FileRecord describes the placement of one logical file inside a backup.
type FileRecord struct {
	ID          string `xml:"id,attr"`
	ContentHash string `xml:"contenthash"`
	ContextID   string `xml:"contextid"`
	Component   string `xml:"component"`
	FileArea    string `xml:"filearea"`
	ItemID      string `xml:"itemid"`
	FilePath    string `xml:"filepath"`
	FileName    string `xml:"filename"`
	UserID      string `xml:"userid"`
	FileSize    int64  `xml:"filesize"`
	MimeType    string `xml:"mimetype"`
	Author      string `xml:"author"`
	License     string `xml:"license"`
}

// IsDirectory reports whether the record is a directory placeholder.
func (f *FileRecord) IsDirectory() bool {
	return f.FileName == "."
}

func (f *FileRecord) IsEmpty() bool {
	return f.FileSize == 0
}

// Skippable reports whether the record carries no content worth copying.
func (f *FileRecord) Skippable() bool {
	return f.IsDirectory() || f.IsEmpty()
}

// BlobPath returns the path of the record's content blob relative to the
// backup root.
func (f *FileRecord) BlobPath() (string, error) {
	return BlobPath(f.ContentHash)
}

type UserRecord struct {
	ID       string `xml:"id,attr"`
	Username string `xml:"username"`
}

type Course struct {
	ID        string `xml:"id,attr"`
	ShortName string `xml:"shortname"`
	FullName  string `xml:"fullname"`
}

// DisplayName returns the course full name or UnknownCourse when it is blank.
func (c *Course) DisplayName() string {
	if c == nil || strings.TrimSpace(c.FullName) == "" {
		return UnknownCourse
	}
	return c.FullName
}

type filesDocument struct {
	Files []FileRecord `xml:"file"`
}

type usersDocument struct {
	Users []UserRecord `xml:"user"`
}

// ParseFiles decodes a files.xml document.
func ParseFiles(r io.Reader) ([]FileRecord, error) {
	var doc filesDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding files manifest")
	}
	return doc.Files, nil
}

// ParseUsers decodes a users.xml document into a user id to username map.
// Users without a username are left out.
func ParseUsers(r io.Reader) (map[string]string, error) {
	var doc usersDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding users manifest")
	}

	users := make(map[string]string, len(doc.Users))
	for _, u := range doc.Users {
		if u.Username == "" {
			continue
		}
		users[u.ID] = u.Username
	}
	return users, nil
}

func ParseCourse(r io.Reader) (*Course, error) {
	var course Course
	if err := xml.NewDecoder(r).Decode(&course); err != nil {
		return nil, errors.Wrap(err, "decoding course manifest")
	}
	return &course, nil
}

// BlobPath maps a content hash to files/<first two characters>/<hash>.
func BlobPath(hash string) (string, error) {
	if len(hash) < 2 {
		return "", errors.Wrapf(ErrInvalidHash, "%q", hash)
	}
	for _, c := range hash {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", errors.Wrapf(ErrInvalidHash, "%q", hash)
		}
	}
	return path.Join(BlobDir, hash[:2], hash), nil
}
