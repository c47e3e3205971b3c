package remote

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentoomaniac/mboozle/pkg/config"
)

type object struct {
	body        string
	contentType string
}

type fakeS3 struct {
	objects   map[string]object
	headErr   error
	putErrKey string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]object{}}
}

func (f *fakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if key == f.putErrKey {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+key] = object{body: string(data), contentType: aws.ToString(params.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) keys() []string {
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func s3Config() config.S3 {
	return config.S3{Bucket: "courses", Prefix: "/moodle/", MbzArchivePath: "mbz_archive"}
}

func TestS3SyncResults(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/results/Bio/mod_assign/submission_files/essay.pdf", []byte("%PDF-1.4 essay"), 0644))
	require.NoError(t, util.WriteFile(fs, "/results/Bio/mod_resource/content/notes.txt", []byte("plain notes"), 0644))

	client := newFakeS3()
	syncer := NewS3(client, fs, s3Config())

	require.NoError(t, syncer.SyncResults(context.Background(), "/results", "", false))
	assert.Equal(t, []string{
		"courses/moodle/Bio/mod_assign/submission_files/essay.pdf",
		"courses/moodle/Bio/mod_resource/content/notes.txt",
	}, client.keys())

	pdf := client.objects["courses/moodle/Bio/mod_assign/submission_files/essay.pdf"]
	assert.Equal(t, "%PDF-1.4 essay", pdf.body)
	assert.Equal(t, "application/pdf", pdf.contentType)

	_, err := fs.Stat("/results/Bio/mod_resource/content/notes.txt")
	assert.NoError(t, err)
}

func TestS3SyncResultsMove(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/results/Bio/a/b.txt", []byte("b"), 0644))

	client := newFakeS3()
	require.NoError(t, NewS3(client, fs, s3Config()).SyncResults(context.Background(), "/results", "", true))
	assert.Len(t, client.objects, 1)

	_, err := fs.Stat("/results/Bio")
	assert.Error(t, err)
	_, err = fs.Stat("/results")
	assert.NoError(t, err)
}

func TestS3UploadFailureKeepsFiles(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/results/x.txt", []byte("x"), 0644))

	client := newFakeS3()
	client.putErrKey = "moodle/x.txt"
	err := NewS3(client, fs, s3Config()).SyncResults(context.Background(), "/results", "", true)
	assert.Error(t, err)

	_, err = fs.Stat("/results/x.txt")
	assert.NoError(t, err)
}

func TestS3UploadArchives(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/in/bio.mbz", []byte("archive"), 0644))

	client := newFakeS3()
	require.NoError(t, NewS3(client, fs, s3Config()).UploadArchives(context.Background(), []string{"/in/bio.mbz"}))
	assert.Equal(t, []string{"courses/moodle/mbz_archive/bio.mbz"}, client.keys())
}

func TestS3Check(t *testing.T) {
	client := newFakeS3()
	syncer := NewS3(client, memfs.New(), s3Config())
	assert.NoError(t, syncer.Check(context.Background()))

	client.headErr = errors.New("not found")
	assert.Error(t, syncer.Check(context.Background()))
}

func TestS3ObjectKeyWithoutPrefix(t *testing.T) {
	syncer := NewS3(newFakeS3(), memfs.New(), config.S3{Bucket: "b"})
	assert.Equal(t, "Bio/file.txt", syncer.ObjectKey("", "Bio/file.txt"))
	assert.Equal(t, "bio/Bio/file.txt", syncer.ObjectKey("bio/Bio", "file.txt"))
}

func TestS3SyncResultsBelowDest(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/staging/bio/Bio/mod_resource/content/notes.txt", []byte("plain notes"), 0644))
	require.NoError(t, util.WriteFile(fs, "/staging/bio/files/aa/aa11", []byte("blob"), 0644))

	client := newFakeS3()
	require.NoError(t, NewS3(client, fs, s3Config()).SyncResults(context.Background(), "/staging/bio/Bio", "bio/Bio", false))
	assert.Equal(t, []string{"courses/moodle/bio/Bio/mod_resource/content/notes.txt"}, client.keys())
}
