package remote

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/config"
)

const defaultContentType = "application/octet-stream"

// S3API is the part of the S3 client used for uploads.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS configuration")
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// S3 uploads straight to a bucket without an external tool.
type S3 struct {
	client      S3API
	fs          billy.Filesystem
	bucket      string
	prefix      string
	archivePath string
}

func NewS3(client S3API, fs billy.Filesystem, cfg config.S3) *S3 {
	return &S3{
		client:      client,
		fs:          fs,
		bucket:      cfg.Bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		archivePath: strings.Trim(cfg.MbzArchivePath, "/"),
	}
}

func (s *S3) Name() string {
	return "s3"
}

func (s *S3) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return errors.Wrapf(err, "bucket %s", s.bucket)
}

func (s *S3) SyncResults(ctx context.Context, dir string, dest string, move bool) error {
	var files, dirs []string
	err := util.Walk(s.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != dir {
				dirs = append(dirs, p)
			}
			return nil
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %s", dir)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		if err := s.upload(ctx, file, s.ObjectKey(dest, rel)); err != nil {
			return err
		}
		if move {
			if err := s.fs.Remove(file); err != nil {
				return errors.Wrapf(err, "removing %s", file)
			}
		}
	}

	if move {
		s.removeEmptyDirs(dirs)
	}
	log.Info().Int("files", len(files)).Str("bucket", s.bucket).Msg("results uploaded to s3")
	return nil
}

func (s *S3) UploadArchives(ctx context.Context, archives []string) error {
	for _, archive := range archives {
		key := path.Join(s.prefix, s.archivePath, path.Base(filepath.ToSlash(archive)))
		if err := s.upload(ctx, archive, key); err != nil {
			return err
		}
	}
	return nil
}

// ObjectKey returns the key of a results file at rel below dest.
func (s *S3) ObjectKey(dest string, rel string) string {
	return path.Join(s.prefix, dest, filepath.ToSlash(rel))
}

func (s *S3) upload(ctx context.Context, file string, key string) error {
	info, err := s.fs.Stat(file)
	if err != nil {
		return errors.Wrapf(err, "stat %s", file)
	}

	f, err := s.fs.Open(file)
	if err != nil {
		return errors.Wrapf(err, "opening %s", file)
	}
	defer f.Close()

	contentType := defaultContentType
	if mt, err := mimetype.DetectReader(f); err == nil && mt != nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "rewinding %s", file)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s to s3://%s/%s", file, s.bucket, key)
	}

	log.Debug().
		Str("file", file).
		Str("key", key).
		Str("content_type", contentType).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Msg("uploaded")
	return nil
}

// removeEmptyDirs removes the given directories deepest first when empty.
func (s *S3) removeEmptyDirs(dirs []string) {
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := s.fs.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := s.fs.Remove(dirs[i]); err != nil {
			log.Debug().Err(err).Str("dir", dirs[i]).Msg("could not remove directory")
		}
	}
}
