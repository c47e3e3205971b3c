// Package extract unpacks Moodle backup archives (.mbz, gzip compressed tar)
// into a staging directory, one folder per archive.
package extract

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/output/local"
	"github.com/gentoomaniac/mboozle/pkg/safepath"
)

// ArchiveExt is the extension of Moodle backup archives.
const ArchiveExt = ".mbz"

// SpaceChecker returns an error when dir cannot hold need more bytes.
type SpaceChecker func(dir string, need int64) error

// Result summarises the extraction of one archive.
type Result struct {
	Archive string
	Target  string
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
	Err     error
}

type Extractor struct {
	fs         billy.Filesystem
	inputs     string
	outputs    string
	checkSpace SpaceChecker
}

func New(fs billy.Filesystem, inputs string, outputs string) *Extractor {
	return &Extractor{
		fs:      fs,
		inputs:  inputs,
		outputs: outputs,
	}
}

// WithSpaceCheck makes the extractor warn before unpacking an archive that
// is larger than the free space reported by fn.
func (e *Extractor) WithSpaceCheck(fn SpaceChecker) *Extractor {
	e.checkSpace = fn
	return e
}

// Archives lists the .mbz files in the inputs directory, sorted by name.
func (e *Extractor) Archives() ([]string, error) {
	return ListArchives(e.fs, e.inputs)
}

// ListArchives lists the .mbz files directly inside dir, sorted by name.
func ListArchives(fs billy.Filesystem, dir string) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing archives in %s", dir)
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ArchiveExt) {
			continue
		}
		archives = append(archives, fs.Join(dir, entry.Name()))
	}
	sort.Strings(archives)
	return archives, nil
}

// TargetDir returns the staging folder an archive is unpacked into.
func (e *Extractor) TargetDir(archive string) string {
	return e.fs.Join(e.outputs, strings.TrimSuffix(path.Base(archive), ArchiveExt))
}

// ExtractAll unpacks every archive in the inputs directory. A failing archive
// does not stop the others; its error is recorded in its Result.
func (e *Extractor) ExtractAll(ctx context.Context) ([]*Result, error) {
	archives, err := e.Archives()
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		log.Warn().Str("inputs", e.inputs).Msg("no .mbz archives found")
		return nil, nil
	}
	log.Info().Int("archives", len(archives)).Msg("archives found")
	return e.ExtractArchives(ctx, archives)
}

// ExtractArchives unpacks the given archives in order, with the same error
// handling as ExtractAll.
func (e *Extractor) ExtractArchives(ctx context.Context, archives []string) ([]*Result, error) {
	results := make([]*Result, 0, len(archives))
	for idx, archive := range archives {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Info().Msgf("[%d/%d] extracting %s", idx+1, len(archives), archive)

		res, err := e.Extract(ctx, archive)
		if err != nil {
			log.Error().Err(err).Str("archive", archive).Msg("extraction failed")
			if res == nil {
				res = &Result{Archive: archive, Target: e.TargetDir(archive)}
			}
			res.Err = err
		}
		results = append(results, res)
	}
	return results, nil
}

// Extract unpacks a single archive into its staging folder.
func (e *Extractor) Extract(ctx context.Context, archive string) (*Result, error) {
	target := e.TargetDir(archive)
	if err := e.fs.MkdirAll(target, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", target)
	}

	info, err := e.fs.Stat(archive)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", archive)
	}
	if e.checkSpace != nil {
		if err := e.checkSpace(e.outputs, info.Size()); err != nil {
			log.Warn().Err(err).Str("archive", archive).Msg("staging directory may run out of space")
		}
	}

	f, err := e.fs.Open(archive)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", archive)
	}
	defer f.Close()

	res, err := Unpack(ctx, e.fs, f, target)
	if res != nil {
		res.Archive = archive
	}
	if err != nil {
		return res, errors.Wrapf(err, "extracting %s", archive)
	}

	log.Info().
		Str("archive", archive).
		Str("target", target).
		Int("files", res.Files).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Msg("archive extracted")
	return res, nil
}

// Unpack reads a gzip compressed tar stream and writes its directories and
// regular files below target. Entry names are confined to target. Links and
// special files are skipped.
func Unpack(ctx context.Context, fs billy.Filesystem, r io.Reader, target string) (*Result, error) {
	res := &Result{Target: target}

	zr, err := gzip.NewReader(r)
	if err != nil {
		return res, errors.Wrap(err, "while uncompressing archive")
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, errors.Wrap(err, "while reading archive")
		}

		name, err := safepath.Join(fs, target, hdr.Name)
		if err != nil {
			return res, errors.Wrapf(err, "bad name %q in archive", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(name, 0755); err != nil {
				return res, errors.Wrapf(err, "creating %s", name)
			}
			res.Dirs++
		case tar.TypeReg:
			n, err := writeFile(fs, name, hdr, tr)
			if err != nil {
				return res, errors.Wrapf(err, "tar extract %q failed", name)
			}
			res.Files++
			res.Bytes += n
		default:
			log.Debug().Str("entry", hdr.Name).Str("type", string(hdr.Typeflag)).Msg("skipping non-regular archive entry")
			res.Skipped++
		}
	}
	return res, nil
}

func writeFile(fs billy.Filesystem, name string, hdr *tar.Header, r io.Reader) (int64, error) {
	if err := fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return 0, err
	}

	mode := os.FileMode(hdr.Mode&0777) | 0600
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}

	if !hdr.ModTime.IsZero() {
		if err := local.Chtimes(fs, name, hdr.ModTime); err != nil {
			log.Debug().Err(err).Str("file", name).Msg("could not set modification time")
		}
	}
	return n, nil
}
