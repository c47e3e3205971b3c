// Package organize rebuilds a browsable directory tree from extracted Moodle
// backups. Every content blob referenced by files.xml is copied to
// <root>/<component>/<filearea>[/<username>]/<filepath>/<filename>.
package organize

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/mbz"
	"github.com/gentoomaniac/mboozle/pkg/output/local"
	"github.com/gentoomaniac/mboozle/pkg/safepath"
)

const progressEvery = 10

// ErrNoManifest is reported for backup folders without a files.xml.
var ErrNoManifest = errors.New("files manifest not found")

type Options struct {
	// Results is the root of the organized tree. Unused with ExtractToSource.
	Results           string
	OrganizeByUser    bool
	ExtractToSource   bool
	IncludeBackupName bool
}

// Placement records where one file record ended up.
type Placement struct {
	ContentHash string
	Component   string
	FileArea    string
	Username    string
	Source      string
	Destination string
	Size        int64
}

// Report summarises the reorganization of one backup folder.
type Report struct {
	Backup     string
	Course     string
	ResultsDir string
	Processed  int
	Skipped    int
	Bytes      int64
	Placements []Placement
	Err        error
}

type Organizer struct {
	fs   billy.Filesystem
	opts Options
}

func New(fs billy.Filesystem, opts Options) *Organizer {
	return &Organizer{fs: fs, opts: opts}
}

// Backups lists the backup folders in the staging directory.
func (o *Organizer) Backups(staging string) ([]string, error) {
	entries, err := o.fs.ReadDir(staging)
	if err != nil {
		return nil, errors.Wrapf(err, "listing backups in %s", staging)
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			backups = append(backups, entry.Name())
		}
	}
	return backups, nil
}

// OrganizeAll processes every backup folder in staging in order. Problems
// with a single backup are logged and recorded in its report.
func (o *Organizer) OrganizeAll(ctx context.Context, staging string) ([]*Report, error) {
	backups, err := o.Backups(staging)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		log.Warn().Str("staging", staging).Msg("no backup folders found")
		return nil, nil
	}
	log.Info().Int("backups", len(backups)).Msg("backup folders found")
	return o.OrganizeBackups(ctx, staging, backups)
}

// OrganizeBackups processes the named backup folders of staging in order,
// with the same error handling as OrganizeAll.
func (o *Organizer) OrganizeBackups(ctx context.Context, staging string, backups []string) ([]*Report, error) {
	reports := make([]*Report, 0, len(backups))
	for idx, name := range backups {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		log.Info().Msgf("[%d/%d] processing backup %s", idx+1, len(backups), name)

		report, err := o.Organize(ctx, o.fs.Join(staging, name), name)
		if err != nil {
			if errors.Is(err, ErrNoManifest) {
				log.Warn().Str("backup", name).Msg("files.xml not found, skipping backup")
			} else {
				log.Error().Err(err).Str("backup", name).Msg("failed organizing backup")
			}
			report.Err = err
		}
		reports = append(reports, report)
	}

	log.Info().Int("backups", len(reports)).Msg("all backups processed")
	return reports, nil
}

// Organize copies the content of one extracted backup into the results tree.
// The returned report is never nil.
func (o *Organizer) Organize(ctx context.Context, backupDir string, name string) (*Report, error) {
	report := &Report{Backup: name}

	course, err := o.readCourse(backupDir)
	if err != nil {
		return report, err
	}
	report.Course = course
	log.Info().Str("backup", name).Str("course", course).Msg("course found")

	root, err := o.resultsRoot(backupDir, name, course)
	if err != nil {
		return report, err
	}
	report.ResultsDir = root

	var users map[string]string
	if o.opts.OrganizeByUser {
		users, err = o.readUsers(backupDir)
		if err != nil {
			return report, err
		}
		if users == nil {
			log.Warn().Str("backup", name).Msg("users.xml not found, user organization disabled")
		} else {
			log.Info().Int("users", len(users)).Msg("users loaded")
		}
	}

	records, err := o.readFiles(backupDir)
	if err != nil {
		return report, err
	}

	if err := o.fs.MkdirAll(root, 0755); err != nil {
		return report, errors.Wrapf(err, "creating %s", root)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		placement, err := o.place(backupDir, root, &records[i], users)
		if err != nil {
			return report, err
		}
		if placement == nil {
			report.Skipped++
			continue
		}

		report.Processed++
		report.Bytes += placement.Size
		report.Placements = append(report.Placements, *placement)
		if report.Processed%progressEvery == 0 {
			log.Info().Int("processed", report.Processed).Msg("processing files")
		}
	}

	log.Info().
		Str("backup", name).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Str("size", humanize.Bytes(uint64(report.Bytes))).
		Str("results", root).
		Msg("backup organized")
	return report, nil
}

// place copies the blob of rec into the results tree. It returns nil without
// error for records that are skipped.
func (o *Organizer) place(backupDir, root string, rec *mbz.FileRecord, users map[string]string) (*Placement, error) {
	if rec.Skippable() {
		return nil, nil
	}

	blob, err := rec.BlobPath()
	if err != nil {
		log.Warn().Err(err).Str("file", rec.FileName).Msg("skipping file record")
		return nil, nil
	}
	source := o.fs.Join(backupDir, blob)
	if _, err := o.fs.Stat(source); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("source", source).Str("file", rec.FileName).Msg("source file not found")
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", source)
	}

	username := ""
	if users != nil {
		username = users[rec.UserID]
	}

	dir, err := o.destinationDir(root, rec, username)
	if err != nil {
		return nil, err
	}
	if err := o.fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", dir)
	}

	// A filename can carry path separators; they are confined under dir.
	target, err := safepath.Join(o.fs, dir, rec.FileName)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", rec.FileName)
	}
	dest, err := local.UniqueName(o.fs, path.Dir(target), path.Base(target))
	if err != nil {
		return nil, err
	}

	size, err := local.Copy(o.fs, source, dest)
	if err != nil {
		return nil, err
	}

	return &Placement{
		ContentHash: rec.ContentHash,
		Component:   rec.Component,
		FileArea:    rec.FileArea,
		Username:    username,
		Source:      source,
		Destination: dest,
		Size:        size,
	}, nil
}

// destinationDir builds <root>/<component>/<filearea>[/<username>][/<filepath>].
func (o *Organizer) destinationDir(root string, rec *mbz.FileRecord, username string) (string, error) {
	parts := []string{sanitize(rec.Component), sanitize(rec.FileArea)}
	if username != "" {
		parts = append(parts, sanitize(username))
	}
	if fp := strings.Trim(rec.FilePath, "/"); fp != "" {
		parts = append(parts, fp)
	}

	dir, err := safepath.Join(o.fs, root, path.Join(parts...))
	if err != nil {
		return "", errors.Wrapf(err, "resolving destination for %q", rec.FileName)
	}
	return dir, nil
}

// ResultsDir returns the directory the content of a backup folder is, or
// would be, placed in.
func (o *Organizer) ResultsDir(backupDir, name string) (string, error) {
	course, err := o.readCourse(backupDir)
	if err != nil {
		return "", err
	}
	return o.resultsRoot(backupDir, name, course)
}

func (o *Organizer) resultsRoot(backupDir, name, course string) (string, error) {
	var base, rel string
	switch {
	case o.opts.ExtractToSource:
		base, rel = backupDir, course
	case o.opts.IncludeBackupName:
		base, rel = o.opts.Results, path.Join(sanitize(name), course)
	default:
		base, rel = o.opts.Results, course
	}

	root, err := safepath.Join(o.fs, base, rel)
	if err != nil {
		return "", errors.Wrapf(err, "resolving results directory for %s", name)
	}
	return root, nil
}

func (o *Organizer) readCourse(backupDir string) (string, error) {
	f, err := o.fs.Open(o.fs.Join(backupDir, mbz.CourseManifest))
	if os.IsNotExist(err) {
		return mbz.UnknownCourse, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "opening course manifest")
	}
	defer f.Close()

	course, err := mbz.ParseCourse(f)
	if err != nil {
		return "", err
	}
	return sanitize(course.DisplayName()), nil
}

// readUsers returns nil without error when users.xml is absent.
func (o *Organizer) readUsers(backupDir string) (map[string]string, error) {
	f, err := o.fs.Open(o.fs.Join(backupDir, mbz.UsersManifest))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening users manifest")
	}
	defer f.Close()

	return mbz.ParseUsers(f)
}

func (o *Organizer) readFiles(backupDir string) ([]mbz.FileRecord, error) {
	manifest := o.fs.Join(backupDir, mbz.FilesManifest)
	f, err := o.fs.Open(manifest)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNoManifest, manifest)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening files manifest")
	}
	defer f.Close()

	log.Debug().Str("manifest", manifest).Msg("parsing files manifest")
	return mbz.ParseFiles(f)
}

// sanitize turns a display name into a single path element.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
