package remote

import (
	"context"
	"io"
	"os/exec"
	"path"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/config"
)

// Rclone delegates uploads to the rclone binary.
type Rclone struct {
	runner      Runner
	lookPath    func(string) (string, error)
	binary      string
	remoteName  string
	remotePath  string
	archivePath string
	flags       []string
}

func NewRclone(cfg config.Rclone, runner Runner) *Rclone {
	return &Rclone{
		runner:      runner,
		lookPath:    exec.LookPath,
		binary:      cfg.Binary,
		remoteName:  cfg.RemoteName,
		remotePath:  cfg.RemotePath,
		archivePath: cfg.MbzArchivePath,
		flags:       cfg.Flags,
	}
}

func (r *Rclone) Name() string {
	return "rclone"
}

// Destination is the remote location dest is uploaded to. An empty dest is
// the configured remote path itself.
func (r *Rclone) Destination(dest string) string {
	return r.remoteName + ":" + path.Join(r.remotePath, dest)
}

// ArchiveDestination is the remote the .mbz archives are uploaded to.
func (r *Rclone) ArchiveDestination() string {
	return r.remoteName + ":" + path.Join(r.remotePath, r.archivePath)
}

// Check makes sure the binary is on PATH and actually runs.
func (r *Rclone) Check(ctx context.Context) error {
	if _, err := r.lookPath(r.binary); err != nil {
		return errors.Wrapf(err, "%s not found", r.binary)
	}
	if _, err := r.runner.Run(ctx, r.binary, []string{"version"}, io.Discard); err != nil {
		return errors.Wrapf(err, "%s version", r.binary)
	}
	return nil
}

// SyncArgs returns the arguments of the results upload.
func (r *Rclone) SyncArgs(dir string, dest string, move bool) []string {
	op := "copy"
	if move {
		op = "move"
	}
	args := append([]string{op, dir, r.Destination(dest)}, r.flags...)
	if move {
		args = append(args, "--delete-empty-src-dirs")
	}
	return args
}

func (r *Rclone) SyncResults(ctx context.Context, dir string, dest string, move bool) error {
	return r.run(ctx, r.SyncArgs(dir, dest, move))
}

func (r *Rclone) UploadArchives(ctx context.Context, archives []string) error {
	dest := r.ArchiveDestination()
	for _, archive := range archives {
		log.Info().Str("archive", path.Base(archive)).Str("destination", dest).Msg("uploading archive")
		args := append([]string{"copy", archive, dest}, r.flags...)
		if err := r.run(ctx, args); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rclone) run(ctx context.Context, args []string) error {
	out := NewLineLogger(log.With().Str("tool", r.binary).Logger())
	defer out.Flush()

	log.Debug().Str("binary", r.binary).Strs("args", args).Msg("running")
	_, err := r.runner.Run(ctx, r.binary, args, out)
	return err
}
