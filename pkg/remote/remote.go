// Package remote pushes organized results and the .mbz archives to a
// remote store, either through rclone or directly to S3.
package remote

import (
	"context"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Syncer interface {
	Name() string
	// Check verifies the backend can be used.
	Check(ctx context.Context) error
	// SyncResults uploads dir below dest, a path relative to the configured
	// remote location. With move the local copies are removed.
	SyncResults(ctx context.Context, dir string, dest string, move bool) error
	UploadArchives(ctx context.Context, archives []string) error
}

// Upload is a local results directory and where it goes on the remote,
// relative to the configured location.
type Upload struct {
	Dir  string
	Dest string
}

// Plan describes one synchronization.
type Plan struct {
	Results           []Upload
	Staging           string
	Archives          []string
	DeleteAfterUpload bool
}

// Run uploads the results, removes the staging directory when results are
// moved, and then uploads the archives.
func Run(ctx context.Context, fs billy.Filesystem, syncer Syncer, plan Plan) error {
	if err := syncer.Check(ctx); err != nil {
		return errors.Wrapf(err, "%s is not available", syncer.Name())
	}
	log.Info().Str("backend", syncer.Name()).Msg("sync backend available")

	if len(plan.Results) == 0 {
		return errors.New("no results to upload")
	}
	for _, upload := range plan.Results {
		if _, err := fs.Stat(upload.Dir); err != nil {
			return errors.Wrapf(err, "results directory %s", upload.Dir)
		}
	}

	for _, upload := range plan.Results {
		log.Info().
			Str("backend", syncer.Name()).
			Bool("delete_after_upload", plan.DeleteAfterUpload).
			Str("results", upload.Dir).
			Str("dest", upload.Dest).
			Msg("uploading results")
		if err := syncer.SyncResults(ctx, upload.Dir, upload.Dest, plan.DeleteAfterUpload); err != nil {
			return errors.Wrapf(err, "uploading %s", upload.Dir)
		}
	}
	log.Info().Int("dirs", len(plan.Results)).Msg("results uploaded")

	if plan.DeleteAfterUpload {
		if err := removeStaging(fs, plan.Staging); err != nil {
			return err
		}
	}

	if len(plan.Archives) == 0 {
		log.Info().Msg("no .mbz archives to upload")
		return nil
	}
	log.Info().Int("archives", len(plan.Archives)).Msg("uploading archives")
	if err := syncer.UploadArchives(ctx, plan.Archives); err != nil {
		return errors.Wrap(err, "uploading archives")
	}
	log.Info().Msg("all archives uploaded")
	return nil
}

func removeStaging(fs billy.Filesystem, staging string) error {
	if staging == "" {
		return nil
	}
	if _, err := fs.Stat(staging); os.IsNotExist(err) {
		log.Info().Str("staging", staging).Msg("staging directory not found")
		return nil
	}
	log.Info().Str("staging", staging).Msg("deleting staging directory")
	return errors.Wrapf(util.RemoveAll(fs, staging), "deleting %s", staging)
}
