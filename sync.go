package main

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/config"
	"github.com/gentoomaniac/mboozle/pkg/extract"
	"github.com/gentoomaniac/mboozle/pkg/remote"
)

func (a *app) rcloneRunner() *remote.CommandRunner {
	return &remote.CommandRunner{Env: a.cfg.Rclone.Env}
}

func (a *app) syncer(ctx context.Context) (remote.Syncer, error) {
	if a.cfg.SyncBackend == config.BackendS3 {
		client, err := remote.NewS3Client(ctx, a.cfg.S3)
		if err != nil {
			return nil, err
		}
		return remote.NewS3(client, a.fs, a.cfg.S3), nil
	}
	return remote.NewRclone(a.cfg.Rclone, a.rcloneRunner()), nil
}

// syncPlan decides what gets uploaded. With extract_to_source the results
// live inside the backup folders of the staging directory, next to the raw
// blobs and manifests, so only the course folders are uploaded, each below
// <backup>/<course> on the remote.
func (a *app) syncPlan() remote.Plan {
	plan := remote.Plan{
		Results:           []remote.Upload{{Dir: a.cfg.Results}},
		Staging:           a.cfg.Outputs,
		DeleteAfterUpload: a.cfg.DeleteAfterUpload(),
	}
	if a.cfg.ExtractToSource {
		plan.Results = a.courseFolders()
	}

	archives, err := extract.ListArchives(a.fs, a.cfg.Inputs)
	if err != nil {
		log.Warn().Err(err).Str("inputs", a.cfg.Inputs).Msg("inputs folder not readable, no archives will be uploaded")
	}
	plan.Archives = archives
	return plan
}

// courseFolders lists the organized course folders inside the staging
// directory.
func (a *app) courseFolders() []remote.Upload {
	o := a.organizer()
	backups, err := o.Backups(a.cfg.Outputs)
	if err != nil {
		log.Warn().Err(err).Str("outputs", a.cfg.Outputs).Msg("staging directory not readable")
		return nil
	}

	var uploads []remote.Upload
	for _, name := range backups {
		dir, err := o.ResultsDir(a.fs.Join(a.cfg.Outputs, name), name)
		if err != nil {
			log.Warn().Err(err).Str("backup", name).Msg("cannot resolve course folder")
			continue
		}
		if _, err := a.fs.Stat(dir); err != nil {
			log.Warn().Str("backup", name).Str("dir", dir).Msg("backup not organized, not uploading it")
			continue
		}
		rel, err := filepath.Rel(a.cfg.Outputs, dir)
		if err != nil {
			continue
		}
		uploads = append(uploads, remote.Upload{Dir: dir, Dest: filepath.ToSlash(rel)})
	}
	return uploads
}

func (a *app) sync(ctx context.Context) error {
	syncer, err := a.syncer(ctx)
	if err != nil {
		return err
	}
	return remote.Run(ctx, a.fs, syncer, a.syncPlan())
}
