package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/organize"
)

func (a *app) organizer() *organize.Organizer {
	return organize.New(a.fs, organize.Options{
		Results:           a.cfg.Results,
		OrganizeByUser:    a.cfg.OrganizeByUser,
		ExtractToSource:   a.cfg.ExtractToSource,
		IncludeBackupName: a.cfg.IncludeBackupName,
	})
}

func (a *app) organize(ctx context.Context, state *runState) error {
	if _, err := a.fs.Stat(a.cfg.Outputs); os.IsNotExist(err) {
		log.Error().Str("outputs", a.cfg.Outputs).Msg("extracted directory not found, please run the extractor first")
		return errors.Wrapf(err, "staging directory %s", a.cfg.Outputs)
	}

	reports, err := a.organizer().OrganizeAll(ctx, a.cfg.Outputs)
	a.record(state, reports)
	if err != nil {
		return err
	}
	return organizeSummary(reports)
}

// organizeFailed reports whether a backup failed. Folders without a files
// manifest have nothing to organize and do not count.
func organizeFailed(report *organize.Report) bool {
	return report.Err != nil && !errors.Is(report.Err, organize.ErrNoManifest)
}

func organizeSummary(reports []*organize.Report) error {
	failed, files := 0, 0
	for _, report := range reports {
		files += report.Processed
		if organizeFailed(report) {
			failed++
		}
	}
	log.Info().Int("backups", len(reports)).Int("files", files).Int("failed", failed).Msg("organizing finished")

	if failed > 0 {
		return errors.Errorf("%d of %d backups failed to organize", failed, len(reports))
	}
	return nil
}
