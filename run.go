package main

import (
	"context"
	"path"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/db"
	"github.com/gentoomaniac/mboozle/pkg/extract"
)

type RunArgs struct {
	Sync bool `help:"Upload the results to the remote store after organizing."`
}

// runPipeline extracts and organizes everything, then optionally syncs.
// Extraction failures do not stop the organizing of the archives that did
// extract, but they do prevent the sync.
func (a *app) runPipeline(ctx context.Context, state *runState, withSync bool) error {
	extractErr := a.extract(ctx)
	if extractErr != nil {
		if ctx.Err() != nil {
			return extractErr
		}
		log.Warn().Err(extractErr).Msg("continuing with the archives that extracted")
	}

	if err := a.organize(ctx, state); err != nil {
		return err
	}
	return a.finishPipeline(ctx, extractErr, withSync)
}

// runChanged only extracts and organizes archives that are new or changed
// since they were last processed successfully, so repeated runs do not add
// another copy of every file.
func (a *app) runChanged(ctx context.Context, state *runState, withSync bool) error {
	archives, err := extract.ListArchives(a.fs, a.cfg.Inputs)
	if err != nil {
		return err
	}

	stamps := a.changedArchives(archives)
	if len(stamps) == 0 {
		log.Info().Int("archives", len(archives)).Msg("no new or changed archives")
		return nil
	}
	pending := make([]string, 0, len(stamps))
	for _, archive := range archives {
		if _, ok := stamps[archive]; ok {
			pending = append(pending, archive)
		}
	}
	log.Info().Int("archives", len(pending)).Msg("new or changed archives found")

	ex, err := a.extractor()
	if err != nil {
		return err
	}
	results, err := ex.ExtractArchives(ctx, pending)
	if err != nil {
		return err
	}
	extractErr := a.extractSummary(results)

	archiveOf := map[string]string{}
	var backups []string
	for _, res := range results {
		if res.Err == nil {
			name := path.Base(res.Target)
			archiveOf[name] = res.Archive
			backups = append(backups, name)
		}
	}

	reports, err := a.organizer().OrganizeBackups(ctx, a.cfg.Outputs, backups)
	a.record(state, reports)
	if err != nil {
		return err
	}
	for _, report := range reports {
		if !organizeFailed(report) {
			a.markProcessed(state, stamps[archiveOf[report.Backup]])
		}
	}
	if err := organizeSummary(reports); err != nil {
		return err
	}
	return a.finishPipeline(ctx, extractErr, withSync)
}

func (a *app) finishPipeline(ctx context.Context, extractErr error, withSync bool) error {
	if extractErr != nil {
		if withSync {
			log.Warn().Msg("skipping sync because extraction failed")
		}
		return extractErr
	}
	if withSync {
		return a.sync(ctx)
	}
	return nil
}

// changedArchives returns the fingerprints of the archives that differ from
// the last successful processing, keyed by archive path.
func (a *app) changedArchives(archives []string) map[string]db.Archive {
	changed := map[string]db.Archive{}
	for _, archive := range archives {
		info, err := a.fs.Stat(archive)
		if err != nil {
			log.Warn().Err(err).Str("archive", archive).Msg("cannot stat archive")
			continue
		}
		stamp := db.Archive{
			Name:     path.Base(archive),
			Size:     info.Size(),
			Modified: info.ModTime().UnixNano(),
		}
		if last := a.lastProcessed(stamp.Name); last != nil && last.Size == stamp.Size && last.Modified == stamp.Modified {
			log.Debug().Str("archive", archive).Msg("archive unchanged since last run")
			continue
		}
		changed[archive] = stamp
	}
	return changed
}

func (a *app) lastProcessed(name string) *db.Archive {
	if last, ok := a.processed[name]; ok {
		return &last
	}
	if a.catalog == nil {
		return nil
	}
	last, err := a.catalog.GetArchive(name)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Warn().Err(err).Str("archive", name).Msg("could not read archive from catalog")
		}
		return nil
	}
	return last
}

func (a *app) markProcessed(state *runState, stamp db.Archive) {
	if a.processed == nil {
		a.processed = map[string]db.Archive{}
	}
	a.processed[stamp.Name] = stamp

	if a.catalog == nil || state == nil || state.run == nil {
		return
	}
	stamp.RunID = state.run.ID
	if err := a.catalog.SaveArchive(&stamp); err != nil {
		log.Warn().Err(err).Str("archive", stamp.Name).Msg("could not record archive in catalog")
	}
}
