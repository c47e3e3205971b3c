package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/config"
	"github.com/gentoomaniac/mboozle/pkg/db"
	"github.com/gentoomaniac/mboozle/pkg/organize"
)

var errConfigRequired = errors.New("config file required")

type app struct {
	cfg     *config.Config
	fs      billy.Filesystem
	catalog db.DB

	// processed holds the archives handled by this process, for ticks
	// without a catalog.
	processed map[string]db.Archive
}

// runState is the catalog entry of the command being executed. The run is
// nil when no catalog is configured.
type runState struct {
	run *db.Run
}

func newApp(cfg *config.Config) (*app, error) {
	for _, p := range []*string{&cfg.Inputs, &cfg.Outputs, &cfg.Results} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s", *p)
		}
		*p = abs
	}

	a := &app{
		cfg:       cfg,
		fs:        osfs.New("/"),
		processed: map[string]db.Archive{},
	}

	if cfg.Catalog != "" {
		catalog, err := db.NewSQLLite(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		if err := catalog.Init(); err != nil {
			catalog.Close()
			return nil, errors.Wrapf(err, "initialising catalog %s", cfg.Catalog)
		}
		log.Debug().Str("catalog", cfg.Catalog).Msg("catalog opened")
		a.catalog = catalog
	}
	return a, nil
}

func (a *app) Close() {
	if a.catalog != nil {
		a.catalog.Close()
		a.catalog = nil
	}
}

// finish closes the app and returns the exit code for the outcome of
// command.
func (a *app) finish(command string, err error) int {
	a.Close()
	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("command failed")
		return 1
	}
	return 0
}

// track records command as a run in the catalog around fn.
func (a *app) track(command string, fn func(run *runState) error) error {
	state := &runState{}
	if a.catalog != nil {
		run := &db.Run{
			UUID:    uuid.New().String(),
			Command: command,
			Started: time.Now().Unix(),
			Status:  db.StatusRunning,
		}
		if err := a.catalog.AddRun(run); err != nil {
			log.Warn().Err(err).Msg("could not record run in catalog")
		} else {
			state.run = run
			log.Debug().Str("run", run.UUID).Msg("run started")
		}
	}

	err := fn(state)

	if state.run != nil {
		state.run.Finished = time.Now().Unix()
		state.run.Status = runStatus(err)
		if ferr := a.catalog.FinishRun(state.run); ferr != nil {
			log.Warn().Err(ferr).Msg("could not finish run in catalog")
		}
	}
	return err
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return db.StatusOK
	case errors.Is(err, context.Canceled):
		return db.StatusCanceled
	default:
		return db.StatusFailed
	}
}

// record stores the reorganization reports of a run.
func (a *app) record(state *runState, reports []*organize.Report) {
	if a.catalog == nil || state == nil || state.run == nil {
		return
	}
	for _, report := range reports {
		backup := &db.Backup{
			RunID:      state.run.ID,
			Name:       report.Backup,
			Course:     report.Course,
			ResultsDir: report.ResultsDir,
			Processed:  report.Processed,
			Skipped:    report.Skipped,
			Bytes:      report.Bytes,
		}
		if report.Err != nil {
			backup.Error = report.Err.Error()
		}
		for _, p := range report.Placements {
			backup.Objects = append(backup.Objects, &db.Placement{
				ContentHash: p.ContentHash,
				Component:   p.Component,
				FileArea:    p.FileArea,
				Username:    p.Username,
				Source:      p.Source,
				Destination: p.Destination,
				Size:        p.Size,
			})
		}
		if err := a.catalog.AddBackup(backup); err != nil {
			log.Warn().Err(err).Str("backup", report.Backup).Msg("could not record backup in catalog")
		}
	}
}
