package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/pkg/errors"

	clitools "github.com/gentoomaniac/mboozle/pkg/cli"
	"github.com/gentoomaniac/mboozle/pkg/db"
)

type RunsArgs struct {
	ID    int64  `short:"i" help:"Show the run with this id instead of prompting."`
	Files bool   `short:"f" help:"List every placed file of the run."`
	Hash  string `help:"List where a content hash was placed across all runs."`
}

func (a *app) showRuns(args *RunsArgs) error {
	if a.catalog == nil {
		return errors.New("no catalog configured")
	}

	if args.Hash != "" {
		placements, err := a.catalog.FindPlacementsByHash(args.Hash)
		if err != nil {
			return err
		}
		if len(placements) == 0 {
			return errors.Wrapf(db.ErrNotFound, "hash %s", args.Hash)
		}
		writePlacements(os.Stdout, placements)
		return nil
	}

	var run *db.Run
	var err error
	if args.ID != 0 {
		run, err = a.catalog.GetRun(args.ID)
	} else {
		var runs []*db.Run
		runs, err = a.catalog.GetRuns()
		if err == nil {
			run, err = clitools.PromptRuns(runs)
		}
	}
	if err != nil {
		return err
	}

	backups, err := a.catalog.GetBackupsForRun(run.ID)
	if err != nil {
		return err
	}
	if args.Files {
		for _, backup := range backups {
			if backup.Objects, err = a.catalog.GetPlacements(backup.ID); err != nil {
				return err
			}
		}
	}

	writeRunReport(os.Stdout, run, backups, args.Files)
	return nil
}

func writeRunReport(w io.Writer, run *db.Run, backups []*db.Backup, files bool) {
	item := clitools.NewRunItem(run)
	fmt.Fprintf(w, "Run %d (%s) %s: %s, started %s, took %s\n\n",
		item.ID, item.UUID, item.Command, item.Status, item.Started, item.Duration)

	if len(backups) == 0 {
		fmt.Fprintln(w, "No backups were organized in this run.")
		return
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.RightAlign(2)
	table.RightAlign(3)
	table.RightAlign(4)
	table.AddRow("BACKUP", "COURSE", "FILES", "SKIPPED", "SIZE", "RESULTS", "ERROR")
	for _, b := range backups {
		table.AddRow(b.Name, b.Course, b.Processed, b.Skipped, humanize.Bytes(uint64(b.Bytes)), b.ResultsDir, b.Error)
	}
	fmt.Fprintln(w, table)

	if !files {
		return
	}
	for _, b := range backups {
		if len(b.Objects) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", b.Name)
		writePlacements(w, b.Objects)
	}
}

func writePlacements(w io.Writer, placements []*db.Placement) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.RightAlign(2)
	table.AddRow("HASH", "USER", "SIZE", "DESTINATION")
	for _, p := range placements {
		user := p.Username
		if user == "" {
			user = "-"
		}
		table.AddRow(p.ContentHash, user, humanize.Bytes(uint64(p.Size)), p.Destination)
	}
	fmt.Fprintln(w, table)
}
