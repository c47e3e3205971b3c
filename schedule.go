package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ScheduleArgs struct {
	Cron string `help:"Standard cron expression, overrides the schedule from the config."`
	Sync bool   `help:"Upload the results after every scheduled run."`
}

// cronLogger forwards scheduler messages to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func (a *app) scheduleSpec(args *ScheduleArgs) (cron.Schedule, string, error) {
	spec := args.Cron
	if spec == "" {
		spec = a.cfg.Schedule
	}
	if spec == "" {
		return nil, "", errors.New("no schedule given, set schedule in the config or pass --cron")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, "", errors.Wrapf(err, "parsing schedule %q", spec)
	}
	return schedule, spec, nil
}

// schedule processes new or changed archives on every tick until ctx is
// canceled. A tick that fires while the previous run is still busy is skipped.
func (a *app) schedule(ctx context.Context, args *ScheduleArgs) error {
	schedule, spec, err := a.scheduleSpec(args)
	if err != nil {
		return err
	}

	logger := cronLogger{logger: log.With().Str("component", "scheduler").Logger()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(schedule, cron.FuncJob(func() {
		err := a.track("schedule", func(run *runState) error {
			return a.runChanged(ctx, run, args.Sync)
		})
		if err != nil {
			log.Error().Err(err).Msg("scheduled run failed")
		}
		log.Info().Str("next", formatNext(schedule.Next(time.Now()))).Msg("waiting for next run")
	}))

	c.Start()
	log.Info().Str("schedule", spec).Str("next", formatNext(schedule.Next(time.Now()))).Msg("scheduler started")

	<-ctx.Done()
	log.Info().Msg("stopping scheduler, waiting for the running job")
	<-c.Stop().Done()
	return nil
}

func formatNext(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.Format(time.RFC3339), humanize.Time(t))
}
