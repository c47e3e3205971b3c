package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gentoomaniac/logging"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/config"
)

var (
	version = "unset"
	commit  = "unset"
	binName = "mboozle"
	builtBy = "manual"
	date    = "unset"
)

var cli struct {
	logging.LoggingConfig

	Config string `short:"c" help:"YAML configuration file." default:"config.yaml" type:"path"`

	Run      RunArgs      `cmd:"" help:"Extract and organize all backups (default)." default:"withargs"`
	Extract  struct{}     `cmd:"" help:"Extract .mbz archives into the staging directory."`
	Organize struct{}     `cmd:"" help:"Reorganize extracted backups into the results tree."`
	Sync     struct{}     `cmd:"" help:"Upload results and archives to the remote store."`
	Runs     RunsArgs     `cmd:"" help:"Browse the runs recorded in the catalog."`
	Schedule ScheduleArgs `cmd:"" help:"Run the pipeline on a cron schedule until interrupted."`

	Version kong.VersionFlag `help:"Display version."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name(binName),
		kong.Description("Unpack Moodle course backups into a browsable directory tree."),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
			"commit":  commit,
			"binName": binName,
			"builtBy": builtBy,
			"date":    date,
		})
	logging.Setup(&cli.LoggingConfig)

	cfg, found, err := config.Load(cli.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed loading config")
	}
	if !found {
		log.Warn().Str("config", cli.Config).Msg("config file not found, using default settings")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Str("config", cli.Config).Msg("invalid config")
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed initialising")
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	command := ctx.Command()
	switch command {
	case "run":
		err = a.track(command, func(run *runState) error {
			return a.runPipeline(sigCtx, run, cli.Run.Sync)
		})

	case "extract":
		err = a.track(command, func(run *runState) error {
			return a.extract(sigCtx)
		})

	case "organize":
		err = a.track(command, func(run *runState) error {
			return a.organize(sigCtx, run)
		})

	case "sync":
		if !found {
			log.Error().Str("config", cli.Config).Msg("config file not found, please create it before syncing")
			err = errConfigRequired
			break
		}
		err = a.track(command, func(run *runState) error {
			return a.sync(sigCtx)
		})

	case "runs":
		err = a.showRuns(&cli.Runs)

	case "schedule":
		err = a.schedule(sigCtx, &cli.Schedule)

	default:
		log.Info().Str("command", command).Msg("unknown command")
	}

	// ctx.Exit does not return, so nothing deferred would run
	code := a.finish(command, err)
	stop()
	ctx.Exit(code)
}
