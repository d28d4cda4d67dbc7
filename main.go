package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskrelay/internal/commands"
	"github.com/colonyops/taskrelay/internal/core/config"
	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/colonyops/taskrelay/internal/core/styles"
	"github.com/colonyops/taskrelay/internal/relay"
	"github.com/colonyops/taskrelay/pkg/logutils"
)

// Set with -ldflags at release time.
var (
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// go install builds carry module and VCS data instead of ldflags.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		relayApp  = &relay.App{}
		opened    bool
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "taskrelay",
		Usage:     "Personal task tracker with due-time reminders and replica sync",
		UsageText: "taskrelay [global options] command [command options]",
		Description: `taskrelay keeps a small task list in a local SQLite database.

A node started with 'taskrelay serve' sends urgency alerts and periodic
digests, accepts chat commands through its inbox, and serves the task set
to other nodes. Client nodes replicate with 'taskrelay sync push' and
'taskrelay sync pull'.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TASKRELAY_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (logs go to stderr when unset)",
				Sources:     cli.EnvVars("TASKRELAY_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TASKRELAY_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TASKRELAY_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			palette, _ := styles.GetPalette(cfg.Theme)
			styles.SetTheme(palette)

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return ctx, fmt.Errorf("create data dir: %w", err)
			}

			built, err := relay.NewApp(cfg, log.Logger)
			if err != nil {
				return ctx, err
			}

			// Commands were registered with this pointer before Before ran.
			*relayApp = *built
			opened = true

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if opened {
				if err := relayApp.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewServeCmd(flags, relayApp).Register(app)
	app = commands.NewTaskCmd(flags, relayApp).Register(app)
	app = commands.NewSyncCmd(flags, relayApp).Register(app)
	app = commands.NewRemindCmd(flags, relayApp).Register(app)
	app = commands.NewNotificationsCmd(flags, relayApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "taskrelay: %v\n", err)
		os.Exit(1)
	}
}
