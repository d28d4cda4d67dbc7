package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/colonyops/taskrelay/internal/relay"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// ServeCmd runs the long-lived node: sync server, reminder scheduler and
// inbox poller.
type ServeCmd struct {
	flags *Flags
	app   *relay.App

	addr string
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags, app *relay.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the sync server and reminder scheduler",
		UsageText: "taskrelay serve [--addr host:port]",
		Description: `Starts the HTTP sync server, the reminder scheduler and the inbox poller.

Alerts are checked immediately and then on every alert interval. A digest of
open tasks is sent on every digest interval. Runs until interrupted.

Examples:
  taskrelay serve
  taskrelay serve --addr 0.0.0.0:5000`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides server.addr)",
				Sources:     cli.EnvVars("TASKRELAY_ADDR"),
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.addr != "" {
		cmd.app.Config.Server.Addr = cmd.addr
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("addr", cmd.app.Config.Server.Addr).
		Str("timezone", cmd.app.Config.Timezone).
		Dur("alert_interval", cmd.app.Config.Reminders.AlertInterval).
		Dur("digest_interval", cmd.app.Config.Reminders.DigestInterval).
		Msg("starting taskrelay")

	if err := cmd.app.Serve(ctx); err != nil {
		return err
	}

	log.Info().Msg("taskrelay stopped")
	return nil
}
