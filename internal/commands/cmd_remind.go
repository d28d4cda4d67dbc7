package commands

import (
	"context"
	"time"

	"github.com/colonyops/taskrelay/internal/relay"
	"github.com/colonyops/taskrelay/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// RemindCmd runs single scheduler ticks on demand.
type RemindCmd struct {
	flags *Flags
	app   *relay.App

	digest bool
	reset  bool
}

// NewRemindCmd creates a new remind command.
func NewRemindCmd(flags *Flags, app *relay.App) *RemindCmd {
	return &RemindCmd{flags: flags, app: app}
}

// Register adds the remind command to the application.
func (cmd *RemindCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "remind",
		Usage: "Run reminder checks outside the server",
		Description: `Reminder commands share state with "taskrelay serve", so a warning sent
here is not repeated by the server within the cooldown.

Examples:
  taskrelay remind check            # one alert tick now
  taskrelay remind check --digest   # send the task digest now
  taskrelay remind state            # print cooldown state
  taskrelay remind state --reset    # forget sent warnings`,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Run one alert tick, or a digest with --digest",
				UsageText: "taskrelay remind check [--digest]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "digest",
						Usage:       "send the digest instead of urgency alerts",
						Destination: &cmd.digest,
					},
				},
				Action: cmd.runCheck,
			},
			{
				Name:      "state",
				Usage:     "Print the persisted reminder state",
				UsageText: "taskrelay remind state [--reset]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "reset",
						Usage:       "clear cooldowns and tick timestamps",
						Destination: &cmd.reset,
					},
				},
				Action: cmd.runState,
			},
		},
	})

	return app
}

func (cmd *RemindCmd) runCheck(ctx context.Context, c *cli.Command) error {
	p := newPrinter(c.Root().Writer)
	now := time.Now()

	if cmd.digest {
		res, err := cmd.app.Scheduler.DigestTick(ctx, now)
		if err != nil {
			return err
		}
		p.Successf("digest sent, %d open task(s)", res.Total)
		return nil
	}

	res, err := cmd.app.Scheduler.AlertTick(ctx, now)
	if err != nil {
		return err
	}

	if !res.Sent {
		p.Infof("nothing due (%d warning(s) in cooldown)", len(res.Suppressed))
		return nil
	}
	p.Successf("alert sent: %d critical, %d warning, %d suppressed",
		len(res.Critical), len(res.Warning), len(res.Suppressed))
	return nil
}

func (cmd *RemindCmd) runState(ctx context.Context, c *cli.Command) error {
	if cmd.reset {
		if err := cmd.app.Scheduler.ResetState(ctx); err != nil {
			return err
		}
		newPrinter(c.Root().Writer).Successf("reminder state cleared")
		return nil
	}

	st, err := cmd.app.Scheduler.State(ctx)
	if err != nil {
		return err
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, st)
}
