package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/internal/core/styles"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/relay"
	"github.com/colonyops/taskrelay/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// NotificationsCmd inspects the delivery log.
type NotificationsCmd struct {
	flags *Flags
	app   *relay.App

	limit   int
	jsonOut bool
}

// NewNotificationsCmd creates a new notifications command.
func NewNotificationsCmd(flags *Flags, app *relay.App) *NotificationsCmd {
	return &NotificationsCmd{flags: flags, app: app}
}

// Register adds the notifications command to the application.
func (cmd *NotificationsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notif"},
		Usage:   "Inspect sent notifications",
		Description: `Every alert, digest and inbox reply is recorded with its delivery result.

Examples:
  taskrelay notifications ls
  taskrelay notifications ls --limit 5 --json
  taskrelay notifications clear`,
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List recent notifications, newest first",
				UsageText: "taskrelay notifications ls [--limit n] [--json]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "limit",
						Aliases:     []string{"n"},
						Usage:       "maximum entries to show (0 for all)",
						Value:       20,
						Destination: &cmd.limit,
					},
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "print JSON lines",
						Destination: &cmd.jsonOut,
					},
				},
				Action: cmd.runList,
			},
			{
				Name:      "clear",
				Usage:     "Delete the notification history",
				UsageText: "taskrelay notifications clear",
				Action:    cmd.runClear,
			},
		},
	})

	return app
}

type notificationJSON struct {
	ID        int64  `json:"id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (cmd *NotificationsCmd) runList(ctx context.Context, c *cli.Command) error {
	items, err := cmd.app.Notifications.List(ctx, cmd.limit)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	w := c.Root().Writer
	if cmd.jsonOut {
		for _, n := range items {
			out := notificationJSON{
				ID:        n.ID,
				Level:     string(n.Level),
				Message:   n.Message,
				Error:     n.Error,
				CreatedAt: task.FormatTime(n.CreatedAt),
			}
			if err := iojson.WriteLine(w, out); err != nil {
				return err
			}
		}
		return nil
	}

	return renderNotifications(w, items, cmd.app.Config.Location())
}

func (cmd *NotificationsCmd) runClear(ctx context.Context, c *cli.Command) error {
	n, err := cmd.app.Notifications.Clear(ctx)
	if err != nil {
		return err
	}

	newPrinter(c.Root().Writer).Successf("cleared %d notification(s)", n)
	return nil
}

func renderNotifications(w io.Writer, items []notify.Notification, loc *time.Location) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, styles.MutedStyle.Render("no notifications"))
		return err
	}

	for _, n := range items {
		level := styles.SuccessStyle.Render("sent  ")
		if n.Level == notify.LevelError {
			level = styles.ErrorStyle.Render("failed")
		}

		stamp := styles.MutedStyle.Render(n.CreatedAt.In(loc).Format("2006-01-02 15:04:05"))
		if _, err := fmt.Fprintf(w, "%s %s #%d\n", stamp, level, n.ID); err != nil {
			return err
		}
		if n.Error != "" {
			if _, err := fmt.Fprintf(w, "  error: %s\n", n.Error); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "  %s\n", indent(n.Message)); err != nil {
			return err
		}
	}
	return nil
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ")
}
