package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/styles"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/relay"
	"github.com/colonyops/taskrelay/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// TaskCmd implements the task command group.
type TaskCmd struct {
	flags *Flags
	app   *relay.App

	// add flags
	addTitle       string
	addDescription string
	addDue         string
	addTags        string

	// ls flags
	listAll  bool
	listJSON bool
}

// NewTaskCmd creates a new task command.
func NewTaskCmd(flags *Flags, app *relay.App) *TaskCmd {
	return &TaskCmd{flags: flags, app: app}
}

// Register adds the task command to the application.
func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "task",
		Usage: "Manage local tasks",
		Description: `Task commands operate on the local database only.

Tasks are referenced by numeric id or by exact title. Use "taskrelay sync push"
to publish local changes to the remote server.

Examples:
  taskrelay task add --title "Send report" --due "2025-03-10 15:00"
  taskrelay task ls                       # open tasks
  taskrelay task ls --all --json          # every task as JSON lines
  taskrelay task status 3 principal
  taskrelay task rm "Send report"`,
		Commands: []*cli.Command{
			cmd.addCmd(),
			cmd.listCmd(),
			cmd.showCmd(),
			cmd.statusCmd(),
			cmd.removeCmd(),
		},
	})

	return app
}

func (cmd *TaskCmd) addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a task",
		UsageText: "taskrelay task add --title <title> [--description <desc>] [--due <time>] [--tags <tags>]",
		Description: `Creates a pending task and prints it as a JSON line.

Due times without an offset are read in the configured timezone.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "title",
				Aliases:     []string{"t"},
				Usage:       "task title",
				Required:    true,
				Destination: &cmd.addTitle,
			},
			&cli.StringFlag{
				Name:        "description",
				Aliases:     []string{"d"},
				Usage:       "optional description",
				Destination: &cmd.addDescription,
			},
			&cli.StringFlag{
				Name:        "due",
				Usage:       "due time (RFC3339 or YYYY-MM-DD HH:MM)",
				Destination: &cmd.addDue,
			},
			&cli.StringFlag{
				Name:        "tags",
				Usage:       "free-form tags",
				Destination: &cmd.addTags,
			},
		},
		Action: cmd.runAdd,
	}
}

func (cmd *TaskCmd) listCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List tasks",
		UsageText: "taskrelay task ls [--all] [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "all",
				Aliases:     []string{"a"},
				Usage:       "include done tasks",
				Destination: &cmd.listAll,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print JSON lines instead of a table",
				Destination: &cmd.listJSON,
			},
		},
		Action: cmd.runList,
	}
}

func (cmd *TaskCmd) showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one task as JSON",
		UsageText: "taskrelay task show <id|title>",
		Action:    cmd.runShow,
	}
}

func (cmd *TaskCmd) statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Change a task's status",
		UsageText: "taskrelay task status <id|title> <pending|principal|done>",
		Action:    cmd.runStatus,
	}
}

func (cmd *TaskCmd) removeCmd() *cli.Command {
	return &cli.Command{
		Name:        "rm",
		Aliases:     []string{"delete"},
		Usage:       "Delete a task",
		UsageText:   "taskrelay task rm <id|title>",
		Description: "Deletes a task by id, or the oldest task with the given title.",
		Action:      cmd.runRemove,
	}
}

func (cmd *TaskCmd) runAdd(ctx context.Context, c *cli.Command) error {
	t, err := cmd.app.Tasks.Create(ctx, relay.CreateInput{
		Title:       cmd.addTitle,
		Description: cmd.addDescription,
		Due:         cmd.addDue,
		Tags:        cmd.addTags,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return iojson.WriteLine(c.Root().Writer, t)
}

func (cmd *TaskCmd) runList(ctx context.Context, c *cli.Command) error {
	filter := task.FilterNotDone
	if cmd.listAll {
		filter = task.FilterAll
	}

	tasks, err := cmd.app.Tasks.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	w := c.Root().Writer
	if cmd.listJSON {
		for _, t := range tasks {
			if err := iojson.WriteLine(w, t); err != nil {
				return err
			}
		}
		return nil
	}

	windows := task.Windows{
		Critical: cmd.app.Config.Reminders.CriticalWindow,
		Warning:  cmd.app.Config.Reminders.WarningWindow,
	}
	return renderTaskTable(w, tasks, windows, cmd.app.Tasks.Location(), time.Now())
}

func (cmd *TaskCmd) runShow(ctx context.Context, c *cli.Command) error {
	ref, err := refArg(c)
	if err != nil {
		return err
	}

	t, err := cmd.app.Tasks.Get(ctx, ref)
	if err != nil {
		return err
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, t)
}

func (cmd *TaskCmd) runStatus(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <id|title> <status>, got %d argument(s)", c.Args().Len())
	}

	status, err := task.ParseStatus(c.Args().Get(1))
	if err != nil {
		return err
	}

	t, err := cmd.app.Tasks.SetStatus(ctx, task.ParseRef(c.Args().Get(0)), status)
	if err != nil {
		return err
	}

	return iojson.WriteLine(c.Root().Writer, t)
}

func (cmd *TaskCmd) runRemove(ctx context.Context, c *cli.Command) error {
	ref, err := refArg(c)
	if err != nil {
		return err
	}

	id, err := cmd.app.Tasks.Delete(ctx, ref)
	if err != nil {
		return err
	}

	newPrinter(c.Root().Writer).Successf("deleted task %d", id)
	return nil
}

// refArg joins all positional arguments so unquoted titles work.
func refArg(c *cli.Command) (task.Ref, error) {
	if c.Args().Len() == 0 {
		return task.Ref{}, fmt.Errorf("task id or title required")
	}
	return task.ParseRef(strings.Join(c.Args().Slice(), " ")), nil
}

func renderTaskTable(w io.Writer, tasks []task.Task, windows task.Windows, loc *time.Location, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, styles.MutedStyle.Render("no tasks"))
		return err
	}

	titleWidth := len("TITLE")
	for _, t := range tasks {
		titleWidth = max(titleWidth, len(t.Title))
	}

	header := fmt.Sprintf("%-5s %-*s %-10s %-17s %s", "ID", titleWidth, "TITLE", "STATUS", "DUE", "URGENCY")
	if _, err := fmt.Fprintln(w, styles.HeaderStyle.Render(header)); err != nil {
		return err
	}

	for _, t := range tasks {
		due := "-"
		if t.HasDue() {
			due = t.Due.In(loc).Format("Mon 02 Jan 15:04")
		}
		tier := windows.Classify(t, now)

		// Pad before styling so escape codes do not skew the columns.
		_, err := fmt.Fprintf(w, "%-5d %-*s %s %-17s %s\n",
			t.ID,
			titleWidth, t.Title,
			styles.Status(string(t.Status)).Render(fmt.Sprintf("%-10s", t.Status)),
			due,
			styles.Tier(string(tier)).Render(string(tier)),
		)
		if err != nil {
			return err
		}
	}

	return nil
}
