package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/colonyops/taskrelay/internal/relay"
	"github.com/colonyops/taskrelay/internal/replica"
	"github.com/colonyops/taskrelay/pkg/iojson"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// SyncCmd implements the sync command group.
type SyncCmd struct {
	flags *Flags
	app   *relay.App

	importReader iojson.FileReader[replica.Snapshot]
}

// NewSyncCmd creates a new sync command.
func NewSyncCmd(flags *Flags, app *relay.App) *SyncCmd {
	return &SyncCmd{flags: flags, app: app}
}

// Register adds the sync command to the application.
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "sync",
		Usage: "Replicate tasks with the remote server",
		Description: `Sync replaces one side's task set with the other's.

Push overwrites the remote with the local tasks, pull overwrites the local
tasks with the remote. The last writer wins for the whole set, so changes made
on the other side since the last sync are lost.

Examples:
  taskrelay sync push
  taskrelay sync pull
  taskrelay sync watch                     # push after every local change
  taskrelay sync export > tasks.json
  taskrelay sync import -f tasks.json`,
		Commands: []*cli.Command{
			cmd.pushCmd(),
			cmd.pullCmd(),
			cmd.watchCmd(),
			cmd.exportCmd(),
			cmd.importCmd(),
		},
	})

	return app
}

func (cmd *SyncCmd) pushCmd() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Replace the remote task set with the local one",
		UsageText: "taskrelay sync push",
		Action:    cmd.runPush,
	}
}

func (cmd *SyncCmd) pullCmd() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "Replace the local task set with the remote one",
		UsageText: "taskrelay sync pull",
		Action:    cmd.runPull,
	}
}

func (cmd *SyncCmd) watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Push whenever the local database changes",
		UsageText: "taskrelay sync watch",
		Description: `Watches the local database file and pushes once changes settle.

Runs until interrupted. Push failures are logged and retried on the next change.`,
		Action: cmd.runWatch,
	}
}

func (cmd *SyncCmd) exportCmd() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Print the local task set as a snapshot",
		UsageText: "taskrelay sync export",
		Action:    cmd.runExport,
	}
}

func (cmd *SyncCmd) importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Replace the local task set with a snapshot",
		UsageText: "taskrelay sync import [-f file]",
		Description: `Reads a snapshot from a file or stdin and replaces every local task.

The snapshot is validated first. An invalid record leaves the local tasks untouched.`,
		Flags:  []cli.Flag{cmd.importReader.Flag()},
		Action: cmd.runImport,
	}
}

func (cmd *SyncCmd) runPush(ctx context.Context, c *cli.Command) error {
	engine, err := cmd.app.Engine()
	if err != nil {
		return err
	}

	ack, err := engine.Push(ctx)
	if err != nil {
		return err
	}

	newPrinter(c.Root().Writer).Successf("pushed %d task(s) to %s", ack.Count, cmd.app.Config.Remote.URL)
	return nil
}

func (cmd *SyncCmd) runPull(ctx context.Context, c *cli.Command) error {
	engine, err := cmd.app.Engine()
	if err != nil {
		return err
	}

	n, err := engine.Pull(ctx)
	if err != nil {
		return err
	}

	newPrinter(c.Root().Writer).Successf("pulled %d task(s) from %s", n, cmd.app.Config.Remote.URL)
	return nil
}

func (cmd *SyncCmd) runWatch(ctx context.Context, c *cli.Command) error {
	engine, err := cmd.app.Engine()
	if err != nil {
		return err
	}

	watcher, err := cmd.app.Watcher(engine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("db", cmd.app.DB.Path()).
		Str("remote", cmd.app.Config.Remote.URL).
		Msg("watching for changes")
	newPrinter(c.Root().Writer).Infof("watching %s, press ctrl-c to stop", cmd.app.DB.Path())

	return watcher.Run(ctx)
}

func (cmd *SyncCmd) runExport(ctx context.Context, c *cli.Command) error {
	snap, err := cmd.app.Export(ctx)
	if err != nil {
		return err
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, snap)
}

func (cmd *SyncCmd) runImport(ctx context.Context, c *cli.Command) error {
	snap, err := cmd.importReader.Read()
	if err != nil {
		return err
	}

	n, err := cmd.app.Import(ctx, snap)
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	newPrinter(c.Root().Writer).Successf("imported %d task(s) from %s", n, cmd.importReader.Source())
	return nil
}
