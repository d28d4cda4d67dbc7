package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/taskrelay/internal/core/config"
	"github.com/colonyops/taskrelay/internal/core/eventbus"
	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/data/db"
	"github.com/colonyops/taskrelay/internal/data/stores"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/colonyops/taskrelay/internal/reminder"
	"github.com/colonyops/taskrelay/internal/replica"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App is the central entry point for all taskrelay operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Tasks         *TaskService
	Inbox         *InboxService
	Scheduler     *reminder.Scheduler
	Notifier      notify.Notifier
	Notifications notify.Store

	Config   *config.Config
	DB       *db.DB
	KV       *stores.KVStore
	Bus      *eventbus.EventBus
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	taskStore  *stores.TaskStore
	inboxStore *stores.InboxStore
	log        zerolog.Logger
}

// NewApp opens the database under cfg.DataDir and wires every service. A
// corrupt database file is moved aside and a fresh one created.
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	database, err := openDB(cfg, log)
	if err != nil {
		return nil, err
	}
	if v, err := database.SchemaVersion(context.Background()); err == nil {
		log.Debug().Str("path", database.Path()).Int("schema_version", v).Msg("database ready")
	}

	loc := cfg.Location()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	bus := eventbus.New(64)
	eventbus.RegisterDebugLogger(bus, logging.Sub(log, "eventbus"))

	taskStore := stores.NewTaskStore(database, loc)
	kvStore := stores.NewKVStore(database)
	notifyStore := stores.NewNotifyStore(database)
	inboxStore := stores.NewInboxStore(database)

	var sink notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		sink = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	} else {
		sink = notify.NewLog(logging.Sub(log, "notify"))
	}
	notifier := notify.NewRecorder(sink, notifyStore, logging.Sub(log, "notify"))

	tasks := NewTaskService(taskStore, loc, log)

	sched, err := reminder.New(taskStore, kvStore, notifier, reminder.Options{
		Windows: task.Windows{
			Critical: cfg.Reminders.CriticalWindow,
			Warning:  cfg.Reminders.WarningWindow,
		},
		Cooldown:       cfg.Reminders.WarningCooldown,
		AlertInterval:  cfg.Reminders.AlertInterval,
		DigestInterval: cfg.Reminders.DigestInterval,
		NotifyTimeout:  cfg.Notify.Timeout,
		AlertTemplate:  cfg.Notify.Templates.Alert,
		DigestTemplate: cfg.Notify.Templates.Digest,
		Location:       loc,
	}, m, logging.Sub(log, "reminder"))
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &App{
		Tasks:         tasks,
		Inbox:         NewInboxService(inboxStore, kvStore, tasks, notifier, cfg.Notify.Timeout, m, log),
		Scheduler:     sched,
		Notifier:      notifier,
		Notifications: notifyStore,
		Config:        cfg,
		DB:            database,
		KV:            kvStore,
		Bus:           bus,
		Metrics:       m,
		Registry:      registry,
		taskStore:     taskStore,
		inboxStore:    inboxStore,
		log:           log,
	}, nil
}

func openDB(cfg *config.Config, log zerolog.Logger) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, fmt.Errorf("open database: %w", err)
	}

	backup, recErr := stores.RecoverFromCorruption(cfg.DataDir)
	if recErr != nil {
		return nil, fmt.Errorf("recover database: %w", recErr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("database corrupt, starting from an empty one")

	database, err = db.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("open database after recovery: %w", err)
	}
	return database, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Transport returns the HTTP client for the configured remote.
func (a *App) Transport() (*replica.HTTPTransport, error) {
	return replica.NewHTTPTransport(a.Config.Remote.URL, a.Config.Remote.Token, a.Config.Remote.Timeout)
}

// Engine returns a sync engine bound to the configured remote.
func (a *App) Engine() (*replica.Engine, error) {
	transport, err := a.Transport()
	if err != nil {
		return nil, err
	}
	return replica.NewEngine(a.taskStore, transport, a.Config.Location(), a.Metrics, logging.Sub(a.log, "sync")), nil
}

// Export returns the local task set as a snapshot.
func (a *App) Export(ctx context.Context) (replica.Snapshot, error) {
	return replica.Export(ctx, a.taskStore, time.Now())
}

// Import replaces the local task set with snap.
func (a *App) Import(ctx context.Context, snap replica.Snapshot) (int, error) {
	n, err := replica.Apply(ctx, a.taskStore, snap, a.Config.Location(), time.Now())
	a.Metrics.Sync("import", err)
	return n, err
}

// Server builds the sync HTTP server.
func (a *App) Server() *replica.Server {
	return replica.NewServer(a.taskStore, a.inboxStore, a.Metrics, replica.ServerOptions{
		Addr:            a.Config.Server.Addr,
		Token:           a.Config.Server.Token,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		Location:        a.Config.Location(),
		Bus:             a.Bus,
	}, logging.Sub(a.log, "server"))
}

// Watcher builds a watcher that pushes after every local database write.
func (a *App) Watcher(engine *replica.Engine) (*replica.Watcher, error) {
	push := func(ctx context.Context) error {
		_, err := engine.Push(ctx)
		return err
	}
	return replica.NewWatcher(a.DB.Path(), a.Config.Sync.WatchDebounce, push, logging.Sub(a.log, "watch"))
}

// Serve runs the sync server, the reminder scheduler and the inbox poller
// until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	a.Bus.SubscribeInboxReceived(func(eventbus.InboxReceivedPayload) {
		a.Inbox.Kick()
	})
	a.Bus.SubscribeSnapshotApplied(func(p eventbus.SnapshotAppliedPayload) {
		if err := a.Scheduler.Reconcile(context.WithoutCancel(ctx), time.Now()); err != nil {
			a.log.Warn().Err(err).Str("request_id", p.RequestID).Msg("reconcile reminder state failed")
		}
	})

	server := a.Server()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Bus.Start(ctx)
		return nil
	})
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return a.Scheduler.Run(ctx) })
	g.Go(func() error { return a.Inbox.Run(ctx, a.Config.Reminders.PollInterval) })

	return g.Wait()
}
