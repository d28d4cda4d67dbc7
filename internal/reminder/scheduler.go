// Package reminder scans the task set on a schedule and decides which tasks
// need a notification now.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/colonyops/taskrelay/internal/core/config"
	"github.com/colonyops/taskrelay/internal/core/kv"
	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/colonyops/taskrelay/pkg/tmpl"
	"github.com/rs/zerolog"
)

// Options configures a Scheduler. Zero values take the defaults from
// DefaultOptions.
type Options struct {
	Windows        task.Windows
	Cooldown       time.Duration // minimum gap between two warnings for one task
	AlertInterval  time.Duration
	DigestInterval time.Duration
	NotifyTimeout  time.Duration
	AlertTemplate  string
	DigestTemplate string
	Location       *time.Location
}

// DefaultOptions returns a 15 minute alert tick, a 2 hour digest and a
// rolling one hour warning cooldown.
func DefaultOptions() Options {
	return Options{
		Windows:        task.DefaultWindows,
		Cooldown:       time.Hour,
		AlertInterval:  15 * time.Minute,
		DigestInterval: 2 * time.Hour,
		NotifyTimeout:  10 * time.Second,
		Location:       time.UTC,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Windows.Critical <= 0 {
		o.Windows.Critical = d.Windows.Critical
	}
	if o.Windows.Warning <= 0 {
		o.Windows.Warning = d.Windows.Warning
	}
	if o.Cooldown <= 0 {
		o.Cooldown = d.Cooldown
	}
	if o.AlertInterval <= 0 {
		o.AlertInterval = d.AlertInterval
	}
	if o.DigestInterval <= 0 {
		o.DigestInterval = d.DigestInterval
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = d.NotifyTimeout
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	return o
}

// Result describes one tick.
type Result struct {
	Critical   []int64 // fired critical task ids
	Warning    []int64 // fired warning task ids
	Suppressed []int64 // warning task ids still in cooldown
	Sent       bool
	Message    string
}

// Fired returns every task id included in the delivered message.
func (r Result) Fired() []int64 {
	out := make([]int64, 0, len(r.Critical)+len(r.Warning))
	out = append(out, r.Critical...)
	return append(out, r.Warning...)
}

// Scheduler runs the alert and digest ticks.
type Scheduler struct {
	store    task.Store
	state    *StateStore
	notifier notify.Notifier
	opts     Options
	metrics  *metrics.Metrics
	log      zerolog.Logger

	alertTmpl  *template.Template
	digestTmpl *template.Template

	// alertMu keeps alert ticks from overlapping each other, so two ticks
	// never both decide the same warning is out of cooldown.
	alertMu sync.Mutex
	// stateMu guards each load-modify-save of State. It is never held while
	// a notifier runs.
	stateMu sync.Mutex
}

// New creates a Scheduler. The templates are compiled up front so a broken
// template fails at startup instead of on the first urgent task.
func New(store task.Store, kvStore kv.KV, notifier notify.Notifier, opts Options, m *metrics.Metrics, log zerolog.Logger) (*Scheduler, error) {
	opts = opts.withDefaults()
	renderer := tmpl.New(opts.Location)

	alertSrc := opts.AlertTemplate
	if alertSrc == "" {
		alertSrc = config.DefaultAlertTemplate
	}
	alertTmpl, err := renderer.Parse("alert", alertSrc)
	if err != nil {
		return nil, fmt.Errorf("alert template: %w", err)
	}

	digestSrc := opts.DigestTemplate
	if digestSrc == "" {
		digestSrc = config.DefaultDigestTemplate
	}
	digestTmpl, err := renderer.Parse("digest", digestSrc)
	if err != nil {
		return nil, fmt.Errorf("digest template: %w", err)
	}

	return &Scheduler{
		store:      store,
		state:      NewStateStore(kvStore),
		notifier:   notifier,
		opts:       opts,
		metrics:    m,
		log:        log,
		alertTmpl:  alertTmpl,
		digestTmpl: digestTmpl,
	}, nil
}

// State returns the persisted scheduler state.
func (s *Scheduler) State(ctx context.Context) (State, error) {
	return s.state.Load(ctx)
}

// AlertTick classifies every open task at now and sends one consolidated
// message when any task is due. Critical tasks fire on every tick; a warning
// fires once per cooldown. When delivery fails nothing is recorded, so the
// next tick retries the same set.
func (s *Scheduler) AlertTick(ctx context.Context, now time.Time) (Result, error) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	start := time.Now()
	defer func() { s.metrics.Tick("alert", time.Since(start)) }()

	st, err := s.loadState(ctx)
	if err != nil {
		return Result{}, err
	}

	open, err := s.store.List(ctx, task.FilterNotDone)
	if err != nil {
		return Result{}, fmt.Errorf("list open tasks: %w", err)
	}

	var (
		res      Result
		critical []task.Task
		warning  []task.Task
		openIDs  = make(map[int64]struct{}, len(open))
	)
	for _, t := range open {
		openIDs[t.ID] = struct{}{}
		switch s.opts.Windows.Classify(t, now) {
		case task.TierCritical:
			critical = append(critical, t)
			res.Critical = append(res.Critical, t.ID)
		case task.TierWarning:
			if st.InCooldown(t.ID, now, s.opts.Cooldown) {
				res.Suppressed = append(res.Suppressed, t.ID)
				continue
			}
			warning = append(warning, t)
			res.Warning = append(res.Warning, t.ID)
		}
	}

	s.metrics.Urgent(string(task.TierCritical), len(critical))
	s.metrics.Urgent(string(task.TierWarning), len(warning)+len(res.Suppressed))

	if len(critical) == 0 && len(warning) == 0 {
		s.log.Debug().Ctx(ctx).Int("open", len(open)).Int("suppressed", len(res.Suppressed)).Msg("nothing to alert")
		err := s.updateState(ctx, func(st *State) bool {
			return st.prune(openIDs, now, s.opts.Cooldown)
		})
		return res, err
	}

	msg, err := tmpl.Execute(s.alertTmpl, notify.AlertData{
		Now:      now,
		Critical: toMessageTasks(critical),
		Warning:  toMessageTasks(warning),
	})
	if err != nil {
		return res, fmt.Errorf("render alert: %w", err)
	}
	res.Message = msg

	if err := s.deliver(ctx, "alert", msg); err != nil {
		s.log.Error().Ctx(ctx).Err(err).
			Ints64("critical", res.Critical).
			Ints64("warning", res.Warning).
			Msg("alert delivery failed, will retry next tick")
		return res, err
	}
	res.Sent = true

	err = s.updateState(ctx, func(st *State) bool {
		st.prune(openIDs, now, s.opts.Cooldown)
		for _, t := range warning {
			st.Warnings[t.ID] = now
		}
		st.LastAlertAt = &now
		return true
	})
	if err != nil {
		return res, err
	}

	var markErr error
	for _, t := range critical {
		markErr = errors.Join(markErr, s.store.MarkNotified(ctx, t.ID, task.NotifiedCritical))
	}
	for _, t := range warning {
		markErr = errors.Join(markErr, s.store.MarkNotified(ctx, t.ID, task.NotifiedWarning))
	}
	if markErr != nil {
		s.log.Warn().Ctx(ctx).Err(markErr).Msg("failed to mark tasks notified")
	}

	s.log.Info().Ctx(ctx).
		Ints64("critical", res.Critical).
		Ints64("warning", res.Warning).
		Int("suppressed", len(res.Suppressed)).
		Msg("alert sent")

	return res, nil
}

// DigestResult describes one digest tick.
type DigestResult struct {
	Total   int
	Sent    bool
	Message string
}

// DigestTick sends a summary of every open task grouped by status. It keeps
// no dedup state: each call sends exactly one message.
func (s *Scheduler) DigestTick(ctx context.Context, now time.Time) (DigestResult, error) {
	start := time.Now()
	defer func() { s.metrics.Tick("digest", time.Since(start)) }()

	open, err := s.store.List(ctx, task.FilterNotDone)
	if err != nil {
		return DigestResult{}, fmt.Errorf("list open tasks: %w", err)
	}

	data := buildDigest(open, now)
	msg, err := tmpl.Execute(s.digestTmpl, data)
	if err != nil {
		return DigestResult{}, fmt.Errorf("render digest: %w", err)
	}
	res := DigestResult{Total: data.Total, Message: msg}

	if err := s.deliver(ctx, "digest", msg); err != nil {
		s.log.Error().Ctx(ctx).Err(err).Msg("digest delivery failed")
		return res, err
	}
	res.Sent = true

	err = s.updateState(ctx, func(st *State) bool {
		st.LastDigestAt = &now
		return true
	})
	if err != nil {
		return res, err
	}

	s.log.Info().Ctx(ctx).Int("tasks", data.Total).Msg("digest sent")
	return res, nil
}

func (s *Scheduler) deliver(ctx context.Context, kind, msg string) error {
	notifyCtx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	err := s.notifier.Notify(notifyCtx, msg)
	s.metrics.Notification(kind, err)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", kind, err)
	}
	return nil
}

// Reconcile drops warning history for tasks that are no longer open. It is
// run after a snapshot replaces the task set, since a replaced id may now
// name a different task.
func (s *Scheduler) Reconcile(ctx context.Context, now time.Time) error {
	open, err := s.store.List(ctx, task.FilterNotDone)
	if err != nil {
		return fmt.Errorf("list open tasks: %w", err)
	}

	keep := make(map[int64]struct{}, len(open))
	for _, t := range open {
		keep[t.ID] = struct{}{}
	}

	return s.updateState(ctx, func(st *State) bool {
		if !st.prune(keep, now, s.opts.Cooldown) {
			return false
		}
		s.log.Debug().Ctx(ctx).Int("remaining", len(st.Warnings)).Msg("pruned reminder state")
		return true
	})
}

// ResetState forgets every recorded warning and tick time.
func (s *Scheduler) ResetState(ctx context.Context) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return s.state.Reset(ctx)
}

func (s *Scheduler) loadState(ctx context.Context) (State, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return s.state.Load(ctx)
}

// updateState loads State, applies fn and saves the result when fn reports a
// change, all under stateMu.
func (s *Scheduler) updateState(ctx context.Context, fn func(*State) bool) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	st, err := s.state.Load(ctx)
	if err != nil {
		return err
	}
	if !fn(&st) {
		return nil
	}
	return s.state.Save(ctx, st)
}
