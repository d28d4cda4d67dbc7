package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/colonyops/taskrelay/internal/core/inbox"
	"github.com/colonyops/taskrelay/internal/core/kv"
	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/colonyops/taskrelay/pkg/tmpl"
	"github.com/rs/zerolog"
)

const (
	offsetNamespace = "inbox"
	offsetKey       = "offset"
	pollBatch       = 50
)

const helpText = `Commands:
/new title | description | due
/start <id or title>
/done <id or title>
/reopen <id or title>
/delete <id or title>
/show <id or title>
/list`

// InboxService reads inbound chat messages after the stored offset,
// dispatches them as commands and replies through the notifier.
type InboxService struct {
	inbox    inbox.Store
	offsets  *kv.TypedKV[int64]
	tasks    *TaskService
	notifier notify.Notifier
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
	kick     chan struct{}
}

// NewInboxService creates an InboxService. timeout bounds each reply.
func NewInboxService(
	inboxStore inbox.Store,
	kvStore kv.KV,
	tasks *TaskService,
	notifier notify.Notifier,
	timeout time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *InboxService {
	return &InboxService{
		inbox:    inboxStore,
		offsets:  kv.Scoped[int64](kvStore, offsetNamespace),
		tasks:    tasks,
		notifier: notifier,
		timeout:  timeout,
		metrics:  m,
		log:      log.With().Str("component", "inbox").Logger(),
		kick:     make(chan struct{}, 1),
	}
}

// Offset returns the id of the last processed message.
func (s *InboxService) Offset(ctx context.Context) (int64, error) {
	return s.offsets.GetOr(ctx, offsetKey, 0)
}

// Kick asks a running poller to poll now instead of waiting for its tick.
func (s *InboxService) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run polls every interval, or earlier when kicked, until ctx is cancelled.
func (s *InboxService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll := func() {
		tickCtx := logging.WithTickID(context.WithoutCancel(ctx))
		if _, err := s.PollOnce(tickCtx); err != nil {
			s.log.Error().Ctx(tickCtx).Err(err).Msg("inbox poll failed")
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			poll()
		case <-s.kick:
			poll()
		}
	}
}

// PollOnce processes every message after the stored offset and returns how
// many were handled. The offset advances after each message, so a crash
// replays at most the message in flight.
func (s *InboxService) PollOnce(ctx context.Context) (int, error) {
	offset, err := s.Offset(ctx)
	if err != nil {
		return 0, fmt.Errorf("load inbox offset: %w", err)
	}

	handled := 0
	for {
		msgs, err := s.inbox.After(ctx, offset, pollBatch)
		if err != nil {
			return handled, fmt.Errorf("read inbox: %w", err)
		}
		if len(msgs) == 0 {
			return handled, nil
		}

		for _, msg := range msgs {
			reply := s.Dispatch(ctx, msg.Text)
			s.reply(ctx, msg, reply)

			offset = msg.ID
			if err := s.offsets.Set(ctx, offsetKey, offset); err != nil {
				return handled, fmt.Errorf("save inbox offset: %w", err)
			}
			handled++
		}
	}
}

// reply failures are logged and not retried: the command already took effect
// and replaying it could create a duplicate task.
func (s *InboxService) reply(ctx context.Context, msg inbox.Message, text string) {
	replyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.notifier.Notify(replyCtx, text)
	s.metrics.Notification("reply", err)
	if err != nil {
		s.log.Error().Ctx(ctx).Err(err).Int64("message_id", msg.ID).Msg("reply failed")
	}
}

// Dispatch runs one chat command and returns the reply text.
func (s *InboxService) Dispatch(ctx context.Context, text string) string {
	cmd, args := parseCommand(text)

	var (
		reply string
		err   error
	)
	switch cmd {
	case "/new", "/add":
		reply, err = s.cmdNew(ctx, args)
	case "/start":
		reply, err = s.cmdStatus(ctx, args, task.StatusPrincipal)
	case "/done":
		reply, err = s.cmdStatus(ctx, args, task.StatusDone)
	case "/reopen":
		reply, err = s.cmdStatus(ctx, args, task.StatusPending)
	case "/delete", "/rm":
		reply, err = s.cmdDelete(ctx, args)
	case "/show":
		reply, err = s.cmdShow(ctx, args)
	case "/list":
		reply, err = s.cmdList(ctx)
	default:
		return helpText
	}

	s.metrics.Command(cmd, err)
	if err != nil {
		return s.errorReply(ctx, cmd, args, err)
	}
	return reply
}

func (s *InboxService) errorReply(ctx context.Context, cmd, args string, err error) string {
	var vErr *task.ValidationError
	switch {
	case errors.Is(err, errUsage):
		return helpText
	case errors.Is(err, task.ErrNotFound):
		return fmt.Sprintf("Task %s not found.", task.ParseRef(args))
	case errors.As(err, &vErr):
		return fmt.Sprintf("Invalid %s: %s.", vErr.Field, vErr.Reason)
	default:
		s.log.Error().Ctx(ctx).Err(err).Str("command", cmd).Msg("command failed")
		return "Something went wrong, please try again."
	}
}

var errUsage = errors.New("usage")

func (s *InboxService) cmdNew(ctx context.Context, args string) (string, error) {
	parts := strings.SplitN(args, "|", 3)
	in := CreateInput{Title: parts[0]}
	if len(parts) > 1 {
		in.Description = parts[1]
	}
	if len(parts) > 2 {
		in.Due = parts[2]
	}
	if strings.TrimSpace(in.Title) == "" {
		return "", errUsage
	}

	t, err := s.tasks.Create(ctx, in)
	if err != nil {
		return "", err
	}
	return "Created " + s.formatTask(t), nil
}

func (s *InboxService) cmdStatus(ctx context.Context, args string, status task.Status) (string, error) {
	if args == "" {
		return "", errUsage
	}
	t, err := s.tasks.SetStatus(ctx, task.ParseRef(args), status)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task [%d] %s is now %s.", t.ID, t.Title, strings.ToLower(status.Label())), nil
}

func (s *InboxService) cmdDelete(ctx context.Context, args string) (string, error) {
	if args == "" {
		return "", errUsage
	}
	id, err := s.tasks.Delete(ctx, task.ParseRef(args))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted task [%d].", id), nil
}

func (s *InboxService) cmdShow(ctx context.Context, args string) (string, error) {
	if args == "" {
		return "", errUsage
	}
	t, err := s.tasks.Get(ctx, task.ParseRef(args))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(s.formatTask(t))
	if t.Description != "" {
		b.WriteString("\n")
		b.WriteString(t.Description)
	}
	if t.Tags != "" {
		b.WriteString("\nTags: ")
		b.WriteString(t.Tags)
	}
	return b.String(), nil
}

func (s *InboxService) cmdList(ctx context.Context) (string, error) {
	tasks, err := s.tasks.List(ctx, task.FilterNotDone)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No active tasks.", nil
	}

	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, "- "+s.formatTask(t))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *InboxService) formatTask(t task.Task) string {
	out := fmt.Sprintf("[%d] %s (%s", t.ID, t.Title, strings.ToLower(t.Status.Label()))
	if t.HasDue() {
		out += ", due " + t.Due.In(s.tasks.Location()).Format(tmpl.ClockLayout)
	}
	return out + ")"
}

// parseCommand splits "/cmd@bot args" into a lowercase command and its
// trimmed arguments. Text that is not a command yields an empty command.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		cmd, args = text[:i], text[i:]
	}
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}
