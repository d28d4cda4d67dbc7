package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recorder wraps a Notifier and stores every delivery attempt. A failure to
// record is logged and never masks the delivery result.
type Recorder struct {
	next  Notifier
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRecorder wraps next.
func NewRecorder(next Notifier, store Store, log zerolog.Logger) *Recorder {
	return &Recorder{next: next, store: store, log: log, now: time.Now}
}

func (r *Recorder) Notify(ctx context.Context, text string) error {
	deliveryErr := r.next.Notify(ctx, text)

	n := Notification{
		Level:     LevelInfo,
		Message:   text,
		CreatedAt: r.now(),
	}
	if deliveryErr != nil {
		n.Level = LevelError
		n.Error = deliveryErr.Error()
	}

	// Recording must outlive a deadline that expired during delivery.
	saveCtx := context.WithoutCancel(ctx)
	if _, err := r.store.Save(saveCtx, n); err != nil {
		r.log.Warn().Err(err).Msg("failed to record notification")
	}

	return deliveryErr
}
