package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Log writes messages to a logger. Used when no webhook is configured.
type Log struct {
	log zerolog.Logger
}

// NewLog returns a Notifier that logs every message at info level.
func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Sink: "log", Err: err}
	}
	l.log.Info().Str("text", text).Msg("notification")
	return nil
}
