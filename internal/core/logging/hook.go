package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts tick_id and request_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if tickID := GetTickID(ctx); tickID != "" {
		e.Str("tick_id", tickID)
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		e.Str("request_id", requestID)
	}
}
