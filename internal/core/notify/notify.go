// Package notify delivers reminder and reply text to the outside world.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrDelivery is wrapped by every *Error.
var ErrDelivery = errors.New("notification delivery failed")

// Error describes a failed delivery.
type Error struct {
	Sink   string
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Sink, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Sink, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Sink, e.Err)
	default:
		return e.Sink + ": delivery failed"
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDelivery}
	}
	return []error{ErrDelivery, e.Err}
}

// Notifier sends a single text message. Implementations must honour ctx
// cancellation.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, text string) error

func (f Func) Notify(ctx context.Context, text string) error { return f(ctx, text) }
