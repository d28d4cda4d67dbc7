package replica

import (
	"errors"
	"fmt"
)

// ErrSync is wrapped by every *SyncError.
var ErrSync = errors.New("sync rejected")

// SyncError reports a snapshot that cannot be applied. Nothing is written
// when one is returned.
type SyncError struct {
	Index  int // record position in the snapshot, -1 for the envelope
	Field  string
	Reason string
}

func (e *SyncError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("sync rejected: %s", e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("sync rejected: task %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("sync rejected: task %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *SyncError) Unwrap() error { return ErrSync }

// RemoteError is a non-2xx answer from the sync server.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned status %d", e.Status)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.Status, e.Message)
}
