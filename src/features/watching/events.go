package watching

import (
	"context"
	"time"
)

// Source defines the interface for the OS-level watch layer. Implementations
// push ChangeEvents onto the channel given at construction; they never process
// anything on the notifier's own thread.
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// EventKind represents the type of file system event
type EventKind string

const (
	Created  EventKind = "created"
	Modified EventKind = "modified"
	Deleted  EventKind = "deleted"
	Moved    EventKind = "moved"
)

// ChangeEvent represents a single raw file system event. Ephemeral: produced
// by the watch layer, consumed immediately by the scheduler.
type ChangeEvent struct {
	Path      string
	Kind      EventKind
	Timestamp time.Time
}
