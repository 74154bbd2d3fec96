package watching

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler coalesces bursts of raw change events into single build triggers.
// Every incoming event re-arms a trailing-edge timer; a trigger fires only
// once the window elapses with no further events. The trigger channel holds a
// single slot: a trigger that settles while a build is still running parks
// there and is consumed exactly once when the orchestrator returns to idle,
// so bursty typing never causes a build storm and no edit is dropped.
type Scheduler struct {
	window   time.Duration
	events   <-chan ChangeEvent
	triggers chan struct{}
}

// NewScheduler creates a scheduler reading from the given event stream.
func NewScheduler(window time.Duration, events <-chan ChangeEvent) *Scheduler {
	return &Scheduler{
		window:   window,
		events:   events,
		triggers: make(chan struct{}, 1),
	}
}

// Triggers returns the channel on which settled-window triggers are emitted.
func (s *Scheduler) Triggers() <-chan struct{} {
	return s.triggers
}

// Run consumes events until the context is cancelled. It owns the only timer;
// cancellation stops it before returning, so no trigger fires after shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.window)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				timer.Stop()
				return
			}
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.window)
			armed = true
			slog.Debug("Change detected", "path", ev.Path, "kind", ev.Kind)

		case <-timer.C:
			armed = false
			s.emit()

		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// emit delivers a trigger without blocking. A full slot means a trigger is
// already pending for the in-flight build; the two settle into one follow-up.
func (s *Scheduler) emit() {
	select {
	case s.triggers <- struct{}{}:
		slog.Debug("Window settled, build triggered")
	default:
		slog.Debug("Trigger already pending, coalescing")
	}
}
