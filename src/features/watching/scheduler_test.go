package watching

import (
	"context"
	"testing"
	"time"
)

func event(path string) ChangeEvent {
	return ChangeEvent{Path: path, Kind: Modified, Timestamp: time.Now()}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	const window = 80 * time.Millisecond

	events := make(chan ChangeEvent, 16)
	s := NewScheduler(window, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// N events spaced at half the window must yield exactly one trigger,
	// firing only after the window elapses past the last event.
	var last time.Time
	for i := 0; i < 4; i++ {
		events <- event("main.tex")
		last = time.Now()
		time.Sleep(window / 2)
	}

	select {
	case <-s.Triggers():
		if elapsed := time.Since(last); elapsed < window {
			t.Errorf("trigger fired %v after last event, want >= %v", elapsed, window)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a trigger, got none")
	}

	select {
	case <-s.Triggers():
		t.Fatal("burst produced more than one trigger")
	case <-time.After(3 * window):
	}
}

func TestEachSettledWindowTriggersOnce(t *testing.T) {
	const window = 40 * time.Millisecond

	events := make(chan ChangeEvent, 16)
	s := NewScheduler(window, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 2; i++ {
		events <- event("main.tex")
		select {
		case <-s.Triggers():
		case <-time.After(time.Second):
			t.Fatalf("expected trigger for settled window %d", i)
		}
	}
}

func TestPendingTriggerCoalescesDuringBuild(t *testing.T) {
	const window = 30 * time.Millisecond

	events := make(chan ChangeEvent, 16)
	s := NewScheduler(window, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Nobody consumes triggers, simulating an in-flight build. Three settled
	// windows must collapse into the single pending slot.
	for i := 0; i < 3; i++ {
		events <- event("main.tex")
		time.Sleep(3 * window)
	}

	select {
	case <-s.Triggers():
	case <-time.After(time.Second):
		t.Fatal("expected one pending trigger")
	}
	select {
	case <-s.Triggers():
		t.Fatal("pending triggers were not coalesced")
	case <-time.After(2 * window):
	}
}

func TestShutdownCancelsPendingTimer(t *testing.T) {
	const window = 100 * time.Millisecond

	events := make(chan ChangeEvent, 16)
	s := NewScheduler(window, events)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	events <- event("main.tex")
	time.Sleep(window / 4)
	cancel()

	select {
	case <-s.Triggers():
		t.Fatal("trigger fired after shutdown")
	case <-time.After(3 * window):
	}
}
