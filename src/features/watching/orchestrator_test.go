package watching

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"texwatch/src/features/compiling"
	"texwatch/src/features/manifest"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		MainRel: "main.tex",
		Files: []manifest.File{
			{RelPath: "main.tex", Data: []byte(`\documentclass{article}`)},
		},
	}
}

type fakeCollector struct {
	err   error
	calls atomic.Int32
}

func (c *fakeCollector) Collect() (*manifest.Manifest, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return testManifest(), nil
}

type fakeUploader struct {
	outcome compiling.Outcome
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (u *fakeUploader) Send(ctx context.Context, buildID string, m *manifest.Manifest) compiling.Outcome {
	u.calls.Add(1)
	if u.started != nil {
		u.started <- struct{}{}
	}
	if u.release != nil {
		<-u.release
	}
	return u.outcome
}

type fakeWriter struct {
	got   []byte
	calls atomic.Int32
}

func (w *fakeWriter) Write(artifact []byte) (string, error) {
	w.calls.Add(1)
	w.got = artifact
	return "main.pdf", nil
}

func TestSuccessWritesArtifact(t *testing.T) {
	collector := &fakeCollector{}
	uploader := &fakeUploader{outcome: compiling.Outcome{Kind: compiling.Success, Artifact: []byte("%PDF-1.5")}}
	writer := &fakeWriter{}
	triggers := make(chan struct{}, 1)
	o := NewOrchestrator(collector, uploader, writer, nil, triggers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, false) }()

	triggers <- struct{}{}
	waitFor(t, func() bool { return writer.calls.Load() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean return, got %v", err)
	}
	if string(writer.got) != "%PDF-1.5" {
		t.Errorf("artifact bytes not passed through, got %q", writer.got)
	}
}

func TestTransportFailureReturnsToIdle(t *testing.T) {
	collector := &fakeCollector{}
	uploader := &fakeUploader{outcome: compiling.Outcome{Kind: compiling.TransportFailure, Err: errors.New("connection refused")}}
	writer := &fakeWriter{}
	triggers := make(chan struct{}, 1)
	o := NewOrchestrator(collector, uploader, writer, nil, triggers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, false) }()

	// A failed attempt must leave the pipeline watching: the next trigger
	// still produces a fresh attempt.
	triggers <- struct{}{}
	waitFor(t, func() bool { return uploader.calls.Load() == 1 })
	triggers <- struct{}{}
	waitFor(t, func() bool { return uploader.calls.Load() == 2 })

	if writer.calls.Load() != 0 {
		t.Error("no artifact may be written on transport failure")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("transport failure must not terminate the pipeline: %v", err)
	}
}

func TestMainFileExcludedIsFatal(t *testing.T) {
	collector := &fakeCollector{err: fmt.Errorf("wrapped: %w", manifest.ErrMainFileExcluded)}
	uploader := &fakeUploader{}
	triggers := make(chan struct{}, 1)
	o := NewOrchestrator(collector, uploader, &fakeWriter{}, nil, triggers)

	triggers <- struct{}{}
	err := o.Run(context.Background(), false)
	if !errors.Is(err, manifest.ErrMainFileExcluded) {
		t.Fatalf("expected ErrMainFileExcluded, got %v", err)
	}
	if uploader.calls.Load() != 0 {
		t.Error("nothing may be uploaded when collection fails")
	}
}

func TestOtherCollectorErrorsAreRecoverable(t *testing.T) {
	collector := &fakeCollector{err: errors.New("transient io problem")}
	uploader := &fakeUploader{}
	triggers := make(chan struct{}, 1)
	o := NewOrchestrator(collector, uploader, &fakeWriter{}, nil, triggers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, false) }()

	triggers <- struct{}{}
	waitFor(t, func() bool { return collector.calls.Load() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("transient collector error must not be fatal: %v", err)
	}
}

func TestEventDuringUploadYieldsOneFollowUp(t *testing.T) {
	const window = 30 * time.Millisecond

	events := make(chan ChangeEvent, 16)
	s := NewScheduler(window, events)
	collector := &fakeCollector{}
	uploader := &fakeUploader{
		outcome: compiling.Outcome{Kind: compiling.Success, Artifact: []byte("pdf")},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	writer := &fakeWriter{}
	o := NewOrchestrator(collector, uploader, writer, nil, s.Triggers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, false) }()

	// First edit starts a build; hold its upload open.
	events <- event("main.tex")
	<-uploader.started

	// Edits landing mid-upload must fold into exactly one follow-up build.
	events <- event("main.tex")
	events <- event("chapter1.tex")
	time.Sleep(3 * window)
	uploader.release <- struct{}{}

	<-uploader.started
	uploader.release <- struct{}{}
	waitFor(t, func() bool { return uploader.calls.Load() == 2 })

	select {
	case <-uploader.started:
		t.Fatal("more than one follow-up build was started")
	case <-time.After(5 * window):
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean return, got %v", err)
	}
}

func TestCompileOnStart(t *testing.T) {
	collector := &fakeCollector{}
	uploader := &fakeUploader{outcome: compiling.Outcome{Kind: compiling.CompileFailure, Log: "! Undefined control sequence"}}
	triggers := make(chan struct{})
	o := NewOrchestrator(collector, uploader, &fakeWriter{}, nil, triggers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, true) }()

	waitFor(t, func() bool { return uploader.calls.Load() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("compile failure on start must not be fatal: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
