package watching

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"texwatch/src/features/compiling"
	"texwatch/src/features/manifest"
)

// Collector produces the file snapshot for one build attempt.
type Collector interface {
	Collect() (*manifest.Manifest, error)
}

// Uploader ships a manifest to the compilation service.
type Uploader interface {
	Send(ctx context.Context, buildID string, m *manifest.Manifest) compiling.Outcome
}

// ArtifactWriter persists a successful build's output atomically.
type ArtifactWriter interface {
	Write(artifact []byte) (string, error)
}

// Announcer is notified after every completed build attempt.
type Announcer interface {
	Announce(outcome compiling.Outcome)
}

// State is the orchestrator's pipeline phase, exposed for logging.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateUploading  State = "uploading"
)

// Orchestrator wires scheduler triggers to collect-and-upload attempts. It
// runs as a single goroutine, which is what makes the one-build-in-flight
// invariant hold without locks: a trigger arriving mid-build waits in the
// scheduler's one-slot channel and becomes the follow-up build.
type Orchestrator struct {
	collector Collector
	uploader  Uploader
	writer    ArtifactWriter
	announcer Announcer
	triggers  <-chan struct{}
	state     State
}

// NewOrchestrator creates the build pipeline. announcer may be nil.
func NewOrchestrator(collector Collector, uploader Uploader, writer ArtifactWriter, announcer Announcer, triggers <-chan struct{}) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		uploader:  uploader,
		writer:    writer,
		announcer: announcer,
		triggers:  triggers,
		state:     StateIdle,
	}
}

// State returns the current pipeline phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Run processes triggers until the context is cancelled. compileOnStart runs
// one build before the first trigger. The only error ever returned is the
// structural one: the main file missing from its own manifest.
func (o *Orchestrator) Run(ctx context.Context, compileOnStart bool) error {
	if compileOnStart {
		slog.Info("Compiling on start")
		if err := o.build(ctx); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.triggers:
			if err := o.build(ctx); err != nil {
				return err
			}
		}
	}
}

// build runs one Idle -> Collecting -> Uploading -> Idle cycle.
func (o *Orchestrator) build(ctx context.Context) error {
	buildID := uuid.NewString()
	defer func() { o.state = StateIdle }()

	o.state = StateCollecting
	slog.Info("Collecting files", "build", buildID)
	m, err := o.collector.Collect()
	if err != nil {
		if errors.Is(err, manifest.ErrMainFileExcluded) {
			return err
		}
		slog.Error("Collection failed", "build", buildID, "error", err)
		return nil
	}

	o.state = StateUploading
	slog.Info("Uploading manifest", "build", buildID, "files", len(m.Files))
	// Shutdown must not sever an in-flight upload; it ends at its own timeout.
	outcome := o.uploader.Send(context.WithoutCancel(ctx), buildID, m)

	switch outcome.Kind {
	case compiling.Success:
		path, err := o.writer.Write(outcome.Artifact)
		if err != nil {
			slog.Error("Failed to write artifact", "build", buildID, "error", err)
			break
		}
		slog.Info("Compilation successful", "build", buildID, "artifact", path)
	case compiling.CompileFailure:
		slog.Error("Compilation failed", "build", buildID)
		for _, line := range compiling.ErrorLines(outcome.Log) {
			slog.Error("  " + line)
		}
	case compiling.TransportFailure:
		slog.Error("Cannot reach compilation server", "build", buildID, "error", outcome.Err)
	}

	if o.announcer != nil {
		o.announcer.Announce(outcome)
	}
	return nil
}
