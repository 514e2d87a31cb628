package mountplan

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/orchestrator"
	"github.com/agentrt/agentd/internal/session"
	"github.com/agentrt/agentd/internal/store"
)

// RunnerBuilder loads a session's persisted, immutable mount plan and
// builds an orchestrator.Runner from it, implementing session.RunnerBuilder
// so C6 never needs to import this package directly.
type RunnerBuilder struct {
	loader   *Loader
	sessions *store.SessionStore
	cfg      orchestrator.Config
	logger   zerolog.Logger
}

// NewRunnerBuilder constructs a RunnerBuilder bound to loader and sessions.
func NewRunnerBuilder(loader *Loader, sessions *store.SessionStore, cfg orchestrator.Config, logger zerolog.Logger) *RunnerBuilder {
	return &RunnerBuilder{loader: loader, sessions: sessions, cfg: cfg, logger: logger}
}

var _ session.RunnerBuilder = (*RunnerBuilder)(nil)

// BuildRunner implements session.RunnerBuilder.
func (b *RunnerBuilder) BuildRunner(ctx context.Context, sessionID string, sink hooks.StreamSink) (*orchestrator.Runner, error) {
	var plan MountPlan
	if err := b.sessions.LoadMountPlan(sessionID, &plan); err != nil {
		return nil, err
	}

	amplifiedDir, err := sessionWorkingDir(sessionID)
	if err != nil {
		return nil, err
	}

	coord, _, err := b.loader.Build(ctx, plan, amplifiedDir)
	if err != nil {
		return nil, err
	}
	coord.Hooks().SetStreamSink(sink)

	transcript := session.NewTranscript(b.sessions, sessionID)
	cfg := b.cfg
	if cfg.MaxIterations == 0 && cfg.CompactionThreshold == 0 {
		cfg = orchestrator.DefaultConfig()
	}
	return orchestrator.NewRunner(sessionID, coord, transcript, nil, cfg, b.logger), nil
}

// sessionWorkingDir resolves (creating if absent) the directory mounted
// tools receive as "amplified_dir" (spec §4.8). Each session gets an
// isolated subdirectory under the daemon's working-directory root so
// concurrent sessions never share tool-visible state.
func sessionWorkingDir(sessionID string) (string, error) {
	root := os.Getenv("AGENTD_SESSION_WORKDIR_ROOT")
	if root == "" {
		root = os.TempDir() + "/agentd-sessions"
	}
	dir := root + "/" + sessionID
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Internal("create session working directory", err)
	}
	return dir, nil
}
