package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/orchestrator"
	"github.com/agentrt/agentd/internal/store"
)

// RunnerBuilder constructs an orchestrator.Runner for a session from its
// persisted mount plan. Defined here (rather than importing the
// mountplan/coordinator packages directly) so session stays the thin
// fan-out/persistence layer and the mount-plan loader stays free to depend
// on session for things like an amplified_dir capability without a cycle.
type RunnerBuilder interface {
	BuildRunner(ctx context.Context, sessionID string, sink hooks.StreamSink) (*orchestrator.Runner, error)
}

// entry is the live state a Manager keeps for one mounted session.
type entry struct {
	streams    *StreamManager
	runner     *orchestrator.Runner
	runnerOnce sync.Once
	runnerErr  error
}

// Manager owns every live session's StreamManager and lazily-constructed
// orchestrator Runner, and implements the send_message / execute_sync /
// subscribe / get_transcript operations of spec §4.6.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	store     *store.SessionStore
	builder   RunnerBuilder
	queueSize int
	logger    zerolog.Logger
}

// NewManager constructs a Manager. queueSize is the per-subscriber buffer
// depth (DefaultQueueSize if zero).
func NewManager(sessions *store.SessionStore, builder RunnerBuilder, queueSize int, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*entry),
		store:     sessions,
		builder:   builder,
		queueSize: queueSize,
		logger:    logger,
	}
}

// CreateSession persists a new session with the given profile and mount
// plan and mounts it for execution. The mount plan is immutable once
// written (spec §4.6 Invariant).
func (m *Manager) CreateSession(ctx context.Context, profileID string, mountPlan any) (store.SessionMetadata, error) {
	return m.CreateSessionWithID(ctx, "sess_"+uuid.NewString(), profileID, mountPlan)
}

// CreateSessionWithID is CreateSession with a caller-supplied ID, used by
// the automation scheduler (C7) which needs its own "auto_<uuid>" ID
// format for transient sessions.
func (m *Manager) CreateSessionWithID(ctx context.Context, id, profileID string, mountPlan any) (store.SessionMetadata, error) {
	now := time.Now()
	meta := store.SessionMetadata{
		ID:        id,
		ProfileID: profileID,
		Status:    store.SessionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(meta, mountPlan); err != nil {
		return store.SessionMetadata{}, err
	}
	return meta, nil
}

// GetMetadata returns a session's persisted metadata.
func (m *Manager) GetMetadata(sessionID string) (store.SessionMetadata, error) {
	return m.store.LoadMetadata(sessionID)
}

// ListSessions returns every known session's metadata.
func (m *Manager) ListSessions() ([]store.SessionMetadata, error) {
	ids, err := m.store.ListSessions()
	if err != nil {
		return nil, err
	}
	out := make([]store.SessionMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := m.store.LoadMetadata(id)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

func (m *Manager) entryFor(sessionID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		e = &entry{streams: NewStreamManager(sessionID, m.queueSize)}
		m.sessions[sessionID] = e
	}
	return e
}

func (m *Manager) runnerFor(ctx context.Context, sessionID string, e *entry) (*orchestrator.Runner, error) {
	e.runnerOnce.Do(func() {
		e.runner, e.runnerErr = m.builder.BuildRunner(ctx, sessionID, e.streams)
	})
	return e.runner, e.runnerErr
}

// Subscribe registers a new subscriber on sessionID's stream.
func (m *Manager) Subscribe(sessionID string) *Subscriber {
	return m.entryFor(sessionID).streams.Subscribe()
}

// Unsubscribe removes sub from sessionID's stream.
func (m *Manager) Unsubscribe(sessionID string, sub *Subscriber) {
	m.entryFor(sessionID).streams.Unsubscribe(sub)
}

// GetTranscript reads the persisted transcript for a session.
func (m *Manager) GetTranscript(sessionID string) ([]store.TranscriptEntry, error) {
	if _, err := m.store.LoadMetadata(sessionID); err != nil {
		return nil, err
	}
	return m.store.ReadTranscript(sessionID)
}

// AppendUserMessage persists a user message to the transcript without
// invoking the orchestrator (spec §4.9 "Append user message (persist
// only)"). It does not touch the single-writer execution lock, so it may
// run concurrently with an in-flight turn.
func (m *Manager) AppendUserMessage(sessionID, content string) error {
	meta, err := m.store.LoadMetadata(sessionID)
	if err != nil {
		return err
	}
	if err := m.store.AppendTranscript(sessionID, store.TranscriptEntry{
		Timestamp: time.Now(),
		Role:      "user",
		Content:   content,
	}); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now()
	meta.MessageCount++
	return m.store.SaveMetadata(meta)
}

// SendMessage runs spec §4.6's send_message pipeline in the background and
// returns immediately once the turn has started; events arrive on the
// session's stream. The user message is not yet persisted when it returns:
// the runner appends it to the transcript in the background goroutine,
// after user_message_saved has been emitted. It returns apperr.KindValidation if a turn is
// already executing for this session (single-writer discipline).
func (m *Manager) SendMessage(ctx context.Context, sessionID, content string) error {
	e := m.entryFor(sessionID)

	if _, err := m.store.LoadMetadata(sessionID); err != nil {
		return err
	}

	if !e.streams.TryBeginExecution() {
		return apperr.Validation("session %s is already executing a turn", sessionID)
	}

	runner, err := m.runnerFor(ctx, sessionID, e)
	if err != nil {
		e.streams.EndExecution()
		return apperr.Internal("build orchestrator runner", err)
	}

	e.streams.Emit("user_message_saved", map[string]any{"session_id": sessionID})
	e.streams.Emit("assistant_message_start", map[string]any{"session_id": sessionID})

	go func() {
		defer e.streams.EndExecution()
		m.runTurnAndEmit(context.Background(), sessionID, e, runner, content)
	}()

	return nil
}

// ExecuteSync runs the same pipeline as SendMessage but the caller drains
// the returned channel itself (used by C9 to stream the HTTP response
// body directly rather than through a persistent /stream subscriber).
func (m *Manager) ExecuteSync(ctx context.Context, sessionID, content string) (<-chan Event, error) {
	e := m.entryFor(sessionID)

	if _, err := m.store.LoadMetadata(sessionID); err != nil {
		return nil, err
	}
	if !e.streams.TryBeginExecution() {
		return nil, apperr.Validation("session %s is already executing a turn", sessionID)
	}

	runner, err := m.runnerFor(ctx, sessionID, e)
	if err != nil {
		e.streams.EndExecution()
		return nil, apperr.Internal("build orchestrator runner", err)
	}

	out := make(chan Event, m.effectiveQueueSize())
	sub := e.streams.Subscribe()
	e.streams.Emit("user_message_saved", map[string]any{"session_id": sessionID})
	e.streams.Emit("assistant_message_start", map[string]any{"session_id": sessionID})

	go func() {
		defer close(out)
		defer e.streams.Unsubscribe(sub)
		defer e.streams.EndExecution()

		done := make(chan struct{})
		go func() {
			defer close(done)
			m.runTurnAndEmit(ctx, sessionID, e, runner, content)
		}()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				out <- ev
				if ev.Name == "assistant_message_complete" || ev.Name == "execution_error" {
					<-done
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// RunTurnSync executes one turn to completion and returns its terminal
// result directly, emitting the same lifecycle events send_message does.
// Used by the automation scheduler (C7 spec §4.7 "Firing"), which needs a
// synchronous terminal status to build an ExecutionRecord.
func (m *Manager) RunTurnSync(ctx context.Context, sessionID, content string) (orchestrator.TurnResult, error) {
	e := m.entryFor(sessionID)

	if _, err := m.store.LoadMetadata(sessionID); err != nil {
		return orchestrator.TurnResult{}, err
	}
	if !e.streams.TryBeginExecution() {
		return orchestrator.TurnResult{}, apperr.Validation("session %s is already executing a turn", sessionID)
	}
	defer e.streams.EndExecution()

	runner, err := m.runnerFor(ctx, sessionID, e)
	if err != nil {
		return orchestrator.TurnResult{}, apperr.Internal("build orchestrator runner", err)
	}

	e.streams.Emit("user_message_saved", map[string]any{"session_id": sessionID})
	e.streams.Emit("assistant_message_start", map[string]any{"session_id": sessionID})

	result, err := runner.RunTurn(ctx, content)
	if err != nil {
		e.streams.Emit("execution_error", map[string]any{"session_id": sessionID, "error": err.Error()})
		return result, err
	}

	meta, metaErr := m.store.LoadMetadata(sessionID)
	if metaErr == nil {
		meta.Status = store.SessionIdle
		meta.UpdatedAt = time.Now()
		if entries, rerr := m.store.ReadTranscript(sessionID); rerr == nil {
			meta.MessageCount = len(entries)
		}
		_ = m.store.SaveMetadata(meta)
	}
	e.streams.Emit("assistant_message_complete", map[string]any{
		"session_id": sessionID, "status": result.Status, "text": result.Text,
	})
	return result, nil
}

func (m *Manager) effectiveQueueSize() int {
	if m.queueSize <= 0 {
		return DefaultQueueSize
	}
	return m.queueSize
}

// runTurnAndEmit drives one streaming turn, forwarding token deltas as
// "content" events, then persists the assistant message's completion and
// emits assistant_message_complete (or execution_error).
func (m *Manager) runTurnAndEmit(ctx context.Context, sessionID string, e *entry, runner *orchestrator.Runner, content string) {
	for ev := range runner.RunTurnStreaming(ctx, content) {
		switch ev.Type {
		case "token", "thinking":
			e.streams.Emit("content", map[string]any{"type": "content", "text": ev.Text})
		case "done":
			meta, err := m.store.LoadMetadata(sessionID)
			if err == nil {
				meta.Status = store.SessionIdle
				meta.UpdatedAt = time.Now()
				if entries, err := m.store.ReadTranscript(sessionID); err == nil {
					meta.MessageCount = len(entries)
				}
				_ = m.store.SaveMetadata(meta)
			}
			e.streams.Emit("assistant_message_complete", map[string]any{
				"session_id": sessionID, "status": ev.Result.Status, "text": ev.Result.Text,
			})
		case "error":
			e.streams.Emit("execution_error", map[string]any{"session_id": sessionID, "error": ev.Err.Error()})
		}
	}
}
