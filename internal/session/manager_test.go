package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/agentd/internal/coordinator"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/orchestrator"
	"github.com/agentrt/agentd/internal/provider"
	"github.com/agentrt/agentd/internal/store"
)

type fakeTextProvider struct {
	text  string
	delay time.Duration
}

func (p *fakeTextProvider) Name() string { return "fake" }

func (p *fakeTextProvider) Complete(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return provider.ChatResponse{Content: []provider.ContentBlock{provider.TextBlock{Text: p.text}}}, nil
}

// testRunnerBuilder builds a real orchestrator.Runner per session, backed
// by the same SessionStore the Manager under test uses, so transcript
// persistence is exercised end to end.
type testRunnerBuilder struct {
	sessions *store.SessionStore
	text     string
	delay    time.Duration
}

func (b *testRunnerBuilder) BuildRunner(ctx context.Context, sessionID string, sink hooks.StreamSink) (*orchestrator.Runner, error) {
	reg := hooks.NewRegistry(zerolog.Nop())
	reg.SetStreamSink(sink)
	coord := coordinator.New(reg)
	coord.MountProvider("fake", &fakeTextProvider{text: b.text, delay: b.delay}, 100)
	tr := NewTranscript(b.sessions, sessionID)
	return orchestrator.NewRunner("test-orch", coord, tr, nil, orchestrator.DefaultConfig(), zerolog.Nop()), nil
}

func newTestManager(t *testing.T, text string) (*Manager, string) {
	t.Helper()
	tmpDir := t.TempDir()
	sessions := store.NewSessionStore(store.NewLayout(tmpDir))
	builder := &testRunnerBuilder{sessions: sessions, text: text}
	mgr := NewManager(sessions, builder, 16, zerolog.Nop())

	meta, err := mgr.CreateSession(context.Background(), "default", map[string]string{})
	require.NoError(t, err)
	return mgr, meta.ID
}

func drainUntil(t *testing.T, sub *Subscriber, name string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", name)
		}
	}
}

func TestManager_SendMessage_EmitsLifecycleEvents(t *testing.T) {
	mgr, sessionID := newTestManager(t, "hello world")
	sub := mgr.Subscribe(sessionID)
	defer mgr.Unsubscribe(sessionID, sub)

	require.NoError(t, mgr.SendMessage(context.Background(), sessionID, "hi"))

	drainUntil(t, sub, "user_message_saved", time.Second)
	drainUntil(t, sub, "assistant_message_start", time.Second)
	complete := drainUntil(t, sub, "assistant_message_complete", time.Second)
	assert.Equal(t, "completed", complete.Data["status"])
	assert.Equal(t, "hello world", complete.Data["text"])
}

func TestManager_SendMessage_RejectsConcurrentTurn(t *testing.T) {
	tmpDir := t.TempDir()
	sessions := store.NewSessionStore(store.NewLayout(tmpDir))
	builder := &testRunnerBuilder{sessions: sessions, text: "slow response", delay: 200 * time.Millisecond}
	mgr := NewManager(sessions, builder, 16, zerolog.Nop())
	meta, err := mgr.CreateSession(context.Background(), "default", map[string]string{})
	require.NoError(t, err)

	require.NoError(t, mgr.SendMessage(context.Background(), meta.ID, "first"))

	err = mgr.SendMessage(context.Background(), meta.ID, "second")
	assert.Error(t, err, "a second concurrent send_message must be rejected")
}

func TestManager_SendMessage_UnknownSessionFails(t *testing.T) {
	tmpDir := t.TempDir()
	sessions := store.NewSessionStore(store.NewLayout(tmpDir))
	mgr := NewManager(sessions, &testRunnerBuilder{sessions: sessions, text: "x"}, 16, zerolog.Nop())

	err := mgr.SendMessage(context.Background(), "missing", "hi")
	assert.Error(t, err)
}

func TestManager_GetTranscript_ReflectsPersistedTurn(t *testing.T) {
	mgr, sessionID := newTestManager(t, "answer")
	sub := mgr.Subscribe(sessionID)
	defer mgr.Unsubscribe(sessionID, sub)

	require.NoError(t, mgr.SendMessage(context.Background(), sessionID, "question"))
	drainUntil(t, sub, "assistant_message_complete", time.Second)

	entries, err := mgr.GetTranscript(sessionID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "assistant", entries[1].Role)
}

func TestManager_ExecuteSync_StreamsContentThenCloses(t *testing.T) {
	mgr, sessionID := newTestManager(t, "streamed text")

	events, err := mgr.ExecuteSync(context.Background(), sessionID, "hi")
	require.NoError(t, err)

	var names []string
	for ev := range events {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "user_message_saved")
	assert.Contains(t, names, "content")
	assert.Contains(t, names, "assistant_message_complete")
}

func TestManager_ListSessions(t *testing.T) {
	mgr, sessionID := newTestManager(t, "x")
	list, err := mgr.ListSessions()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sessionID, list[0].ID)
}
