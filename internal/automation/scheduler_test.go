package automation

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
	"github.com/agentrt/agentd/internal/session"
	"github.com/agentrt/agentd/internal/store"
)

type fakeProvider struct{ text string }

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	return provider.ChatResponse{Content: []provider.ContentBlock{provider.TextBlock{Text: p.text}}}, nil
}

type testRunnerBuilder struct {
	sessions *store.SessionStore
	text     string
}

func (b *testRunnerBuilder) BuildRunner(ctx context.Context, sessionID string, sink hooks.StreamSink) (*orchestrator.Runner, error) {
	reg := hooks.NewRegistry(zerolog.Nop())
	reg.SetStreamSink(sink)
	coord := coordinator.New(reg)
	coord.MountProvider("fake", &fakeProvider{text: b.text}, 100)
	tr := session.NewTranscript(b.sessions, sessionID)
	return orchestrator.NewRunner("test-orch", coord, tr, nil, orchestrator.DefaultConfig(), zerolog.Nop()), nil
}

type fakeMountPlanProvider struct{}

func (fakeMountPlanProvider) DefaultMountPlan(ctx context.Context, projectID string) (string, any, error) {
	return "default", map[string]string{"project": projectID}, nil
}

func newTestScheduler(t *testing.T, text string) (*Scheduler, *store.AutomationStore) {
	t.Helper()
	tmpDir := t.TempDir()
	layout := store.NewLayout(tmpDir)
	sessions := store.NewSessionStore(layout)
	automations := store.NewAutomationStore(layout)

	mgr := session.NewManager(sessions, &testRunnerBuilder{sessions: sessions, text: text}, 16, zerolog.Nop())
	sched := NewScheduler(automations, mgr, fakeMountPlanProvider{}, zerolog.Nop())
	return sched, automations
}

func waitForExecutions(t *testing.T, store *store.AutomationStore, automationID string, min int, timeout time.Duration) []store.ExecutionRecord {
	t.Helper()
	deadline := time.After(timeout)
	for {
		records, err := store.ListExecutions(automationID)
		require.NoError(t, err)
		if len(records) >= min {
			return records
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d executions of %s, got %d", min, automationID, len(records))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_OnceTrigger_FiresAndSelfDeregisters(t *testing.T) {
	sched, automations := newTestScheduler(t, "done")
	a := store.Automation{
		ID:        "auto-1",
		ProjectID: "proj-1",
		Name:      "test",
		Message:   "hello",
		Schedule:  store.ScheduleConfig{Type: store.ScheduleOnce, Value: time.Now().Add(-time.Minute).Format(time.RFC3339)},
		Enabled:   true,
	}
	require.NoError(t, automations.Save(a))

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	records := waitForExecutions(t, automations, "auto-1", 1, 2*time.Second)
	assert.Equal(t, store.ExecutionSuccess, records[0].Status)
	assert.Contains(t, records[0].SessionID, "auto_")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, sched.Entries(), "once trigger must self-deregister after firing")
}

func TestScheduler_Schedule_IsIdempotentByID(t *testing.T) {
	sched, _ := newTestScheduler(t, "x")
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	a := store.Automation{
		ID:       "auto-2",
		Schedule: store.ScheduleConfig{Type: store.ScheduleInterval, Value: "1h"},
		Enabled:  true,
	}
	require.NoError(t, sched.Schedule(a))
	require.NoError(t, sched.Schedule(a))
	assert.Equal(t, 1, sched.Entries(), "re-scheduling the same automation must replace, not duplicate")
}

func TestScheduler_Unschedule_MissingKeyIsNotError(t *testing.T) {
	sched, _ := newTestScheduler(t, "x")
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	sched.Unschedule("does-not-exist")
	assert.Equal(t, 0, sched.Entries())
}

func TestScheduler_Schedule_RemovesDisabledAutomation(t *testing.T) {
	sched, _ := newTestScheduler(t, "x")
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	a := store.Automation{ID: "auto-3", Schedule: store.ScheduleConfig{Type: store.ScheduleInterval, Value: "1h"}, Enabled: true}
	require.NoError(t, sched.Schedule(a))
	require.Equal(t, 1, sched.Entries())

	a.Enabled = false
	require.NoError(t, sched.Schedule(a))
	assert.Equal(t, 0, sched.Entries())
}

func TestScheduler_Fire_RecordsFailureWhenMountPlanResolutionFails(t *testing.T) {
	tmpDir := t.TempDir()
	layout := store.NewLayout(tmpDir)
	sessions := store.NewSessionStore(layout)
	automations := store.NewAutomationStore(layout)
	mgr := session.NewManager(sessions, &testRunnerBuilder{sessions: sessions, text: "x"}, 16, zerolog.Nop())
	sched := NewScheduler(automations, mgr, failingMountPlanProvider{}, zerolog.Nop())

	a := store.Automation{
		ID:        "auto-4",
		ProjectID: "proj-1",
		Message:   "hello",
		Schedule:  store.ScheduleConfig{Type: store.ScheduleOnce, Value: time.Now().Add(-time.Minute).Format(time.RFC3339)},
		Enabled:   true,
	}
	require.NoError(t, automations.Save(a))

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	records := waitForExecutions(t, automations, "auto-4", 1, 2*time.Second)
	assert.Equal(t, store.ExecutionFailed, records[0].Status)
	assert.NotEmpty(t, records[0].Error)
}

type failingMountPlanProvider struct{}

func (failingMountPlanProvider) DefaultMountPlan(ctx context.Context, projectID string) (string, any, error) {
	return "", nil, assertErr("no default profile configured")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
