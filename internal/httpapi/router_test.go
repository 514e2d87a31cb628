package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/agentd/internal/automation"
	"github.com/agentrt/agentd/internal/coordinator"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/mountplan"
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

type fakeRunnerBuilder struct {
	sessions *store.SessionStore
	text     string
}

func (b *fakeRunnerBuilder) BuildRunner(ctx context.Context, sessionID string, sink hooks.StreamSink) (*orchestrator.Runner, error) {
	reg := hooks.NewRegistry(zerolog.Nop())
	reg.SetStreamSink(sink)
	coord := coordinator.New(reg)
	coord.MountProvider("fake", &fakeProvider{text: b.text}, 100)
	tr := session.NewTranscript(b.sessions, sessionID)
	return orchestrator.NewRunner("test-orch", coord, tr, nil, orchestrator.DefaultConfig(), zerolog.Nop()), nil
}

func testMountPlan() mountplan.MountPlan {
	return mountplan.MountPlan{
		Orchestrator: mountplan.MountPoint{Kind: mountplan.MountEmbedded, Name: "default"},
		Providers: []mountplan.MountPoint{
			{Kind: mountplan.MountEmbedded, Name: "fake"},
		},
	}
}

type testHarness struct {
	router    *mux.Router
	rt        *Router
	sessions  *session.Manager
	scheduler *automation.Scheduler
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	tmp := t.TempDir()
	layout := store.NewLayout(tmp)

	sessionStore := store.NewSessionStore(layout)
	mgr := session.NewManager(sessionStore, &fakeRunnerBuilder{sessions: sessionStore, text: "hello"}, 16, zerolog.Nop())

	automations := store.NewAutomationStore(layout)
	profiles := mountplan.NewDefaultMountPlanProvider(testMountPlan(), map[string]mountplan.MountPlan{
		"proj-a": testMountPlan(),
	})
	scheduler := automation.NewScheduler(automations, mgr, profiles, zerolog.Nop())

	registry := mountplan.NewRegistry()
	registry.RegisterProvider("fake", nil)
	registry.RegisterOrchestrator("default", nil)

	rt := NewRouter(mgr, automations, scheduler, registry, profiles, zerolog.Nop())
	muxRouter := mux.NewRouter()
	rt.RegisterRoutes(muxRouter)

	return &testHarness{router: muxRouter, rt: rt, sessions: mgr, scheduler: scheduler}
}

func (h *testHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func TestCreateAndGetSession(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{ProfileID: "default"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var created SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "default", created.ProfileID)

	rr = h.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateSession_MissingProfileID(t *testing.T) {
	h := newTestHarness(t)
	rr := h.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAppendMessage_PersistsWithoutExecuting(t *testing.T) {
	h := newTestHarness(t)
	rr := h.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{ProfileID: "default"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = h.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/messages", AppendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID+"/transcript", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var transcript TranscriptResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &transcript))
	require.Len(t, transcript.Entries, 1)
	assert.Equal(t, "user", transcript.Entries[0].Role)
}

func TestSendMessage_ReturnsAccepted(t *testing.T) {
	h := newTestHarness(t)
	rr := h.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{ProfileID: "default"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = h.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/send", ExecuteRequest{Content: "hi"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestAutomationCRUD(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, http.MethodPost, "/api/v1/projects/proj-a/automations", AutomationRequest{
		Name:     "nightly",
		Message:  "run the nightly job",
		Schedule: store.ScheduleConfig{Type: store.ScheduleInterval, Value: "1h"},
		Enabled:  false,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created AutomationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "proj-a", created.ProjectID)

	rr = h.do(t, http.MethodGet, "/api/v1/projects/proj-a/automations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []AutomationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rr = h.do(t, http.MethodPost, "/api/v1/automations/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var toggled AutomationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &toggled))
	assert.True(t, toggled.Enabled)

	rr = h.do(t, http.MethodGet, "/api/v1/automations/"+created.ID+"/executions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var execs []ExecutionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &execs))
	assert.Empty(t, execs)

	rr = h.do(t, http.MethodDelete, "/api/v1/automations/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/automations/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateAutomation_InvalidSchedule(t *testing.T) {
	h := newTestHarness(t)
	rr := h.do(t, http.MethodPost, "/api/v1/projects/proj-a/automations", AutomationRequest{
		Name:     "bad",
		Message:  "x",
		Schedule: store.ScheduleConfig{Type: "bogus", Value: "x"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestModuleAndProfileDiscovery(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, http.MethodGet, "/api/v1/modules", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var modules ModuleDiscoveryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &modules))
	assert.Contains(t, modules.Providers, "fake")
	assert.Contains(t, modules.Orchestrators, "default")

	rr = h.do(t, http.MethodGet, "/api/v1/profiles", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var profiles ProfileDiscoveryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profiles))
	assert.Contains(t, profiles.ProfileIDs, "default")
	assert.Contains(t, profiles.ProfileIDs, "proj-a")
}
