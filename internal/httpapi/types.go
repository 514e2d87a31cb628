package httpapi

import (
	"encoding/json"
	"time"

	"github.com/agentrt/agentd/internal/store"
)

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	ProfileID string          `json:"profile_id"`
	MountPlan json.RawMessage `json:"mount_plan,omitempty"`
}

// SessionResponse mirrors store.SessionMetadata over the wire.
type SessionResponse struct {
	ID           string             `json:"id"`
	ProfileID    string             `json:"profile_id"`
	Status       store.SessionStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	MessageCount int                `json:"message_count"`
}

func sessionResponseFrom(meta store.SessionMetadata) SessionResponse {
	return SessionResponse{
		ID:           meta.ID,
		ProfileID:    meta.ProfileID,
		Status:       meta.Status,
		CreatedAt:    meta.CreatedAt,
		UpdatedAt:    meta.UpdatedAt,
		MessageCount: meta.MessageCount,
	}
}

// AppendMessageRequest is the body of POST /sessions/{id}/messages
// (persist-only, spec §4.9).
type AppendMessageRequest struct {
	Content string `json:"content"`
}

// ExecuteRequest is the body of POST /sessions/{id}/execute (SSE) and
// POST /sessions/{id}/send (202, fire-and-forget).
type ExecuteRequest struct {
	Content string `json:"content"`
}

// SendMessageAccepted is the 202 body for POST /sessions/{id}/send.
type SendMessageAccepted struct {
	Accepted  bool   `json:"accepted"`
	SessionID string `json:"session_id"`
}

// TranscriptResponse is the body of GET /sessions/{id}/transcript.
type TranscriptResponse struct {
	SessionID string                  `json:"session_id"`
	Entries   []store.TranscriptEntry `json:"entries"`
}

// AutomationRequest is the body of POST/PUT automation endpoints.
type AutomationRequest struct {
	Name     string               `json:"name"`
	Message  string               `json:"message"`
	Schedule store.ScheduleConfig `json:"schedule"`
	Enabled  bool                 `json:"enabled"`
}

// AutomationResponse mirrors store.Automation over the wire.
type AutomationResponse struct {
	ID            string               `json:"id"`
	ProjectID     string               `json:"project_id"`
	Name          string               `json:"name"`
	Message       string               `json:"message"`
	Schedule      store.ScheduleConfig `json:"schedule"`
	Enabled       bool                 `json:"enabled"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	LastExecution *time.Time           `json:"last_execution,omitempty"`
	NextExecution *time.Time           `json:"next_execution,omitempty"`
}

func automationResponseFrom(a store.Automation) AutomationResponse {
	return AutomationResponse{
		ID:            a.ID,
		ProjectID:     a.ProjectID,
		Name:          a.Name,
		Message:       a.Message,
		Schedule:      a.Schedule,
		Enabled:       a.Enabled,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		LastExecution: a.LastExecution,
		NextExecution: a.NextExecution,
	}
}

// ExecutionResponse mirrors store.ExecutionRecord over the wire.
type ExecutionResponse struct {
	ID           string                `json:"id"`
	AutomationID string                `json:"automation_id"`
	SessionID    string                `json:"session_id"`
	ExecutedAt   time.Time             `json:"executed_at"`
	Status       store.ExecutionStatus `json:"status"`
	Error        string                `json:"error,omitempty"`
}

func executionResponseFrom(r store.ExecutionRecord) ExecutionResponse {
	return ExecutionResponse{
		ID:           r.ID,
		AutomationID: r.AutomationID,
		SessionID:    r.SessionID,
		ExecutedAt:   r.ExecutedAt,
		Status:       r.Status,
		Error:        r.Error,
	}
}

// ModuleDiscoveryResponse is the body of GET /api/v1/modules (spec §4.9
// "Module and profile discovery").
type ModuleDiscoveryResponse struct {
	Providers        []string `json:"providers"`
	Tools            []string `json:"tools"`
	Hooks            []string `json:"hooks"`
	Orchestrators    []string `json:"orchestrators"`
	ContextManagers  []string `json:"context_managers"`
}

// ProfileDiscoveryResponse is the body of GET /api/v1/profiles.
type ProfileDiscoveryResponse struct {
	ProfileIDs []string `json:"profile_ids"`
}
