package store

import "time"

// SessionStatus enumerates spec §3 "Session State.status".
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionRunning   SessionStatus = "running"
	SessionIdle      SessionStatus = "idle"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// SessionMetadata is the persisted record at sessions/<id>/metadata.json
// (spec §3 "Session State").
type SessionMetadata struct {
	ID            string        `json:"id"`
	ProfileID     string        `json:"profile_id"`
	Status        SessionStatus `json:"status"`
	MountPlanPath string        `json:"mount_plan_path"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	MessageCount  int           `json:"message_count"`
}

// TranscriptEntry is one line of sessions/<id>/transcript.jsonl (spec §3
// "Transcript").
type TranscriptEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Role       string    `json:"role"`
	Content    any       `json:"content"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	TokenCount int       `json:"token_count,omitempty"`
}

// ScheduleType enumerates spec §3 "ScheduleConfig.type".
type ScheduleType string

const (
	ScheduleCron     ScheduleType = "cron"
	ScheduleInterval ScheduleType = "interval"
	ScheduleOnce     ScheduleType = "once"
)

// ScheduleConfig is the tagged trigger configuration for an Automation
// (spec §3 "ScheduleConfig").
type ScheduleConfig struct {
	Type  ScheduleType `json:"type"`
	Value string       `json:"value"`
}

// Automation is the persisted record at automations/<id>.json (spec §3
// "Automation").
type Automation struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	Name           string         `json:"name"`
	Message        string         `json:"message"`
	Schedule       ScheduleConfig `json:"schedule"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastExecution  *time.Time     `json:"last_execution,omitempty"`
	NextExecution  *time.Time     `json:"next_execution,omitempty"`
}

// AutomationIndex is the persisted record at automations/index.json: the
// set of automation IDs known to exist, grouped by project, so listing
// doesn't require a directory scan.
type AutomationIndex struct {
	ProjectAutomations map[string][]string `json:"project_automations"`
}

// ExecutionStatus enumerates spec §3 "ExecutionRecord.status".
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// ExecutionRecord is one line of automations/executions/<id>.jsonl (spec
// §3 "ExecutionRecord").
type ExecutionRecord struct {
	ID          string          `json:"id"`
	AutomationID string         `json:"automation_id"`
	SessionID   string          `json:"session_id"`
	ExecutedAt  time.Time       `json:"executed_at"`
	Status      ExecutionStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

// ApprovalAuditEntry is one line of audit/approvals.jsonl.
type ApprovalAuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	ToolName  string    `json:"tool_name,omitempty"`
	Decision  string    `json:"decision"` // "granted", "denied"
	Reason    string    `json:"reason,omitempty"`
}
