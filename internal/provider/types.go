// Package provider defines the normalised chat request/response shape the
// orchestrator speaks (spec component C4) and the Provider interface that
// concrete backends implement.
package provider

import "context"

// Role constants (spec §3 Message.role).
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FinishReason constants.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

// ContentBlock is the tagged union carried in Message.Content and
// ChatResponse.Content (spec §3 "ContentBlock. Tagged variants").
type ContentBlock interface {
	contentBlock()
}

// TextBlock is plain assistant/user text.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) contentBlock() {}

// ThinkingVisibility controls whether extended-thinking content is
// surfaced to clients.
type ThinkingVisibility string

const (
	ThinkingInternal ThinkingVisibility = "internal"
	ThinkingPublic   ThinkingVisibility = "public"
)

// ThinkingBlock carries extended-thinking / reasoning trace content.
type ThinkingBlock struct {
	Thinking   string             `json:"thinking"`
	Signature  string             `json:"signature,omitempty"`
	Visibility ThinkingVisibility `json:"visibility,omitempty"`
	Encrypted  bool               `json:"encrypted,omitempty"`
	ReasoningID string            `json:"reasoning_id,omitempty"`
}

func (ThinkingBlock) contentBlock() {}

// ToolCallBlock is an assistant-emitted tool invocation request.
type ToolCallBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolCallBlock) contentBlock() {}

// ReasoningBlock carries a provider-native reasoning summary distinct from
// ThinkingBlock (used by providers that separate "summary" from raw trace
// content).
type ReasoningBlock struct {
	Summary    string             `json:"summary"`
	Content    string             `json:"content,omitempty"`
	Visibility ThinkingVisibility `json:"visibility,omitempty"`
}

func (ReasoningBlock) contentBlock() {}

// Message is one turn in a ChatRequest (spec §3 "Message").
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Blocks     []ContentBlock `json:"-"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HasBlocks reports whether the message carries structured content blocks
// rather than (or in addition to) plain text.
func (m Message) HasBlocks() bool { return len(m.Blocks) > 0 }

// ToolSpec describes a tool the provider may call (spec §3 "ToolSpec").
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ReasoningConfig requests extended thinking from providers that support
// it. Budget is an approximate token allowance; providers that cannot
// honour extended thinking natively ignore this.
type ReasoningConfig struct {
	Enabled bool
	Budget  int
}

// ChatRequest is the normalised request the orchestrator hands to C4
// (spec §3 "ChatRequest").
type ChatRequest struct {
	Messages        []Message
	Tools           []ToolSpec
	MaxOutputTokens int
	Temperature     float64
	Reasoning       *ReasoningConfig
}

// Usage reports token accounting for one provider call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ChatResponse is the normalised response C4 returns to the orchestrator
// (spec §3 "ChatResponse").
type ChatResponse struct {
	Content      []ContentBlock
	ToolCalls    []ToolCallBlock
	Usage        Usage
	FinishReason string
	Metadata     map[string]any
}

// Provider is the interface a concrete LLM backend implements. Complete
// issues one non-streaming call; StreamComplete, where supported, emits
// incremental ContentBlock deltas via the returned channel and closes it
// when the response is complete or ctx is cancelled.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// StreamEvent is one increment from a streaming provider call.
type StreamEvent struct {
	Type         string // "content_delta", "thinking_delta", "tool_call", "done", "error"
	TextDelta    string
	ThinkingDelta string
	ToolCall     *ToolCallBlock
	Response     *ChatResponse
	Err          error
}

// StreamingProvider is implemented by providers that can emit incremental
// output. Not all providers support it; the orchestrator falls back to
// Complete when a mounted provider doesn't implement this interface.
type StreamingProvider interface {
	Provider
	StreamComplete(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
}
