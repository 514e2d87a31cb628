package provider

import "context"

// WireMessage is one message in the converted, provider-native wire
// format produced by Adapter's message conversion step (spec §4.4
// "Message conversion").
type WireMessage struct {
	Role      string
	Content   string
	ToolCalls []ToolCallBlock
}

// WireRequest is what Adapter hands to a Backend after repair and
// conversion.
type WireRequest struct {
	Instructions        string
	Messages            []WireMessage
	Tools               []ToolSpec
	MaxOutputTokens     int
	Temperature         float64
	Reasoning           *ReasoningConfig
	PreviousResponseID  string
}

// WireResponse is the raw reply from a Backend, before Adapter folds it
// into a ChatResponse.
type WireResponse struct {
	ResponseID       string
	Status           string // "complete" or "incomplete"
	IncompleteReason string
	Content          []ContentBlock
	ToolCalls        []ToolCallBlock
	Usage            Usage
	FinishReason     string
	Metadata         map[string]any
	Reasoning        *ThinkingBlock
}

// Backend is the concrete wire-level provider a Adapter wraps. Concrete
// provider wire protocols are out of scope beyond this structural shape;
// backends implement whatever HTTP/SDK call is needed underneath.
type Backend interface {
	Name() string
	// SupportsPreviousResponseID reports whether the backend can resume a
	// prior response server-side (spec §4.4 incomplete-response
	// continuation, second branch) instead of re-submitting accumulated
	// text.
	SupportsPreviousResponseID() bool
	Send(ctx context.Context, req WireRequest) (WireResponse, error)
}
