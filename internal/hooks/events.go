package hooks

// Canonical event names (spec §4.1 "Event universe"). The set is fixed and
// known to the registry; additional events may still be emitted by name —
// Emit does not require prior registration of the event name itself, only
// of handlers that subscribe to it — to support module-declared
// "observability.events" capabilities (spec §4.1, out of scope to implement
// the discovery mechanism here; the registry itself places no restriction).
const (
	SessionStart  = "session:start"
	SessionEnd    = "session:end"
	SessionResume = "session:resume"

	PromptSubmit   = "prompt:submit"
	PromptComplete = "prompt:complete"

	PlanStart = "plan:start"
	PlanEnd   = "plan:end"

	ProviderRequest                = "provider:request"
	ProviderResponse                = "provider:response"
	ProviderError                   = "provider:error"
	ProviderToolSequenceRepaired    = "provider:tool_sequence_repaired"
	ProviderIncompleteContinuation  = "provider:incomplete_continuation"

	LLMRequest       = "llm:request"
	LLMResponse      = "llm:response"
	LLMRequestDebug  = "llm:request:debug"
	LLMResponseDebug = "llm:response:debug"
	LLMRequestRaw    = "llm:request:raw"
	LLMResponseRaw   = "llm:response:raw"

	ToolPre       = "tool:pre"
	ToolPost      = "tool:post"
	ToolError     = "tool:error"
	ToolSelecting = "tool:selecting"
	ToolSelected  = "tool:selected"

	ThinkingDelta = "thinking:delta"
	ThinkingFinal = "thinking:final"

	ContextPreCompact  = "context:pre_compact"
	ContextPostCompact = "context:post_compact"
	ContextInclude     = "context:include"

	ArtifactWrite = "artifact:write"
	ArtifactRead  = "artifact:read"

	PolicyViolation = "policy:violation"

	ApprovalRequired = "approval:required"
	ApprovalGranted  = "approval:granted"
	ApprovalDenied   = "approval:denied"

	ContentBlockStart = "content_block:start"
	ContentBlockDelta = "content_block:delta"
	ContentBlockEnd   = "content_block:end"

	OrchestratorComplete = "orchestrator:complete"
)

// StreamEventSet is the default set of event names the registry's streaming
// overlay (spec §4.1 "Streaming overlay") republishes as hook:<name> /
// hook:<name>:result SSE records. Callers may override via
// Registry.SetStreamEvents.
func StreamEventSet() map[string]struct{} {
	names := []string{
		ToolPre, ToolPost, ToolError,
		ProviderRequest, ProviderResponse,
		ApprovalRequired, ApprovalGranted, ApprovalDenied,
		ContentBlockStart, ContentBlockEnd,
		PromptSubmit, PromptComplete,
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
