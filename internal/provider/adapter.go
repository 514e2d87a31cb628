package provider

import (
	"context"
	"fmt"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/hooks"
)

// HookEmitter is the subset of hooks.Registry the adapter needs.
type HookEmitter interface {
	Emit(ctx context.Context, eventName string, data map[string]any) hooks.Result
}

// AdapterConfig tunes the normalisation behaviour (spec §4.4).
type AdapterConfig struct {
	// ContinuationCap bounds automatic incomplete-response resubmission
	// (default 3).
	ContinuationCap int
	// ReasoningBuffer is added to the reasoning budget when extended
	// thinking is enabled; MaxOutputTokens is raised to at least that sum
	// (default 1024).
	ReasoningBuffer int
	// DebugEvents gates llm:request:debug / llm:response:debug emission.
	DebugEvents bool
	// RawEvents gates llm:request:raw / llm:response:raw emission.
	RawEvents bool
}

// DefaultAdapterConfig returns the spec's stated defaults.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{ContinuationCap: 3, ReasoningBuffer: 1024}
}

// Adapter normalises a ChatRequest against a wire Backend: pre-flight tool
// sequence repair, message conversion, extended-thinking budgeting, and
// provider-side continuation on incomplete responses (spec component C4).
type Adapter struct {
	backend Backend
	hooks   HookEmitter
	cfg     AdapterConfig
}

// NewAdapter wraps backend as a Provider.
func NewAdapter(backend Backend, emitter HookEmitter, cfg AdapterConfig) *Adapter {
	if cfg.ContinuationCap <= 0 {
		cfg.ContinuationCap = 3
	}
	if cfg.ReasoningBuffer <= 0 {
		cfg.ReasoningBuffer = 1024
	}
	return &Adapter{backend: backend, hooks: emitter, cfg: cfg}
}

// Name implements Provider.
func (a *Adapter) Name() string { return a.backend.Name() }

// Complete implements Provider. See package doc and spec §4.4 for the full
// contract: repair, conversion, extended thinking, continuation.
func (a *Adapter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	repaired, repairs := repairToolSequences(req.Messages)
	if len(repairs) > 0 {
		entries := make([]map[string]any, len(repairs))
		for i, r := range repairs {
			entries[i] = map[string]any{"tool_call_id": r.ToolCallID, "tool_name": r.ToolName}
		}
		a.hooks.Emit(ctx, hooks.ProviderToolSequenceRepaired, map[string]any{
			"provider": a.Name(), "repair_count": len(repairs), "repairs": entries,
		})
	}

	instructions, converted := convert(repaired)

	maxTokens := req.MaxOutputTokens
	if req.Reasoning != nil && req.Reasoning.Enabled {
		if req.Reasoning.Budget+a.cfg.ReasoningBuffer > maxTokens {
			maxTokens = req.Reasoning.Budget + a.cfg.ReasoningBuffer
		}
	}

	wireReq := WireRequest{
		Instructions:    instructions,
		Messages:        converted,
		Tools:           req.Tools,
		MaxOutputTokens: maxTokens,
		Temperature:     req.Temperature,
		Reasoning:       req.Reasoning,
	}

	return a.completeWithContinuation(ctx, wireReq)
}

// completeWithContinuation drives the wire call and, while the backend
// reports an incomplete response, resubmits up to ContinuationCap times,
// concatenating accumulated output (spec §4.4 "Incomplete-response
// continuation").
func (a *Adapter) completeWithContinuation(ctx context.Context, wireReq WireRequest) (ChatResponse, error) {
	var accumulated []ContentBlock
	var lastUsage Usage
	var lastToolCalls []ToolCallBlock
	var lastMeta map[string]any
	var lastFinish string

	req := wireReq
	for attempt := 0; ; attempt++ {
		a.hooks.Emit(ctx, hooks.LLMRequest, map[string]any{"provider": a.Name(), "message_count": len(req.Messages)})
		if a.cfg.DebugEvents {
			a.hooks.Emit(ctx, hooks.LLMRequestDebug, map[string]any{"provider": a.Name(), "request": truncateWireRequest(req)})
		}
		if a.cfg.RawEvents {
			a.hooks.Emit(ctx, hooks.LLMRequestRaw, map[string]any{"provider": a.Name(), "request": req})
		}

		resp, err := a.backend.Send(ctx, req)
		if err != nil {
			a.hooks.Emit(ctx, hooks.LLMResponse, map[string]any{"provider": a.Name(), "status": "error", "error": err.Error()})
			if len(accumulated) > 0 {
				return ChatResponse{Content: accumulated, Usage: lastUsage, ToolCalls: lastToolCalls, FinishReason: lastFinish, Metadata: lastMeta}, nil
			}
			return ChatResponse{}, apperr.New(apperr.KindProvider, fmt.Sprintf("provider %s call failed", a.Name()), err)
		}

		a.hooks.Emit(ctx, hooks.LLMResponse, map[string]any{
			"provider": a.Name(), "status": resp.Status, "usage": resp.Usage,
			"tool_calls": len(resp.ToolCalls) > 0,
		})
		if a.cfg.DebugEvents {
			a.hooks.Emit(ctx, hooks.LLMResponseDebug, map[string]any{"provider": a.Name(), "response": truncateWireResponse(resp)})
		}
		if a.cfg.RawEvents {
			a.hooks.Emit(ctx, hooks.LLMResponseRaw, map[string]any{"provider": a.Name(), "response": resp})
		}

		accumulated = append(accumulated, resp.Content...)
		lastUsage = resp.Usage
		lastToolCalls = resp.ToolCalls
		lastMeta = resp.Metadata
		lastFinish = resp.FinishReason

		if resp.Status != "incomplete" {
			return ChatResponse{Content: accumulated, ToolCalls: lastToolCalls, Usage: lastUsage, FinishReason: lastFinish, Metadata: lastMeta}, nil
		}
		if attempt >= a.cfg.ContinuationCap {
			return ChatResponse{Content: accumulated, ToolCalls: lastToolCalls, Usage: lastUsage, FinishReason: lastFinish, Metadata: lastMeta}, nil
		}

		a.hooks.Emit(ctx, hooks.ProviderIncompleteContinuation, map[string]any{
			"response_id": resp.ResponseID, "reason": resp.IncompleteReason,
			"continuation_number": attempt + 1, "max_attempts": a.cfg.ContinuationCap,
		})

		if a.backend.SupportsPreviousResponseID() && resp.ResponseID != "" {
			req.PreviousResponseID = resp.ResponseID
			req.Messages = nil
			continue
		}
		req.Messages = append(req.Messages, accumulatedAsAssistantMessage(accumulated))
	}
}

func accumulatedAsAssistantMessage(blocks []ContentBlock) WireMessage {
	var text string
	for _, b := range blocks {
		switch v := b.(type) {
		case TextBlock:
			text += v.Text
		case ThinkingBlock:
			text += v.Thinking
		}
	}
	return WireMessage{Role: RoleAssistant, Content: text}
}

func truncateWireRequest(req WireRequest) map[string]any {
	const limit = 500
	instr := req.Instructions
	if len(instr) > limit {
		instr = instr[:limit] + "...(truncated)"
	}
	return map[string]any{"instructions": instr, "message_count": len(req.Messages), "max_output_tokens": req.MaxOutputTokens}
}

func truncateWireResponse(resp WireResponse) map[string]any {
	return map[string]any{"response_id": resp.ResponseID, "status": resp.Status, "block_count": len(resp.Content)}
}
