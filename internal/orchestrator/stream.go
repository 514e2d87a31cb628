package orchestrator

import (
	"context"
	"fmt"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/provider"
)

// StreamEvent is one increment of a streaming turn, forwarded by C6 as a
// "content" SSE event (spec §4.5 "Streaming variant").
type StreamEvent struct {
	Type   string // "token", "thinking", "done", "error"
	Text   string
	Result TurnResult
	Err    error
}

// RunTurnStreaming is the streaming variant of RunTurn: the identical
// state machine, but when the selected provider implements
// provider.StreamingProvider its token deltas are forwarded on the
// returned channel as they arrive; providers without streaming support
// fall back to forwarding the whole text once a provider call returns.
// Token delivery is monotonic and, like RunTurn, interleaved with the same
// content_block:* hook emission (spec §4.5 "Streaming variant").
//
// The channel receives exactly one "done" or "error" event before it is
// closed.
func (r *Runner) RunTurnStreaming(ctx context.Context, prompt string) <-chan StreamEvent {
	out := make(chan StreamEvent, 32)
	go func() {
		defer close(out)
		result, err := r.runTurnStreamingInternal(ctx, prompt, out)
		if err != nil {
			out <- StreamEvent{Type: "error", Err: err}
			return
		}
		out <- StreamEvent{Type: "done", Result: result}
	}()
	return out
}

func (r *Runner) runTurnStreamingInternal(ctx context.Context, prompt string, out chan<- StreamEvent) (TurnResult, error) {
	reduced := r.coord.ProcessHookResult(r.coord.Hooks().Emit(ctx, hooks.PromptSubmit, map[string]any{"prompt": prompt}), hooks.PromptSubmit, r.name)
	if deny, ok := reduced.(hooks.Deny); ok {
		return TurnResult{Status: "denied", Text: fmt.Sprintf("Operation denied: %s", deny.Reason)}, nil
	}

	if err := r.transcript.Append(ctx, provider.Message{Role: provider.RoleUser, Content: prompt}); err != nil {
		return TurnResult{}, apperr.Internal("append user message", err)
	}
	if err := r.maybeCompact(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("compaction failed, continuing with uncompacted transcript")
	}

	selected, providerName, ok := r.coord.SelectProvider()
	if !ok {
		return TurnResult{}, apperr.New(apperr.KindInternal, "no provider mounted", nil)
	}
	streaming, canStream := selected.(provider.StreamingProvider)

	iteration := 1
	for {
		reduced = r.coord.ProcessHookResult(r.coord.Hooks().Emit(ctx, hooks.ProviderRequest, map[string]any{
			"provider": providerName, "iteration": iteration,
		}), hooks.ProviderRequest, r.name)
		if deny, ok := reduced.(hooks.Deny); ok {
			return TurnResult{Status: "denied", Text: fmt.Sprintf("Operation denied: %s", deny.Reason)}, nil
		}

		messages, err := r.buildRequestMessages(ctx, reduced)
		if err != nil {
			return TurnResult{}, err
		}
		req := provider.ChatRequest{Messages: messages, Tools: r.toolSpecs()}

		var resp provider.ChatResponse
		if canStream {
			resp, err = r.streamOneCall(ctx, streaming, req, out)
		} else {
			resp, err = selected.Complete(ctx, req)
			if err == nil && hasText(resp.Content) {
				out <- StreamEvent{Type: "token", Text: concatenateText(resp.Content)}
			}
		}
		if err != nil {
			return TurnResult{}, apperr.New(apperr.KindProvider, "provider call failed", err)
		}

		r.coord.Hooks().Emit(ctx, hooks.ProviderResponse, map[string]any{
			"provider": providerName, "usage": resp.Usage, "tool_calls": len(resp.ToolCalls) > 0,
		})
		r.emitBlocks(ctx, resp)

		switch {
		case len(resp.ToolCalls) > 0:
			if err := r.routeToolCalls(ctx, resp); err != nil {
				return TurnResult{}, err
			}
			iteration++
			if r.overCap(iteration) {
				return r.finishOverCap(ctx, selected, providerName, iteration)
			}
			continue

		case hasText(resp.Content):
			if err := r.transcript.Append(ctx, assistantMessageFrom(resp)); err != nil {
				return TurnResult{}, apperr.Internal("append assistant message", err)
			}
			final := concatenateText(resp.Content)
			r.complete(ctx, providerName, final, iteration, "completed")
			return TurnResult{Status: "completed", Text: final, Iterations: iteration}, nil

		default:
			r.logger.Warn().Str("provider", providerName).Int("iteration", iteration).Msg("provider response had neither text nor tool calls")
			iteration++
			if r.overCap(iteration) {
				return r.finishOverCap(ctx, selected, providerName, iteration)
			}
			continue
		}
	}
}

// streamOneCall drains a StreamingProvider call, forwarding text/thinking
// deltas as StreamEvents and returning the assembled final response.
func (r *Runner) streamOneCall(ctx context.Context, sp provider.StreamingProvider, req provider.ChatRequest, out chan<- StreamEvent) (provider.ChatResponse, error) {
	events, err := sp.StreamComplete(ctx, req)
	if err != nil {
		return provider.ChatResponse{}, err
	}
	var final provider.ChatResponse
	for ev := range events {
		switch ev.Type {
		case "content_delta":
			out <- StreamEvent{Type: "token", Text: ev.TextDelta}
		case "thinking_delta":
			r.coord.Hooks().Emit(ctx, hooks.ThinkingDelta, map[string]any{"delta": ev.ThinkingDelta})
			out <- StreamEvent{Type: "thinking", Text: ev.ThinkingDelta}
		case "error":
			return provider.ChatResponse{}, ev.Err
		case "done":
			if ev.Response != nil {
				final = *ev.Response
			}
		}
	}
	return final, nil
}
