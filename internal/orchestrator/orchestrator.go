// Package orchestrator implements the agentic loop (spec component C5):
// the state machine that drives one user turn through BUILD_REQUEST,
// PROVIDER_CALL, tool execution, and termination on text or iteration cap.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/coordinator"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/provider"
	"github.com/agentrt/agentd/internal/tools"
)

// Transcript is the ordered message log a Runner reads and appends to. It
// is implemented by the session package's persistence-backed transcript;
// defined here (rather than imported) to keep C5 from depending on C6.
type Transcript interface {
	Append(ctx context.Context, msg provider.Message) error
	Messages(ctx context.Context) ([]provider.Message, error)
	Len(ctx context.Context) int
	// ReplaceAll overwrites the transcript's in-memory/working copy after
	// compaction. Implementations that persist every message append-only
	// still honour this by writing a compaction marker; see C10.
	ReplaceAll(ctx context.Context, messages []provider.Message) error
}

// Compactor summarises an over-long transcript (spec §4.5 "Compaction
// gate"). Mounted as the context_manager slot.
type Compactor interface {
	Compact(ctx context.Context, messages []provider.Message) ([]provider.Message, error)
}

// Config tunes Runner behaviour (spec §6 settings: max_iterations,
// compaction_threshold).
type Config struct {
	MaxIterations       int // 0 means unlimited
	CompactionThreshold int
}

// DefaultConfig mirrors the documented settings defaults.
func DefaultConfig() Config {
	return Config{MaxIterations: 25, CompactionThreshold: 50}
}

// Runner drives one turn of the agentic loop over a Coordinator's mounted
// providers and tools.
type Runner struct {
	name       string
	coord      *coordinator.Coordinator
	transcript Transcript
	compactor  Compactor
	executor   *tools.Executor
	cfg        Config
	logger     zerolog.Logger
}

// NewRunner constructs a Runner bound to coord and transcript. compactor
// may be nil (no context manager mounted).
func NewRunner(name string, coord *coordinator.Coordinator, transcript Transcript, compactor Compactor, cfg Config, logger zerolog.Logger) *Runner {
	return &Runner{
		name:       name,
		coord:      coord,
		transcript: transcript,
		compactor:  compactor,
		executor:   tools.NewExecutor(coord.Tools(), coord.Hooks()),
		cfg:        cfg,
		logger:     logger,
	}
}

// Name implements coordinator.Orchestrator so a Runner can be mounted into
// the orchestrator slot.
func (r *Runner) Name() string { return r.name }

// TurnResult is what RunTurn returns once the turn reaches a terminal
// state.
type TurnResult struct {
	Status     string // "completed", "denied", "failed"
	Text       string
	Iterations int
}

const reminderText = "You are approaching the iteration limit for this turn. Summarise your progress and conclusions now and stop; do not request further tool calls."

// RunTurn executes spec §4.5's state machine for a single user prompt and
// returns once it reaches FINAL (or FAILED).
func (r *Runner) RunTurn(ctx context.Context, prompt string) (TurnResult, error) {
	// 1. PROMPT_EMIT
	reduced := r.coord.ProcessHookResult(r.coord.Hooks().Emit(ctx, hooks.PromptSubmit, map[string]any{"prompt": prompt}), hooks.PromptSubmit, r.name)
	if deny, ok := reduced.(hooks.Deny); ok {
		return TurnResult{Status: "denied", Text: fmt.Sprintf("Operation denied: %s", deny.Reason)}, nil
	}

	// 2. Context persistence
	if err := r.transcript.Append(ctx, provider.Message{Role: provider.RoleUser, Content: prompt}); err != nil {
		return TurnResult{}, apperr.Internal("append user message", err)
	}

	// 3. Compaction gate
	if err := r.maybeCompact(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("compaction failed, continuing with uncompacted transcript")
	}

	// 4. Provider selection
	selected, providerName, ok := r.coord.SelectProvider()
	if !ok {
		return TurnResult{}, apperr.New(apperr.KindInternal, "no provider mounted", nil)
	}

	iteration := 1
	for {
		// 5. BUILD_REQUEST
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

		// 6. PROVIDER_CALL
		resp, err := selected.Complete(ctx, provider.ChatRequest{Messages: messages, Tools: r.toolSpecs()})
		if err != nil {
			return TurnResult{}, apperr.New(apperr.KindProvider, "provider call failed", err)
		}
		r.coord.Hooks().Emit(ctx, hooks.ProviderResponse, map[string]any{
			"provider": providerName, "usage": resp.Usage, "tool_calls": len(resp.ToolCalls) > 0,
		})

		// 7. EMIT_BLOCKS
		r.emitBlocks(ctx, resp)

		// 8. ROUTE
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

func (r *Runner) overCap(iteration int) bool {
	return r.cfg.MaxIterations > 0 && iteration > r.cfg.MaxIterations
}

// finishOverCap implements step 9 (OVER_CAP): one ephemeral reminder, one
// more call, persist as final.
func (r *Runner) finishOverCap(ctx context.Context, selected provider.Provider, providerName string, iteration int) (TurnResult, error) {
	messages, err := r.transcript.Messages(ctx)
	if err != nil {
		return TurnResult{}, apperr.Internal("read transcript", err)
	}
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: reminderText})

	resp, err := selected.Complete(ctx, provider.ChatRequest{Messages: messages})
	if err != nil {
		return TurnResult{}, apperr.New(apperr.KindProvider, "reminder call failed", err)
	}
	if err := r.transcript.Append(ctx, assistantMessageFrom(resp)); err != nil {
		return TurnResult{}, apperr.Internal("append final assistant message", err)
	}
	final := concatenateText(resp.Content)
	r.complete(ctx, providerName, final, iteration, "over_cap")
	return TurnResult{Status: "completed", Text: final, Iterations: iteration}, nil
}

func (r *Runner) complete(ctx context.Context, providerName, text string, iterations int, status string) {
	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	r.coord.Hooks().Emit(ctx, hooks.PromptComplete, map[string]any{"response_preview": preview, "length": len(text)})
	r.coord.Hooks().Emit(ctx, hooks.OrchestratorComplete, map[string]any{
		"orchestrator": r.name, "turn_count": iterations, "status": status, "provider": providerName,
	})
}

// routeToolCalls persists the assistant tool-call message, executes the
// parallel group, and appends results in original call order (spec §4.3
// "Parallelism", §4.5 step 8a-c).
func (r *Runner) routeToolCalls(ctx context.Context, resp provider.ChatResponse) error {
	if err := r.transcript.Append(ctx, assistantMessageFrom(resp)); err != nil {
		return apperr.Internal("append assistant tool-call message", err)
	}

	calls := make([]tools.Call, len(resp.ToolCalls))
	for i, tc := range resp.ToolCalls {
		calls[i] = tools.Call{ID: tc.ID, Name: tc.Name, Arguments: tc.Input}
	}
	results := r.executor.ExecuteParallel(ctx, calls)

	for _, res := range results {
		msg := provider.Message{Role: provider.RoleTool, ToolCallID: res.ToolCallID, Content: res.Content}
		if err := r.transcript.Append(ctx, msg); err != nil {
			return apperr.Internal("append tool result message", err)
		}
	}
	return nil
}

func (r *Runner) toolSpecs() []provider.ToolSpec {
	views := r.coord.Tools().Specs()
	specs := make([]provider.ToolSpec, len(views))
	for i, v := range views {
		specs[i] = provider.ToolSpec{Name: v.Name, Description: v.Description, Parameters: v.Parameters}
	}
	return specs
}

// buildRequestMessages folds persisted transcript messages with any
// pending ephemeral injections from inject_context hook results (spec
// §4.5 step 5).
func (r *Runner) buildRequestMessages(ctx context.Context, reduced hooks.Result) ([]provider.Message, error) {
	messages, err := r.transcript.Messages(ctx)
	if err != nil {
		return nil, apperr.Internal("read transcript", err)
	}

	inject, ok := reduced.(hooks.InjectContext)
	if !ok {
		return messages, nil
	}
	return applyInjection(messages, inject), nil
}

func applyInjection(messages []provider.Message, inject hooks.InjectContext) []provider.Message {
	if inject.AppendToLastToolResult {
		out := make([]provider.Message, len(messages))
		copy(out, messages)
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].Role == provider.RoleTool {
				out[i].Content += inject.Text
				break
			}
		}
		return out
	}
	role := inject.Role
	if role == "" {
		role = provider.RoleSystem
	}
	return append(append([]provider.Message{}, messages...), provider.Message{Role: role, Content: inject.Text})
}

func (r *Runner) maybeCompact(ctx context.Context) error {
	if r.compactor == nil {
		return nil
	}
	if r.transcript.Len(ctx) <= r.cfg.CompactionThreshold {
		return nil
	}
	r.coord.Hooks().Emit(ctx, hooks.ContextPreCompact, map[string]any{})
	messages, err := r.transcript.Messages(ctx)
	if err != nil {
		return err
	}
	compacted, err := r.compactor.Compact(ctx, messages)
	if err != nil {
		return err
	}
	if err := r.transcript.ReplaceAll(ctx, compacted); err != nil {
		return err
	}
	r.coord.Hooks().Emit(ctx, hooks.ContextPostCompact, map[string]any{})
	return nil
}

func (r *Runner) emitBlocks(ctx context.Context, resp provider.ChatResponse) {
	total := len(resp.Content)
	for i, block := range resp.Content {
		blockType := blockTypeName(block)
		r.coord.Hooks().Emit(ctx, hooks.ContentBlockStart, map[string]any{
			"block_type": blockType, "block_index": i, "total_blocks": total,
		})
		data := map[string]any{"block_index": i, "total_blocks": total, "block": block}
		if i == total-1 {
			data["usage"] = resp.Usage
		}
		r.coord.Hooks().Emit(ctx, hooks.ContentBlockEnd, data)
	}
}

func blockTypeName(b provider.ContentBlock) string {
	switch b.(type) {
	case provider.TextBlock:
		return "text"
	case provider.ThinkingBlock:
		return "thinking"
	case provider.ToolCallBlock:
		return "tool_call"
	case provider.ReasoningBlock:
		return "reasoning"
	default:
		return "unknown"
	}
}

func hasText(blocks []provider.ContentBlock) bool {
	for _, b := range blocks {
		if _, ok := b.(provider.TextBlock); ok {
			return true
		}
	}
	return false
}

func concatenateText(blocks []provider.ContentBlock) string {
	var out string
	for _, b := range blocks {
		if t, ok := b.(provider.TextBlock); ok {
			out += t.Text
		}
	}
	return out
}

func assistantMessageFrom(resp provider.ChatResponse) provider.Message {
	return provider.Message{Role: provider.RoleAssistant, Blocks: resp.Content, Metadata: resp.Metadata}
}
