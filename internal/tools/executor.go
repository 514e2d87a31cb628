package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agentrt/agentd/internal/hooks"
)

// HookEmitter is the subset of hooks.Registry the executor needs. Defined
// locally so tools never imports coordinator (coordinator mounts a
// *tools.Registry, so the reverse import would cycle).
type HookEmitter interface {
	Emit(ctx context.Context, eventName string, data map[string]any) hooks.Result
}

// Executor runs tool calls against a Registry, wrapping each invocation in
// the tool:pre / tool:post / tool:error hook lifecycle (spec §4.3
// "Invocation contract").
type Executor struct {
	registry *Registry
	hooks    HookEmitter
}

// NewExecutor builds an Executor over registry, emitting hook events
// through emitter.
func NewExecutor(registry *Registry, emitter HookEmitter) *Executor {
	return &Executor{registry: registry, hooks: emitter}
}

// ExecuteOne runs a single tool call within parallel group groupID,
// following the invocation contract exactly:
//  1. emit tool:pre; a deny reduces to a denied-by-hook result without
//     calling the tool.
//  2. an unknown tool name emits tool:error and returns a not-found result.
//  3. Execute errors (panics included) are caught and surfaced as
//     tool:error without propagating to the caller.
//  4. emit tool:post with the result.
func (ex *Executor) ExecuteOne(ctx context.Context, call Call, groupID string) (result CallResult) {
	preData := map[string]any{
		"tool_name":         call.Name,
		"tool_input":        call.Arguments,
		"parallel_group_id": groupID,
	}
	reduced := ex.hooks.Emit(ctx, hooks.ToolPre, preData)
	if deny, ok := reduced.(hooks.Deny); ok {
		return CallResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("Denied by hook: %s", deny.Reason),
			IsError:    true,
		}
	}
	if modify, ok := reduced.(hooks.Modify); ok {
		if v, present := modify.Data["tool_input"]; present {
			if args, ok := v.(map[string]any); ok {
				call.Arguments = args
			}
		}
	}

	tool, ok := ex.registry.Get(call.Name)
	if !ok {
		ex.hooks.Emit(ctx, hooks.ToolError, map[string]any{
			"tool_name": call.Name, "tool_input": call.Arguments,
			"parallel_group_id": groupID, "error": "not found",
		})
		return CallResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("Error: Tool '%s' not found", call.Name),
			IsError:    true,
		}
	}

	toolResult := ex.invoke(ctx, tool, call, groupID)

	ex.hooks.Emit(ctx, hooks.ToolPost, map[string]any{
		"tool_name": call.Name, "tool_input": call.Arguments,
		"result": toolResult, "parallel_group_id": groupID,
	})

	if toolResult.Success {
		return CallResult{ToolCallID: call.ID, Content: stringifyOutput(toolResult.Output)}
	}
	msg := "unknown error"
	if toolResult.Error != nil {
		msg = toolResult.Error.Msg
	}
	return CallResult{ToolCallID: call.ID, Content: fmt.Sprintf("Error: %s", msg), IsError: true}
}

// invoke calls the tool, converting a panic or returned error into an
// error ToolResult so it never reaches the orchestrator loop (spec §4.3
// step 3: "Tool execution MUST NOT propagate exceptions").
func (ex *Executor) invoke(ctx context.Context, tool Tool, call Call, groupID string) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			ex.hooks.Emit(ctx, hooks.ToolError, map[string]any{
				"tool_name": call.Name, "tool_input": call.Arguments,
				"parallel_group_id": groupID, "error": fmt.Sprintf("%v", rec),
			})
			result = Failure("panic", fmt.Sprintf("%v", rec))
		}
	}()

	res, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		ex.hooks.Emit(ctx, hooks.ToolError, map[string]any{
			"tool_name": call.Name, "tool_input": call.Arguments,
			"parallel_group_id": groupID, "error": err.Error(),
		})
		return Failure("execution_error", err.Error())
	}
	return res
}

// ExecuteParallel runs every call in calls concurrently as a single
// parallel group and returns their CallResults in the original call
// order, regardless of completion order (spec §4.3 "Parallelism").
func (ex *Executor) ExecuteParallel(ctx context.Context, calls []Call) []CallResult {
	if len(calls) == 0 {
		return nil
	}
	groupID := uuid.NewString()
	results := make([]CallResult, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		i, call := i, call
		go func() {
			defer wg.Done()
			r := ex.ExecuteOne(ctx, call, groupID)
			r.Index = i
			results[i] = r
		}()
	}
	wg.Wait()
	return results
}

func stringifyOutput(output any) string {
	if output == nil {
		return ""
	}
	if s, ok := output.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", output)
}
