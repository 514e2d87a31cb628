package tools

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/agentd/internal/hooks"
)

type stubEmitter struct {
	onToolPre func(data map[string]any) hooks.Result
}

func (s *stubEmitter) Emit(ctx context.Context, eventName string, data map[string]any) hooks.Result {
	if eventName == hooks.ToolPre && s.onToolPre != nil {
		return s.onToolPre(data)
	}
	return hooks.Continue{}
}

type echoTool struct{ name string }

func (t echoTool) Name() string                    { return t.name }
func (t echoTool) Description() string              { return "echoes its input" }
func (t echoTool) InputSchema() map[string]any      { return map[string]any{"type": "object"} }
func (t echoTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	return Success(fmt.Sprintf("%v", args["text"])), nil
}

type panickingTool struct{}

func (panickingTool) Name() string               { return "boom" }
func (panickingTool) Description() string        { return "" }
func (panickingTool) InputSchema() map[string]any { return nil }
func (panickingTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	panic("kaboom")
}

func TestExecuteOne_Success(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool{name: "echo"}))
	ex := NewExecutor(reg, &stubEmitter{})

	result := ex.ExecuteOne(context.Background(), Call{ID: "1", Name: "echo", Arguments: map[string]any{"text": "hi"}}, "g1")
	assert.False(t, result.IsError)
	assert.Equal(t, "hi", result.Content)
}

func TestExecuteOne_DeniedByHook(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool{name: "echo"}))
	emitter := &stubEmitter{onToolPre: func(data map[string]any) hooks.Result {
		return hooks.Deny{Reason: "not allowed"}
	}}
	ex := NewExecutor(reg, emitter)

	result := ex.ExecuteOne(context.Background(), Call{ID: "1", Name: "echo"}, "g1")
	assert.True(t, result.IsError)
	assert.Equal(t, "Denied by hook: not allowed", result.Content)
}

func TestExecuteOne_ToolNotFound(t *testing.T) {
	reg := NewRegistry()
	ex := NewExecutor(reg, &stubEmitter{})

	result := ex.ExecuteOne(context.Background(), Call{ID: "1", Name: "missing"}, "g1")
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: Tool 'missing' not found", result.Content)
}

func TestExecuteOne_PanicIsCaughtAsError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(panickingTool{}))
	ex := NewExecutor(reg, &stubEmitter{})

	result := ex.ExecuteOne(context.Background(), Call{ID: "1", Name: "boom"}, "g1")
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "kaboom")
}

func TestExecuteParallel_PreservesOriginalOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool{name: "echo"}))
	ex := NewExecutor(reg, &stubEmitter{})

	calls := []Call{
		{ID: "a", Name: "echo", Arguments: map[string]any{"text": "A"}},
		{ID: "b", Name: "echo", Arguments: map[string]any{"text": "B"}},
		{ID: "c", Name: "echo", Arguments: map[string]any{"text": "C"}},
	}
	results := ex.ExecuteParallel(context.Background(), calls)

	require.Len(t, results, 3)
	indices := make([]int, len(results))
	for i, r := range results {
		indices[i] = r.Index
	}
	assert.True(t, sort.IntsAreSorted(indices))
	assert.Equal(t, "A", results[0].Content)
	assert.Equal(t, "B", results[1].Content)
	assert.Equal(t, "C", results[2].Content)
}
