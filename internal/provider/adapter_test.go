package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/agentd/internal/hooks"
)

type recordingEmitter struct {
	names []string
}

func (r *recordingEmitter) Emit(ctx context.Context, eventName string, data map[string]any) hooks.Result {
	r.names = append(r.names, eventName)
	return hooks.Continue{}
}

func TestAdapter_SimpleCompleteEmitsRequestAndResponse(t *testing.T) {
	backend := NewScriptedBackend("scripted", WireResponse{Status: "complete", Content: []ContentBlock{TextBlock{Text: "hello"}}})
	emitter := &recordingEmitter{}
	adapter := NewAdapter(backend, emitter, DefaultAdapterConfig())

	resp, err := adapter.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, TextBlock{Text: "hello"}, resp.Content[0])
	assert.Contains(t, emitter.names, hooks.LLMRequest)
	assert.Contains(t, emitter.names, hooks.LLMResponse)
}

func TestAdapter_RepairEmitsToolSequenceRepaired(t *testing.T) {
	backend := NewScriptedBackend("scripted", WireResponse{Status: "complete", Content: []ContentBlock{TextBlock{Text: "done"}}})
	emitter := &recordingEmitter{}
	adapter := NewAdapter(backend, emitter, DefaultAdapterConfig())

	req := ChatRequest{Messages: []Message{
		{Role: RoleAssistant, Blocks: []ContentBlock{ToolCallBlock{ID: "1", Name: "echo"}}},
	}}
	_, err := adapter.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, emitter.names, hooks.ProviderToolSequenceRepaired)
}

func TestAdapter_ContinuesOnIncompleteUpToCap(t *testing.T) {
	backend := NewScriptedBackend("scripted",
		WireResponse{Status: "incomplete", IncompleteReason: "max_output_tokens", Content: []ContentBlock{TextBlock{Text: "part1 "}}},
		WireResponse{Status: "incomplete", IncompleteReason: "max_output_tokens", Content: []ContentBlock{TextBlock{Text: "part2 "}}},
		WireResponse{Status: "complete", Content: []ContentBlock{TextBlock{Text: "part3"}}},
	)
	emitter := &recordingEmitter{}
	cfg := DefaultAdapterConfig()
	cfg.ContinuationCap = 3
	adapter := NewAdapter(backend, emitter, cfg)

	resp, err := adapter.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Len(t, resp.Content, 3)
	assert.Equal(t, 3, backend.calls)

	continuationEvents := 0
	for _, n := range emitter.names {
		if n == hooks.ProviderIncompleteContinuation {
			continuationEvents++
		}
	}
	assert.Equal(t, 2, continuationEvents)
}

func TestAdapter_StopsAtContinuationCap(t *testing.T) {
	alwaysIncomplete := WireResponse{Status: "incomplete", IncompleteReason: "max_output_tokens", Content: []ContentBlock{TextBlock{Text: "x"}}}
	backend := NewScriptedBackend("scripted", alwaysIncomplete, alwaysIncomplete, alwaysIncomplete, alwaysIncomplete, alwaysIncomplete)
	emitter := &recordingEmitter{}
	cfg := DefaultAdapterConfig()
	cfg.ContinuationCap = 2
	adapter := NewAdapter(backend, emitter, cfg)

	resp, err := adapter.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls) // initial + 2 continuations
	assert.Len(t, resp.Content, 3)
}

func TestAdapter_ErrorWithNoAccumulatedOutputReturnsError(t *testing.T) {
	backend := NewScriptedBackend("scripted").FailAt(0, errors.New("boom"))
	emitter := &recordingEmitter{}
	adapter := NewAdapter(backend, emitter, DefaultAdapterConfig())

	_, err := adapter.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestAdapter_ErrorAfterPartialOutputReturnsBestAvailable(t *testing.T) {
	backend := NewScriptedBackend("scripted",
		WireResponse{Status: "incomplete", Content: []ContentBlock{TextBlock{Text: "part1"}}},
	).FailAt(1, errors.New("network blip"))
	emitter := &recordingEmitter{}
	cfg := DefaultAdapterConfig()
	cfg.ContinuationCap = 3
	adapter := NewAdapter(backend, emitter, cfg)

	resp, err := adapter.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, TextBlock{Text: "part1"}, resp.Content[0])
}
