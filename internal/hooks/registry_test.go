package hooks

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingHandler(mu *sync.Mutex, order *[]string, name string, res Result) HandlerFunc {
	return func(ctx context.Context, event Event) (Result, error) {
		mu.Lock()
		*order = append(*order, name)
		mu.Unlock()
		return res, nil
	}
}

func TestRegistry_HandlersRunInPriorityThenInsertionOrder(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	var mu sync.Mutex
	var order []string

	_, err := r.Register(ToolPre, recordingHandler(&mu, &order, "prio-10-a", Continue{}), 10, "prio-10-a")
	require.NoError(t, err)
	_, err = r.Register(ToolPre, recordingHandler(&mu, &order, "prio-0", Continue{}), 0, "prio-0")
	require.NoError(t, err)
	_, err = r.Register(ToolPre, recordingHandler(&mu, &order, "prio-10-b", Continue{}), 10, "prio-10-b")
	require.NoError(t, err)

	r.Emit(context.Background(), ToolPre, map[string]any{})

	assert.Equal(t, []string{"prio-0", "prio-10-a", "prio-10-b"}, order)
}

func TestRegistry_UnregisterRemovesHandler(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	var mu sync.Mutex
	var order []string

	unregister, err := r.Register(ToolPre, recordingHandler(&mu, &order, "only", Continue{}), 0, "only")
	require.NoError(t, err)

	unregister()
	r.Emit(context.Background(), ToolPre, map[string]any{})

	assert.Empty(t, order)
}

func TestRegistry_AllHandlersRunEvenAfterDeny(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	var mu sync.Mutex
	var order []string

	_, err := r.Register(ToolPre, recordingHandler(&mu, &order, "denier", Deny{Reason: "no"}), 0, "denier")
	require.NoError(t, err)
	_, err = r.Register(ToolPre, recordingHandler(&mu, &order, "auditor", Continue{}), 10, "auditor")
	require.NoError(t, err)

	result := r.Emit(context.Background(), ToolPre, map[string]any{})

	assert.Equal(t, []string{"denier", "auditor"}, order)
	assert.Equal(t, Deny{Reason: "no"}, result)
}

func TestRegistry_PanickingHandlerTreatedAsContinue(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	_, err := r.Register(ToolPre, func(ctx context.Context, event Event) (Result, error) {
		panic("boom")
	}, 0, "panicker")
	require.NoError(t, err)

	result := r.Emit(context.Background(), ToolPre, map[string]any{})
	assert.Equal(t, Continue{}, result)
}

func TestRegistry_ErroringHandlerTreatedAsContinue(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	_, err := r.Register(ToolPre, func(ctx context.Context, event Event) (Result, error) {
		return Deny{Reason: "should not apply"}, assertError()
	}, 0, "erroring")
	require.NoError(t, err)

	result := r.Emit(context.Background(), ToolPre, map[string]any{})
	assert.Equal(t, Continue{}, result)
}

func assertError() error {
	return context.DeadlineExceeded
}

type capturingSink struct {
	mu     sync.Mutex
	events []string
}

func (c *capturingSink) Publish(ctx context.Context, name string, payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, name)
}

func TestRegistry_StreamingOverlayPublishesBeforeAndAfter(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	sink := &capturingSink{}
	r.SetStreamSink(sink)

	r.Emit(context.Background(), ToolPre, map[string]any{"tool": "echo"})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{"hook:tool:pre", "hook:tool:pre:result"}, sink.events)
}

func TestRegistry_StreamingOverlaySkipsUnconfiguredEvents(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	sink := &capturingSink{}
	r.SetStreamSink(sink)

	r.Emit(context.Background(), PlanStart, map[string]any{})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.events)
}

func TestRegistry_RegisterScriptRequiresRunner(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	_, err := r.RegisterScript(ToolPre, "/tmp/does-not-matter.js", 0, "script")
	assert.Error(t, err)
}
