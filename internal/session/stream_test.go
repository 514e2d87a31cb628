package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamManager_SubscribeReceivesEmittedEvents(t *testing.T) {
	m := NewStreamManager("sess-1", 4)
	sub := m.Subscribe()

	m.Emit("user_message_saved", map[string]any{"session_id": "sess-1"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "user_message_saved", ev.Name)
	default:
		t.Fatal("expected event to be delivered")
	}
}

func TestStreamManager_UnsubscribeClosesChannel(t *testing.T) {
	m := NewStreamManager("sess-1", 4)
	sub := m.Subscribe()
	m.Unsubscribe(sub)

	_, ok := <-sub.Events()
	assert.False(t, ok, "expected channel to be closed")
}

func TestStreamManager_OrderPreservedWithinOneSubscriber(t *testing.T) {
	m := NewStreamManager("sess-1", 8)
	sub := m.Subscribe()

	for i := 0; i < 5; i++ {
		m.Emit("content", map[string]any{"i": i})
	}

	for i := 0; i < 5; i++ {
		ev := <-sub.Events()
		assert.Equal(t, i, ev.Data["i"])
	}
}

func TestStreamManager_OldestDropUnderBackpressure(t *testing.T) {
	m := NewStreamManager("sess-1", 2)
	sub := m.Subscribe()

	// Fill beyond capacity without draining; oldest entries should be
	// dropped so the newest survives.
	for i := 0; i < 5; i++ {
		m.Emit("content", map[string]any{"i": i})
	}

	var got []int
	draining := true
	for draining {
		select {
		case ev := <-sub.Events():
			if ev.Name == "stream:dropped" {
				continue
			}
			got = append(got, ev.Data["i"].(int))
		default:
			draining = false
		}
	}

	require.NotEmpty(t, got)
	assert.Equal(t, 4, got[len(got)-1], "newest event must survive the drop")
}

func TestStreamManager_PublishSatisfiesHookStreamSink(t *testing.T) {
	m := NewStreamManager("sess-1", 4)
	sub := m.Subscribe()

	m.Publish(context.Background(), "hook:tool:pre", map[string]any{"tool": "echo"})

	ev := <-sub.Events()
	assert.Equal(t, "hook:tool:pre", ev.Name)
	assert.Equal(t, "echo", ev.Data["tool"])
}

func TestStreamManager_TryBeginExecution_RejectsConcurrentTurn(t *testing.T) {
	m := NewStreamManager("sess-1", 4)
	require.True(t, m.TryBeginExecution())
	assert.False(t, m.TryBeginExecution(), "second concurrent turn must be rejected")

	m.EndExecution()
	assert.True(t, m.TryBeginExecution(), "lock must be released for the next turn")
}
