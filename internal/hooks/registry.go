package hooks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// StreamSink publishes a streaming overlay record (spec §4.1). Publish
// failures are logged by the registry and never change Emit's result.
type StreamSink interface {
	Publish(ctx context.Context, eventName string, payload map[string]any)
}

// ScriptRunner executes a scripted hook handler (see script.go for the
// goja-backed implementation). It is optional: a Registry with no
// ScriptRunner configured rejects RegisterScript.
type ScriptRunner interface {
	Run(ctx context.Context, scriptPath string, event Event) (Result, error)
}

// Registry is the C1 event/hook registry: ordered, prioritised fan-out of
// named events through handlers that observe, deny, or rewrite the event.
type Registry struct {
	mu           sync.RWMutex
	handlers     map[string][]*Handler
	seq          uint64
	logger       zerolog.Logger
	scripts      ScriptRunner
	sink         StreamSink
	streamEvents map[string]struct{}
}

// NewRegistry constructs an empty Registry. The default streaming overlay
// set is StreamEventSet(); call SetStreamEvents to override.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		handlers:     make(map[string][]*Handler),
		logger:       logger,
		streamEvents: StreamEventSet(),
	}
}

// SetStreamSink wires an SSE (or other) publisher for the streaming overlay.
func (r *Registry) SetStreamSink(sink StreamSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// SetStreamEvents overrides the set of event names that get the hook:<name>
// / hook:<name>:result streaming overlay.
func (r *Registry) SetStreamEvents(names map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamEvents = names
}

// SetScriptRunner wires the goja-backed (or any other) script executor used
// by handlers registered via RegisterScript.
func (r *Registry) SetScriptRunner(sr ScriptRunner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = sr
}

// Register adds a handler for eventName at the given priority (lower runs
// earlier) and returns an unregister function. Handlers registered with
// equal priority run in insertion order (spec Invariant #5).
func (r *Registry) Register(eventName string, fn HandlerFunc, priority int, name string) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("hooks: handler func is required")
	}
	h := &Handler{EventName: eventName, Name: name, Priority: priority, Callable: fn}
	return r.add(eventName, h)
}

// RegisterScript adds a script-backed handler. It fails if no ScriptRunner
// has been configured via SetScriptRunner.
func (r *Registry) RegisterScript(eventName, scriptPath string, priority int, name string) (func(), error) {
	r.mu.RLock()
	hasRunner := r.scripts != nil
	r.mu.RUnlock()
	if !hasRunner {
		return nil, fmt.Errorf("hooks: no script runner configured")
	}
	h := &Handler{EventName: eventName, Name: name, Priority: priority, ScriptPath: scriptPath}
	return r.add(eventName, h)
}

func (r *Registry) add(eventName string, h *Handler) (func(), error) {
	r.mu.Lock()
	r.seq++
	h.insertSeq = r.seq
	r.handlers[eventName] = append(r.handlers[eventName], h)
	sortHandlers(r.handlers[eventName])
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.handlers[eventName]
		for i, candidate := range list {
			if candidate == h {
				r.handlers[eventName] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}, nil
}

func sortHandlers(list []*Handler) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].insertSeq < list[j].insertSeq
	})
}

// Emit invokes every handler registered for eventName, in priority order,
// collects each one's Result, and reduces them per spec §4.1. Handler
// panics and errors are caught, logged at debug level, and treated as
// Continue so a misbehaving hook never breaks the pipeline. All handlers
// run to completion even once a Deny has been observed, so downstream
// logging/audit handlers still see the event (spec §4.1 point 1).
func (r *Registry) Emit(ctx context.Context, eventName string, data map[string]any) Result {
	r.mu.RLock()
	list := make([]*Handler, len(r.handlers[eventName]))
	copy(list, r.handlers[eventName])
	sink := r.sink
	_, streamed := r.streamEvents[eventName]
	scripts := r.scripts
	r.mu.RUnlock()

	if data == nil {
		data = make(map[string]any)
	}
	event := Event{Name: eventName, Data: data}

	if streamed && sink != nil {
		r.publish(ctx, sink, "hook:"+eventName, data)
	}

	results := make([]Result, 0, len(list))
	for _, h := range list {
		res := r.invoke(ctx, h, event, scripts)
		results = append(results, res)
	}

	reduced := Reduce(results)

	if streamed && sink != nil {
		r.publish(ctx, sink, "hook:"+eventName+":result", resultPayload(reduced))
	}

	return reduced
}

func (r *Registry) invoke(ctx context.Context, h *Handler, event Event, scripts ScriptRunner) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug().
				Str("handler", h.Name).
				Str("event", h.EventName).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("hook handler panicked")
			result = Continue{}
		}
	}()

	var (
		res Result
		err error
	)
	if h.ScriptPath != "" {
		if scripts == nil {
			return Continue{}
		}
		res, err = scripts.Run(ctx, h.ScriptPath, event)
	} else {
		res, err = h.Callable(ctx, event)
	}
	if err != nil {
		r.logger.Debug().Err(err).Str("handler", h.Name).Str("event", h.EventName).Msg("hook handler error")
		return Continue{}
	}
	if res == nil {
		return Continue{}
	}
	return res
}

func (r *Registry) publish(ctx context.Context, sink StreamSink, name string, payload map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug().Interface("panic", rec).Str("event", name).Msg("stream sink publish panicked")
		}
	}()
	sink.Publish(ctx, name, payload)
}

func resultPayload(r Result) map[string]any {
	switch v := r.(type) {
	case Deny:
		return map[string]any{"action": "deny", "reason": v.Reason}
	case Modify:
		return map[string]any{"action": "modify", "reason": v.Reason, "data": v.Data}
	case InjectContext:
		return map[string]any{"action": "inject_context", "ephemeral": v.Ephemeral}
	default:
		return map[string]any{"action": "continue"}
	}
}
