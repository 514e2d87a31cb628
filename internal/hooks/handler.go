package hooks

import "context"

// HandlerFunc is the function signature for a hook handler.
type HandlerFunc func(ctx context.Context, event Event) (Result, error)

// Handler is a registered hook handler entry (spec §3 "Hook Handler Entry").
// Priority is ascending: lower values run earlier. Handlers registered with
// equal priority run in insertion order (spec §4.1, Invariant #5 in §8).
type Handler struct {
	EventName string
	Name      string
	Priority  int
	Callable  HandlerFunc

	// ScriptPath, when set, routes execution through a goja-backed script
	// instead of Callable (see script.go). Callable is ignored when this is
	// non-empty.
	ScriptPath string

	insertSeq uint64
}
