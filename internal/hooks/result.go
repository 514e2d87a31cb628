package hooks

// Result is the tagged value a handler returns (spec §3 "HookResult").
// Concrete variants: Continue, Deny, Modify, InjectContext.
type Result interface {
	hookResult()
}

// Continue carries no effect; the default when a handler declines to act.
type Continue struct{}

func (Continue) hookResult() {}

// Deny aborts the triggering operation. Reason is surfaced to the caller
// and, for tool calls, becomes the "Denied by hook: <reason>" tool result.
type Deny struct {
	Reason string
}

func (Deny) hookResult() {}

// Modify replaces named fields in the event payload (Data) once merged by
// the reducer, and records a human-readable Reason for audit/logging.
type Modify struct {
	Data   map[string]any
	Reason string
}

func (Modify) hookResult() {}

// InjectContext asks the orchestrator to add a message to the next provider
// call. Ephemeral injections never touch the persisted transcript; when
// AppendToLastToolResult is set, the text is appended to the in-memory copy
// of the last tool-role message instead of becoming a new message.
type InjectContext struct {
	Text                   string
	Role                   string // "system" or "user"
	Ephemeral              bool
	AppendToLastToolResult bool
	SuppressOutput         bool
}

func (InjectContext) hookResult() {}

// Reduce folds a slice of per-handler Results into one outcome using the
// precedence rule of spec §4.1:
//  1. Any Deny -> Deny with the first such reason (subsequent handlers may
//     still have run, for audit, but cannot override).
//  2. Else any Modify -> Modify, with Data fields merged in handler order.
//  3. Else any InjectContext -> the last one wins.
//  4. Else Continue.
//
// Reduce is a pure function so it can be property-tested independent of the
// registry (spec §9 design note).
func Reduce(results []Result) Result {
	var (
		firstDeny    *Deny
		mergedModify map[string]any
		modifyReason string
		sawModify    bool
		lastInject   *InjectContext
	)

	for _, r := range results {
		switch v := r.(type) {
		case Deny:
			if firstDeny == nil {
				d := v
				firstDeny = &d
			}
		case Modify:
			sawModify = true
			if mergedModify == nil {
				mergedModify = make(map[string]any, len(v.Data))
			}
			for k, val := range v.Data {
				mergedModify[k] = val
			}
			if v.Reason != "" {
				modifyReason = v.Reason
			}
		case InjectContext:
			ic := v
			lastInject = &ic
		case Continue:
			// no-op
		}
	}

	if firstDeny != nil {
		return *firstDeny
	}
	if sawModify {
		return Modify{Data: mergedModify, Reason: modifyReason}
	}
	if lastInject != nil {
		return *lastInject
	}
	return Continue{}
}
