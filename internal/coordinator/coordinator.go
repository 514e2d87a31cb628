// Package coordinator implements the module coordinator (spec component
// C2): a typed slot map of mounted modules plus a capability registry, and
// the bridge that applies reduced hook results onto a running turn.
package coordinator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/provider"
	"github.com/agentrt/agentd/internal/tools"
)

// mountedProvider tracks a provider's selection priority and insertion
// order for SelectProvider's ascending-priority, insertion-order tie-break
// (spec §4.5 "Provider selection").
type mountedProvider struct {
	name      string
	priority  int
	insertSeq uint64
}

// Orchestrator is the minimal surface the coordinator needs from the
// mounted orchestrator slot; the full interface lives in the orchestrator
// package to avoid an import cycle.
type Orchestrator interface {
	Name() string
}

// ContextManager is the minimal surface needed from the context_manager
// slot.
type ContextManager interface {
	Name() string
}

// Coordinator owns the mounted providers, tools, orchestrator, and context
// manager for a session, plus an open capability registry.
type Coordinator struct {
	mu sync.RWMutex

	providers      map[string]provider.Provider
	providerOrder  []mountedProvider
	providerSeq    uint64
	toolRegistry   *tools.Registry
	orchestrator   Orchestrator
	contextManager ContextManager
	capabilities   map[string]any

	hookRegistry      *hooks.Registry
	pendingInjections map[string][]EphemeralInjection
}

// New constructs an empty Coordinator bound to the given hook registry,
// which Hooks returns to callers that emit events.
func New(hookRegistry *hooks.Registry) *Coordinator {
	return &Coordinator{
		providers:    make(map[string]provider.Provider),
		toolRegistry: tools.NewRegistry(),
		capabilities: make(map[string]any),
		hookRegistry: hookRegistry,
	}
}

// Hooks returns the mounted hook registry.
func (c *Coordinator) Hooks() *hooks.Registry { return c.hookRegistry }

// Tools returns the mounted tool registry.
func (c *Coordinator) Tools() *tools.Registry { return c.toolRegistry }

// DefaultProviderPriority is used when a mount plan doesn't specify one
// (spec §4.5 "Provider selection ... default 100").
const DefaultProviderPriority = 100

// MountProvider mounts a provider under name at the given selection
// priority (lower runs first; ties break on mount order).
func (c *Coordinator) MountProvider(name string, p provider.Provider, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = p
	c.providerSeq++
	c.providerOrder = append(c.providerOrder, mountedProvider{name: name, priority: priority, insertSeq: c.providerSeq})
	sort.SliceStable(c.providerOrder, func(i, j int) bool {
		if c.providerOrder[i].priority != c.providerOrder[j].priority {
			return c.providerOrder[i].priority < c.providerOrder[j].priority
		}
		return c.providerOrder[i].insertSeq < c.providerOrder[j].insertSeq
	})
}

// Provider returns the provider mounted under name.
func (c *Coordinator) Provider(name string) (provider.Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	return p, ok
}

// ProviderNames returns the names of every mounted provider in ascending
// priority, then insertion, order (spec §4.5 "Provider selection").
func (c *Coordinator) ProviderNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.providerOrder))
	for _, mp := range c.providerOrder {
		names = append(names, mp.name)
	}
	return names
}

// SelectProvider returns the highest-priority (lowest value) mounted
// provider, or false if none are mounted.
func (c *Coordinator) SelectProvider() (provider.Provider, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.providerOrder) == 0 {
		return nil, "", false
	}
	name := c.providerOrder[0].name
	return c.providers[name], name, true
}

// MountOrchestrator mounts the single orchestrator slot.
func (c *Coordinator) MountOrchestrator(o Orchestrator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orchestrator = o
}

// MountContextManager mounts the single context_manager slot.
func (c *Coordinator) MountContextManager(m ContextManager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contextManager = m
}

// Orchestrator returns the mounted orchestrator, or nil if none.
func (c *Coordinator) Orchestrator() Orchestrator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orchestrator
}

// ContextManager returns the mounted context manager, or nil if none.
func (c *Coordinator) ContextManager() ContextManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contextManager
}

// RegisterCapability stores a named capability value (e.g. a module's
// declared "observability.events" list).
func (c *Coordinator) RegisterCapability(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capabilities[name] = value
}

// GetCapability retrieves a named capability.
func (c *Coordinator) GetCapability(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.capabilities[name]
	return v, ok
}

// EphemeralInjection is per-source state the coordinator accumulates from
// inject_context hook results so the next provider call can fold it into
// the request (spec §4.2 "process_hook_result contract").
type EphemeralInjection struct {
	Text                   string
	Role                   string
	AppendToLastToolResult bool
	SuppressOutput         bool
}

// ProcessHookResult records an inject_context result in the per-source
// ephemeral injection buffer and returns every result unchanged; deny and
// modify results are passed through for the caller to act on (spec §4.2: "returns the result unchanged except that it may
// record per-source state needed by later stages"). source identifies the
// module/capability that triggered the emit, used only to scope the
// per-source ephemeral injection buffer.
func (c *Coordinator) ProcessHookResult(result hooks.Result, eventName, source string) hooks.Result {
	switch v := result.(type) {
	case hooks.InjectContext:
		c.mu.Lock()
		if c.pendingInjections == nil {
			c.pendingInjections = make(map[string][]EphemeralInjection)
		}
		c.pendingInjections[source] = append(c.pendingInjections[source], EphemeralInjection{
			Text:                   v.Text,
			Role:                   v.Role,
			AppendToLastToolResult: v.AppendToLastToolResult,
			SuppressOutput:         v.SuppressOutput,
		})
		c.mu.Unlock()
	}
	return result
}

// DrainInjections returns and clears the accumulated ephemeral injections
// for source, for the orchestrator to fold into the next ChatRequest.
func (c *Coordinator) DrainInjections(source string) []EphemeralInjection {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pendingInjections[source]
	delete(c.pendingInjections, source)
	return pending
}

// ErrSlotNotFound describes a requested slot/name that is not mounted.
type ErrSlotNotFound struct {
	Slot string
	Name string
}

func (e ErrSlotNotFound) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("coordinator: slot %q not mounted", e.Slot)
	}
	return fmt.Sprintf("coordinator: slot %q/%q not mounted", e.Slot, e.Name)
}
