package mountplan

import (
	"context"
	"sort"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/coordinator"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/provider"
	"github.com/agentrt/agentd/internal/tools"
)

// ProviderFactory builds a mounted provider.Provider from a MountPoint's
// config. emitter is the session's hook registry, passed through so a
// factory can wrap its wire backend in a provider.Adapter (C4), which
// needs it to emit llm:*/provider:* events. amplifiedDir is not injected
// into provider config (spec §4.8 only calls for tool config injection).
type ProviderFactory func(mp MountPoint, emitter provider.HookEmitter) (provider.Provider, error)

// ToolFactory builds a mounted tools.Tool. cfg has already had
// amplified_dir merged in (spec §4.8 "Inject the session's working
// directory into every tool's config before mount").
type ToolFactory func(mp MountPoint, cfg map[string]any) (tools.Tool, error)

// HookFactory builds a mounted hook handler function plus the event it
// attaches to; priority comes from the MountPoint itself (spec §4.8
// "priority is set from each hook's config"). emitter is the session's
// hook registry, passed through so a factory whose handler itself needs
// to emit further events (e.g. the approval builtin's approval:required/
// granted/denied) can do so, the same way ProviderFactory receives one.
type HookFactory func(mp MountPoint, emitter provider.HookEmitter) (eventName string, handler hooks.HandlerFunc, err error)

// OrchestratorFactory builds the coordinator.Orchestrator slot value. The
// real turn-driving orchestrator.Runner is constructed separately at the
// session layer (runner_builder.go); this only satisfies C2's slot and
// capability-discovery surface.
type OrchestratorFactory func(mp MountPoint) (coordinator.Orchestrator, error)

// ContextManagerFactory builds the coordinator.ContextManager slot value.
type ContextManagerFactory func(mp MountPoint) (coordinator.ContextManager, error)

// Registry resolves a MountPoint's Name to the factory that constructs it.
// Referenced modules resolve through the same factories as embedded ones;
// SourcePath is available to factories that need to read cached module
// source (spec's file-format detail is an external collaborator, so
// built-in factories here only need the name to choose behavior).
type Registry struct {
	providers    map[string]ProviderFactory
	toolFactory  map[string]ToolFactory
	hookFactory  map[string]HookFactory
	orchFactory  map[string]OrchestratorFactory
	ctxFactory   map[string]ContextManagerFactory
}

// NewRegistry constructs an empty Registry. Callers register built-in
// module factories with RegisterProvider/RegisterTool/RegisterHook/
// RegisterOrchestrator/RegisterContextManager; cmd/agentd wires the
// concrete set at startup (see builtins.go for the shipped defaults).
func NewRegistry() *Registry {
	return &Registry{
		providers:   make(map[string]ProviderFactory),
		toolFactory: make(map[string]ToolFactory),
		hookFactory: make(map[string]HookFactory),
		orchFactory: make(map[string]OrchestratorFactory),
		ctxFactory:  make(map[string]ContextManagerFactory),
	}
}

func (r *Registry) RegisterProvider(name string, f ProviderFactory) { r.providers[name] = f }
func (r *Registry) RegisterTool(name string, f ToolFactory)         { r.toolFactory[name] = f }
func (r *Registry) RegisterHook(name string, f HookFactory)         { r.hookFactory[name] = f }
func (r *Registry) RegisterOrchestrator(name string, f OrchestratorFactory) {
	r.orchFactory[name] = f
}
func (r *Registry) RegisterContextManager(name string, f ContextManagerFactory) {
	r.ctxFactory[name] = f
}

func (r *Registry) provider(mp MountPoint, emitter provider.HookEmitter) (provider.Provider, error) {
	f, ok := r.providers[mp.Name]
	if !ok {
		return nil, apperr.Validation("mount plan: unknown provider module %q", mp.Name)
	}
	return f(mp, emitter)
}

func (r *Registry) tool(mp MountPoint, cfg map[string]any) (tools.Tool, error) {
	f, ok := r.toolFactory[mp.Name]
	if !ok {
		return nil, apperr.Validation("mount plan: unknown tool module %q", mp.Name)
	}
	return f(mp, cfg)
}

func (r *Registry) hook(mp MountPoint, emitter provider.HookEmitter) (string, hooks.HandlerFunc, error) {
	f, ok := r.hookFactory[mp.Name]
	if !ok {
		return "", nil, apperr.Validation("mount plan: unknown hook module %q", mp.Name)
	}
	return f(mp, emitter)
}

func (r *Registry) orchestrator(mp MountPoint) (coordinator.Orchestrator, error) {
	f, ok := r.orchFactory[mp.Name]
	if !ok {
		return nil, apperr.Validation("mount plan: unknown orchestrator module %q", mp.Name)
	}
	return f(mp)
}

func (r *Registry) contextManager(mp MountPoint) (coordinator.ContextManager, error) {
	f, ok := r.ctxFactory[mp.Name]
	if !ok {
		return nil, apperr.Validation("mount plan: unknown context manager module %q", mp.Name)
	}
	return f(mp)
}

// ProviderNames, ToolNames, HookNames, OrchestratorNames, and
// ContextManagerNames expose the registered factory names for C9's module
// discovery surface (spec §4.9 "Module and profile discovery").
func (r *Registry) ProviderNames() []string         { return mapKeys(r.providers) }
func (r *Registry) ToolNames() []string             { return mapKeys(r.toolFactory) }
func (r *Registry) HookNames() []string             { return mapKeys(r.hookFactory) }
func (r *Registry) OrchestratorNames() []string     { return mapKeys(r.orchFactory) }
func (r *Registry) ContextManagerNames() []string   { return mapKeys(r.ctxFactory) }

func mapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// agent and context mount points register as capabilities rather than
// slots: the spec names them among C8's mount groups but gives C2 no
// dedicated slot for them (providers/tools/orchestrator/context_manager
// are the typed slots; spec §4.2), so they are exposed for discovery via
// coordinator.RegisterCapability instead of driving behavior directly.
func registerDiscoveryCapability(ctx context.Context, coord *coordinator.Coordinator, group string, mp MountPoint) {
	key := "mount:" + group + ":" + mp.Name
	coord.RegisterCapability(key, mp)
}
