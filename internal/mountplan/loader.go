package mountplan

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/coordinator"
	"github.com/agentrt/agentd/internal/hooks"
)

// Loader builds a fully populated Coordinator from a validated MountPlan
// (spec §4.8 "Contract"). It holds the module factory Registry and the
// logger handed to each session's hook registry.
type Loader struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewLoader constructs a Loader bound to registry.
func NewLoader(registry *Registry, logger zerolog.Logger) *Loader {
	return &Loader{registry: registry, logger: logger}
}

// Cleanup is returned by Build and runs every mounted module's cleanup
// function in reverse mount order, collecting (not stopping on) individual
// failures, since a cleanup step failing should not prevent the rest from
// running.
type Cleanup func() error

// Build instantiates the orchestrator and context-manager slots, then
// mounts providers, tools, and hooks in that order (spec §4.8 "Mount
// order: orchestrator -> context-manager -> providers -> tools ->
// hooks"). Within the hook group, registration mirrors plan order, with
// priority taken from each hook's MountPoint (spec §4.8). amplifiedDir is
// merged into every tool's config before mount (spec §4.8 "Inject the
// session's working directory").
func (l *Loader) Build(ctx context.Context, plan MountPlan, amplifiedDir string) (*coordinator.Coordinator, Cleanup, error) {
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}

	reg := hooks.NewRegistry(l.logger)
	coord := coordinator.New(reg)

	var cleanups []func() error
	cleanupAll := func() error {
		var firstErr error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	orch, err := l.registry.orchestrator(plan.Orchestrator)
	if err != nil {
		return nil, nil, err
	}
	coord.MountOrchestrator(orch)

	if plan.ContextManager != nil {
		cm, err := l.registry.contextManager(*plan.ContextManager)
		if err != nil {
			return nil, nil, err
		}
		coord.MountContextManager(cm)
	}

	for _, mp := range plan.Providers {
		p, err := l.registry.provider(mp, reg)
		if err != nil {
			_ = cleanupAll()
			return nil, nil, err
		}
		priority := mp.Priority
		if priority == 0 {
			priority = 100
		}
		coord.MountProvider(mp.Name, p, priority)
	}

	for _, mp := range plan.Tools {
		cfg, err := mergeAmplifiedDir(mp.Config, amplifiedDir)
		if err != nil {
			_ = cleanupAll()
			return nil, nil, apperr.Validation("mount plan: tool %q has invalid config: %v", mp.Name, err)
		}
		t, err := l.registry.tool(mp, cfg)
		if err != nil {
			_ = cleanupAll()
			return nil, nil, err
		}
		if err := coord.Tools().Register(t); err != nil {
			_ = cleanupAll()
			return nil, nil, apperr.Validation("mount plan: %v", err)
		}
	}

	for _, mp := range plan.Hooks {
		eventName, handler, err := l.registry.hook(mp, reg)
		if err != nil {
			_ = cleanupAll()
			return nil, nil, err
		}
		priority := mp.Priority
		unregister, err := reg.Register(eventName, handler, priority, mp.Name)
		if err != nil {
			_ = cleanupAll()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() error { unregister(); return nil })
	}

	for _, mp := range plan.Contexts {
		registerDiscoveryCapability(ctx, coord, "context", mp)
	}
	for _, mp := range plan.Agents {
		registerDiscoveryCapability(ctx, coord, "agent", mp)
	}

	return coord, Cleanup(cleanupAll), nil
}

// mergeAmplifiedDir decodes a tool's raw JSON config (if any) and merges
// in the session's working directory under "amplified_dir" without
// overwriting an explicit value the plan already set.
func mergeAmplifiedDir(raw json.RawMessage, amplifiedDir string) (map[string]any, error) {
	cfg := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}
	if _, set := cfg["amplified_dir"]; !set && amplifiedDir != "" {
		cfg["amplified_dir"] = amplifiedDir
	}
	return cfg, nil
}
