package mountplan

import (
	"context"
	"sort"

	"github.com/agentrt/agentd/internal/apperr"
)

// DefaultMountPlanProvider resolves a project's default profile and mount
// plan for the automation scheduler's transient sessions (spec §4.7
// "create a transient session using the project's default profile and
// mount plan"). It implements automation.DefaultMountPlanProvider
// structurally, without mountplan importing automation.
type DefaultMountPlanProvider struct {
	fallback  MountPlan
	overrides map[string]MountPlan
}

// NewDefaultMountPlanProvider constructs a provider that returns
// perProject[projectID] when present, else fallback.
func NewDefaultMountPlanProvider(fallback MountPlan, perProject map[string]MountPlan) *DefaultMountPlanProvider {
	if perProject == nil {
		perProject = make(map[string]MountPlan)
	}
	return &DefaultMountPlanProvider{fallback: fallback, overrides: perProject}
}

// DefaultMountPlan returns the resolved (profileID, mountPlan) pair for
// projectID.
func (p *DefaultMountPlanProvider) DefaultMountPlan(ctx context.Context, projectID string) (string, any, error) {
	plan, ok := p.overrides[projectID]
	if !ok {
		plan = p.fallback
	}
	if err := plan.Validate(); err != nil {
		return "", nil, apperr.Internal("default mount plan for project is invalid", err)
	}
	return "default", plan, nil
}

// ProfileIDs lists every project ID with an explicit mount-plan override,
// plus "default" for the fallback plan every other project resolves to;
// used by C9's profile discovery surface (spec §4.9).
func (p *DefaultMountPlanProvider) ProfileIDs() []string {
	out := make([]string, 0, len(p.overrides)+1)
	out = append(out, "default")
	for projectID := range p.overrides {
		out = append(out, projectID)
	}
	sort.Strings(out[1:])
	return out
}
