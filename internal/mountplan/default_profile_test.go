package mountplan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMountPlanProvider_FallsBackWhenNoOverride(t *testing.T) {
	fallback := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers:    []MountPoint{{Kind: MountEmbedded, Name: "http_json", Config: json.RawMessage(`{}`)}},
	}
	p := NewDefaultMountPlanProvider(fallback, nil)

	profileID, plan, err := p.DefaultMountPlan(context.Background(), "unknown-project")
	require.NoError(t, err)
	assert.Equal(t, "default", profileID)
	assert.Equal(t, fallback, plan)
}

func TestDefaultMountPlanProvider_UsesPerProjectOverride(t *testing.T) {
	fallback := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers:    []MountPoint{{Kind: MountEmbedded, Name: "http_json"}},
	}
	override := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers:    []MountPoint{{Kind: MountEmbedded, Name: "http_json"}},
		Tools:        []MountPoint{{Kind: MountEmbedded, Name: "echo"}},
	}
	p := NewDefaultMountPlanProvider(fallback, map[string]MountPlan{"proj-1": override})

	_, plan, err := p.DefaultMountPlan(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, override, plan)
}

func TestDefaultMountPlanProvider_RejectsInvalidPlan(t *testing.T) {
	p := NewDefaultMountPlanProvider(MountPlan{}, nil)
	_, _, err := p.DefaultMountPlan(context.Background(), "x")
	assert.Error(t, err)
}
