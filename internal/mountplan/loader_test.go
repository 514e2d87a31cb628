package mountplan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(t *testing.T) MountPlan {
	t.Helper()
	toolCfg, err := json.Marshal(map[string]any{})
	require.NoError(t, err)
	return MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers: []MountPoint{
			{Kind: MountEmbedded, Name: "http_json", Config: json.RawMessage(`{"endpoint":"http://localhost:9999","model":"test"}`)},
		},
		Tools: []MountPoint{
			{Kind: MountEmbedded, Name: "echo", Config: toolCfg},
			{Kind: MountEmbedded, Name: "read_file"},
		},
		Hooks: []MountPoint{
			{Kind: MountEmbedded, Name: "audit_log", Priority: 50},
		},
	}
}

func newTestRegistry(logger zerolog.Logger) *Registry {
	reg := NewRegistry()
	RegisterBuiltins(reg, logger, nil)
	return reg
}

func TestLoader_Build_MountsEveryGroup(t *testing.T) {
	reg := newTestRegistry(zerolog.Nop())
	loader := NewLoader(reg, zerolog.Nop())

	coord, cleanup, err := loader.Build(context.Background(), testPlan(t), t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, coord)
	defer cleanup()

	assert.Contains(t, coord.ProviderNames(), "http_json")
	_, ok := coord.Tools().Get("echo")
	assert.True(t, ok)
	_, ok = coord.Tools().Get("read_file")
	assert.True(t, ok)
}

func TestLoader_Build_InjectsAmplifiedDirIntoToolConfig(t *testing.T) {
	reg := newTestRegistry(zerolog.Nop())
	loader := NewLoader(reg, zerolog.Nop())
	dir := t.TempDir()

	plan := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers: []MountPoint{
			{Kind: MountEmbedded, Name: "http_json", Config: json.RawMessage(`{"endpoint":"http://x"}`)},
		},
		Tools: []MountPoint{{Kind: MountEmbedded, Name: "read_file"}},
	}

	coord, cleanup, err := loader.Build(context.Background(), plan, dir)
	require.NoError(t, err)
	defer cleanup()

	tool, ok := coord.Tools().Get("read_file")
	require.True(t, ok)
	rf, ok := tool.(*readFileTool)
	require.True(t, ok)
	assert.Equal(t, dir, rf.root)
}

func TestLoader_Build_RejectsUnknownModule(t *testing.T) {
	reg := newTestRegistry(zerolog.Nop())
	loader := NewLoader(reg, zerolog.Nop())

	plan := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers:    []MountPoint{{Kind: MountEmbedded, Name: "nonexistent"}},
	}
	_, _, err := loader.Build(context.Background(), plan, t.TempDir())
	assert.Error(t, err)
}

func TestMountPlan_Validate_RequiresOrchestratorAndProvider(t *testing.T) {
	assert.Error(t, (MountPlan{}).Validate())

	plan := MountPlan{Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"}}
	assert.Error(t, plan.Validate(), "at least one provider is required")

	plan.Providers = []MountPoint{{Kind: MountEmbedded, Name: "http_json"}}
	assert.NoError(t, plan.Validate())
}

func TestMountPlan_Validate_ReferencedRequiresSourcePath(t *testing.T) {
	plan := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers:    []MountPoint{{Kind: MountReferenced, Name: "custom"}},
	}
	assert.Error(t, plan.Validate())
}

func TestMountPlan_Validate_FormatVersion(t *testing.T) {
	base := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers:    []MountPoint{{Kind: MountEmbedded, Name: "http_json"}},
	}

	noVersion := base
	assert.NoError(t, noVersion.Validate(), "empty format_version is legacy data, always accepted")

	compatible := base
	compatible.FormatVersion = "1.2.0"
	assert.NoError(t, compatible.Validate())

	incompatible := base
	incompatible.FormatVersion = "2.0.0"
	assert.Error(t, incompatible.Validate())

	malformed := base
	malformed.FormatVersion = "not-a-version"
	assert.Error(t, malformed.Validate())
}

func TestMountPlan_Validate_ModuleMinVersion(t *testing.T) {
	plan := MountPlan{
		Orchestrator: MountPoint{Kind: MountEmbedded, Name: "default"},
		Providers: []MountPoint{
			{Kind: MountEmbedded, Name: "http_json", Version: "1.4.0", MinVersion: "1.2.0"},
		},
	}
	assert.NoError(t, plan.Validate())

	plan.Providers[0].Version = "1.1.0"
	assert.Error(t, plan.Validate(), "module older than its declared minimum must fail validation")
}
