package mountplan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/approval"
	"github.com/agentrt/agentd/internal/coordinator"
	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/provider"
	"github.com/agentrt/agentd/internal/store"
	"github.com/agentrt/agentd/internal/tools"
)

// RegisterBuiltins installs the module factories this daemon ships with:
// a generic HTTP/JSON provider, a sandboxed file-read tool, an echo tool
// for diagnostics, a stdlib orchestrator/context-manager slot filler, an
// audit-logging hook, and the approval hook (spec §3/§5/§7). auditLog is
// the daemon-wide approval audit log every mounted approval hook appends
// its decisions to; cmd/agentd registers these once at startup before any
// mount plan is loaded.
func RegisterBuiltins(reg *Registry, logger zerolog.Logger, auditLog *store.ApprovalAuditLog) {
	reg.RegisterOrchestrator("default", func(mp MountPoint) (coordinator.Orchestrator, error) {
		return namedOrchestrator(mp.Name), nil
	})
	reg.RegisterContextManager("default", func(mp MountPoint) (coordinator.ContextManager, error) {
		return namedContextManager(mp.Name), nil
	})

	reg.RegisterProvider("http_json", func(mp MountPoint, emitter provider.HookEmitter) (provider.Provider, error) {
		var cfg httpJSONProviderConfig
		if len(mp.Config) > 0 {
			if err := json.Unmarshal(mp.Config, &cfg); err != nil {
				return nil, fmt.Errorf("mount plan: provider %q config: %w", mp.Name, err)
			}
		}
		backend := provider.NewHTTPJSONBackend(provider.HTTPJSONConfig{
			Name:     mp.Name,
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Timeout:  cfg.timeout(),
		})
		return provider.NewAdapter(backend, emitter, provider.DefaultAdapterConfig()), nil
	})

	reg.RegisterTool("echo", func(mp MountPoint, cfg map[string]any) (tools.Tool, error) {
		return &echoTool{}, nil
	})
	reg.RegisterTool("read_file", func(mp MountPoint, cfg map[string]any) (tools.Tool, error) {
		dir, _ := cfg["amplified_dir"].(string)
		if dir == "" {
			return nil, fmt.Errorf("mount plan: read_file tool requires amplified_dir")
		}
		return &readFileTool{root: dir}, nil
	})

	reg.RegisterHook("audit_log", func(mp MountPoint, emitter provider.HookEmitter) (string, hooks.HandlerFunc, error) {
		var cfg auditHookConfig
		if len(mp.Config) > 0 {
			if err := json.Unmarshal(mp.Config, &cfg); err != nil {
				return "", nil, fmt.Errorf("mount plan: hook %q config: %w", mp.Name, err)
			}
		}
		if cfg.Event == "" {
			cfg.Event = "tool:post"
		}
		return cfg.Event, auditLogHandler(logger), nil
	})

	reg.RegisterHook("approval", func(mp MountPoint, emitter provider.HookEmitter) (string, hooks.HandlerFunc, error) {
		var cfg approvalHookConfig
		if len(mp.Config) > 0 {
			if err := json.Unmarshal(mp.Config, &cfg); err != nil {
				return "", nil, fmt.Errorf("mount plan: hook %q config: %w", mp.Name, err)
			}
		}
		hook := approval.New(cfg.toApprovalConfig(), nil, emitter, auditLog)
		return hooks.ToolPre, hook.HandleToolPre, nil
	})
}

// namedOrchestrator and namedContextManager satisfy the coordinator's
// minimal slot interfaces (Name() string); the turn-driving
// orchestrator.Runner is constructed separately at the session layer from
// the Coordinator these slots are mounted on (see runner_builder.go).
type namedOrchestrator string

func (n namedOrchestrator) Name() string { return string(n) }

type namedContextManager string

func (n namedContextManager) Name() string { return string(n) }

type httpJSONProviderConfig struct {
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_seconds"`
}

func (c httpJSONProviderConfig) timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// echoTool returns its input verbatim; useful for wiring/diagnostic mount
// plans and integration tests that need a deterministic tool.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes its input arguments back as the result." }
func (echoTool) InputSchema() map[string]any {
	return map[string]any{"type": "object", "additionalProperties": true}
}
func (echoTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	return tools.Success(args), nil
}

// readFileTool reads a UTF-8 text file relative to root, rejecting any
// path that escapes it, so a mounted file tool can't be used to read
// outside the session's amplified directory.
type readFileTool struct{ root string }

func (t *readFileTool) Name() string { return "read_file" }
func (t *readFileTool) Description() string {
	return "Reads a text file relative to the session's working directory."
}
func (t *readFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *readFileTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	rel, _ := args["path"].(string)
	if rel == "" {
		return tools.Failure("invalid_args", "path is required"), nil
	}
	resolved := filepath.Join(t.root, rel)
	if !strings.HasPrefix(resolved, filepath.Clean(t.root)+string(os.PathSeparator)) && resolved != filepath.Clean(t.root) {
		return tools.Failure("invalid_args", "path escapes the session working directory"), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Failure("io_error", err.Error()), nil
	}
	return tools.Success(string(data)), nil
}

type auditHookConfig struct {
	Event string `json:"event"`
}

// approvalHookConfig is the mount plan's JSON config for the "approval"
// builtin: which tools always need a decision, bash auto-approve/auto-deny
// glob rules (config.py's DEFAULT_RULES), and the per-request timeout
// (spec §5 "Approval requests may carry a per-request timeout").
type approvalHookConfig struct {
	RequireApproval    []string         `json:"require_approval_tools"`
	AutoApproveRules   []approvalRuleJSON `json:"auto_approve_rules"`
	AutoDenyRules      []approvalRuleJSON `json:"auto_deny_rules"`
	TimeoutSeconds     int              `json:"timeout_seconds"`
	DisableDefaultDeny bool             `json:"disable_default_deny_rules"`
}

type approvalRuleJSON struct {
	Tool    string `json:"tool"`
	Pattern string `json:"pattern"`
}

func (c approvalHookConfig) toApprovalConfig() approval.Config {
	deny := make([]approval.Rule, 0, len(c.AutoDenyRules)+len(approval.DefaultDenyRules()))
	if !c.DisableDefaultDeny {
		deny = append(deny, approval.DefaultDenyRules()...)
	}
	for _, r := range c.AutoDenyRules {
		deny = append(deny, approval.Rule{Tool: r.Tool, Pattern: r.Pattern})
	}
	approve := make([]approval.Rule, 0, len(c.AutoApproveRules))
	for _, r := range c.AutoApproveRules {
		approve = append(approve, approval.Rule{Tool: r.Tool, Pattern: r.Pattern})
	}
	var timeout time.Duration
	if c.TimeoutSeconds > 0 {
		timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	return approval.Config{
		RequireApproval: c.RequireApproval,
		AutoApprove:     approve,
		AutoDeny:        deny,
		Timeout:         timeout,
	}
}

// auditLogHandler logs every occurrence of its bound event at debug level,
// matching the spec's "tool:pre/tool:post" observability surface without
// denying or modifying anything (a pure observer).
func auditLogHandler(logger zerolog.Logger) hooks.HandlerFunc {
	return func(ctx context.Context, event hooks.Event) (hooks.Result, error) {
		logger.Debug().Str("event", event.Name).Interface("data", event.Data).Msg("mounted hook observed event")
		return hooks.Continue{}, nil
	}
}
