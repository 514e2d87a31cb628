// Package approval implements the approval hook named in spec.md's event
// universe (approval:{required,granted,denied}): a tool:pre handler that
// decides whether a tool call needs sign-off, applies auto-approve/
// auto-deny rules, and otherwise blocks on a pluggable Provider bounded by
// a per-request timeout — failing safe to deny on timeout or provider
// error, with every decision appended to the approval audit log.
//
// Grounded on the retrieval pack's amplifier_module_hooks_approval module
// (approval_hook.py's ApprovalHook, audit.py's audit_log, config.py's
// DEFAULT_RULES/check_auto_action): the same needs-approval heuristics and
// rule-matching, translated from asyncio.wait_for + a duck-typed provider
// protocol into context.Context and a Provider interface.
package approval

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/agentrt/agentd/internal/hooks"
	"github.com/agentrt/agentd/internal/store"
)

// Request is what a Provider is asked to decide on.
type Request struct {
	ToolName  string
	ToolInput map[string]any
	RiskLevel string
}

// Response is a Provider's decision on a Request.
type Response struct {
	Approved bool
	Reason   string
}

// Provider makes the human-or-policy call on a Request. Hook bounds every
// call by the configured timeout via ctx; a Provider that ignores ctx's
// deadline is still cut off from the caller's perspective (spec §5
// "Approval requests may carry a per-request timeout").
type Provider interface {
	RequestApproval(ctx context.Context, req Request) (Response, error)
}

// Rule is one auto-approve or auto-deny entry (config.py's DEFAULT_RULES).
// Tool is matched against the event's tool name ("*" or "" matches any);
// Pattern is a shell-glob matched against the bash tool's "command"
// argument (config.py's check_auto_action is bash-only).
type Rule struct {
	Tool    string
	Pattern string
}

// DefaultDenyRules mirrors config.py's DEFAULT_RULES deny entries: a
// conservative, always-on set of destructive bash patterns.
func DefaultDenyRules() []Rule {
	return []Rule{
		{Tool: "bash", Pattern: "rm -rf /"},
		{Tool: "bash", Pattern: "rm -rf /*"},
		{Tool: "bash", Pattern: "mkfs*"},
		{Tool: "bash", Pattern: ":(){:|:&};:"},
	}
}

// DefaultHighRiskTools mirrors approval_hook.py's built-in high-risk tool
// list: tools that always need a decision regardless of per-tool config.
func DefaultHighRiskTools() []string {
	return []string{"bash", "execute", "write_file", "delete_file"}
}

// DefaultTimeout bounds a Provider call when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Config configures a Hook; this is the mount plan's config payload for
// the "approval" builtin (internal/mountplan/builtins.go).
type Config struct {
	RequireApproval []string
	AutoApprove     []Rule
	AutoDeny        []Rule
	Timeout         time.Duration
}

// Emitter is the subset of hooks.Registry a Hook needs to publish
// approval:required/granted/denied alongside its tool:pre return value.
// Defined locally, mirroring tools.Executor's HookEmitter, so this package
// never has to import the session-layer registry concretely.
type Emitter interface {
	Emit(ctx context.Context, eventName string, data map[string]any) hooks.Result
}

// Hook is the mounted tool:pre handler.
type Hook struct {
	cfg      Config
	provider Provider
	emitter  Emitter
	audit    *store.ApprovalAuditLog
}

// New builds a Hook. provider, emitter, and audit may each be nil: a nil
// provider means every tool requiring approval is denied on "timeout"
// (fail-safe-deny, matching approval_hook.py's behavior when no provider
// is registered); a nil emitter/audit silently skips that side effect.
func New(cfg Config, provider Provider, emitter Emitter, audit *store.ApprovalAuditLog) *Hook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Hook{cfg: cfg, provider: provider, emitter: emitter, audit: audit}
}

// RegisterProvider swaps in the decision backend after mount
// (approval_hook.py's register_provider), letting a daemon wire an
// interactive or policy-driven provider in once one becomes available.
func (h *Hook) RegisterProvider(p Provider) { h.provider = p }

// HandleToolPre is the hooks.HandlerFunc mounted on hooks.ToolPre.
func (h *Hook) HandleToolPre(ctx context.Context, event hooks.Event) (hooks.Result, error) {
	toolName := event.String("tool_name")
	rawInput, _ := event.Get("tool_input")
	args, _ := rawInput.(map[string]any)

	if action, reason, matched := h.checkAutoAction(toolName, args); matched {
		return h.decide(ctx, toolName, action, reason), nil
	}

	if !h.needsApproval(toolName, args) {
		return hooks.Continue{}, nil
	}

	h.emit(ctx, hooks.ApprovalRequired, toolName, "")

	if h.provider == nil {
		return h.decide(ctx, toolName, "deny", "Approval request timed out"), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	resp, err := h.provider.RequestApproval(reqCtx, Request{
		ToolName:  toolName,
		ToolInput: args,
		RiskLevel: h.riskLevel(toolName, args),
	})
	if err != nil {
		reason := "Approval provider error: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			reason = "Approval request timed out"
		}
		return h.decide(ctx, toolName, "deny", reason), nil
	}
	if !resp.Approved {
		reason := resp.Reason
		if reason == "" {
			reason = "Denied by approval provider"
		}
		return h.decide(ctx, toolName, "deny", reason), nil
	}
	return h.decide(ctx, toolName, "approve", resp.Reason), nil
}

// decide records the audit entry, emits the terminal approval:* event, and
// returns the hooks.Result the tool:pre pipeline reduces on.
func (h *Hook) decide(ctx context.Context, toolName, action, reason string) hooks.Result {
	if action == "approve" {
		h.recordAudit(toolName, "granted", reason)
		h.emit(ctx, hooks.ApprovalGranted, toolName, reason)
		return hooks.Continue{}
	}
	h.recordAudit(toolName, "denied", reason)
	h.emit(ctx, hooks.ApprovalDenied, toolName, reason)
	return hooks.Deny{Reason: reason}
}

func (h *Hook) emit(ctx context.Context, eventName, toolName, reason string) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(ctx, eventName, map[string]any{"tool_name": toolName, "reason": reason})
}

func (h *Hook) recordAudit(toolName, decision, reason string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(store.ApprovalAuditEntry{
		Timestamp: time.Now().UTC(),
		ToolName:  toolName,
		Decision:  decision,
		Reason:    reason,
	})
}

// checkAutoAction mirrors config.py's check_auto_action: deny rules are
// checked before approve rules, both bash-only, matched in order with the
// first hit winning.
func (h *Hook) checkAutoAction(toolName string, args map[string]any) (action, reason string, matched bool) {
	if reason, ok := matchRules(h.cfg.AutoDeny, toolName, args); ok {
		return "deny", reason, true
	}
	if reason, ok := matchRules(h.cfg.AutoApprove, toolName, args); ok {
		return "approve", reason, true
	}
	return "", "", false
}

func matchRules(rules []Rule, toolName string, args map[string]any) (reason string, matched bool) {
	if toolName != "bash" || len(rules) == 0 {
		return "", false
	}
	command, _ := args["command"].(string)
	if command == "" {
		return "", false
	}
	for _, r := range rules {
		if r.Tool != "" && r.Tool != "*" && r.Tool != toolName {
			continue
		}
		if ok, err := path.Match(r.Pattern, command); err == nil && ok {
			return "matched rule \"" + r.Pattern + "\"", true
		}
	}
	return "", false
}

// needsApproval mirrors approval_hook.py's _needs_approval: an explicit
// per-config tool list, a built-in high-risk tool list, and a bash
// dangerous-command-substring heuristic when none of the above rules
// already decided the call.
func (h *Hook) needsApproval(toolName string, args map[string]any) bool {
	for _, t := range h.cfg.RequireApproval {
		if t == toolName {
			return true
		}
	}
	for _, t := range DefaultHighRiskTools() {
		if t == toolName {
			return true
		}
	}
	if toolName == "bash" {
		if command, _ := args["command"].(string); command != "" && hasDangerousPattern(command) {
			return true
		}
	}
	return false
}

// dangerousBashSubstrings are checked case-insensitively against a bash
// command as a last line of defense even when no explicit rule matched
// (approval_hook.py's bash dangerous-pattern heuristic).
var dangerousBashSubstrings = []string{
	"rm -rf", "mkfs", ":(){", "dd if=", "> /dev/sd", "chmod -r 777 /", "curl | sh", "wget | sh",
}

func hasDangerousPattern(command string) bool {
	lower := strings.ToLower(command)
	for _, p := range dangerousBashSubstrings {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (h *Hook) riskLevel(toolName string, args map[string]any) string {
	if toolName == "bash" {
		if command, _ := args["command"].(string); command != "" && hasDangerousPattern(command) {
			return "high"
		}
	}
	for _, t := range DefaultHighRiskTools() {
		if t == toolName {
			return "high"
		}
	}
	return "normal"
}
