package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

// GojaScriptRunner executes hook handlers written as small JavaScript
// snippets via goja (spec §4.1 "scripted handlers", optional capability).
// Each script is expected to export a function:
//
//	module.exports = function(event) { return { action: "continue" } }
//
// action is one of "continue", "deny", "modify", "inject_context"; deny
// scripts set reason, modify scripts set data (and optionally reason),
// inject_context scripts set text/role/ephemeral.
type GojaScriptRunner struct {
	logger  zerolog.Logger
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]string
}

// NewGojaScriptRunner constructs a runner with the given per-invocation
// timeout (defaults to 5s when zero).
func NewGojaScriptRunner(logger zerolog.Logger, timeout time.Duration) *GojaScriptRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GojaScriptRunner{logger: logger, timeout: timeout, cache: make(map[string]string)}
}

// Run implements ScriptRunner.
func (g *GojaScriptRunner) Run(ctx context.Context, scriptPath string, event Event) (Result, error) {
	source, err := g.read(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("hooks: load script %s: %w", scriptPath, err)
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("hooks: marshal event data: %w", err)
	}

	wrapped := fmt.Sprintf(`
		(function() {
			var module = { exports: {} };
			var exports = module.exports;
			%s
			var __handler = module.exports;
			if (typeof __handler !== "function") {
				throw new Error("script must export a function");
			}
			return __handler({ name: %q, data: %s });
		})()
	`, source, event.Name, string(payload))

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt("hook script timed out")
		case <-done:
		}
	}()

	value, err := vm.RunString(wrapped)
	close(done)
	if err != nil {
		return nil, fmt.Errorf("hooks: script %s: %w", scriptPath, err)
	}

	var raw map[string]any
	if err := vm.ExportTo(value, &raw); err != nil {
		return Continue{}, nil
	}
	return decodeScriptResult(raw), nil
}

func (g *GojaScriptRunner) read(path string) (string, error) {
	g.mu.Lock()
	if src, ok := g.cache[path]; ok {
		g.mu.Unlock()
		return src, nil
	}
	g.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	src := string(content)

	g.mu.Lock()
	g.cache[path] = src
	g.mu.Unlock()
	return src, nil
}

func decodeScriptResult(raw map[string]any) Result {
	action, _ := raw["action"].(string)
	switch action {
	case "deny":
		reason, _ := raw["reason"].(string)
		return Deny{Reason: reason}
	case "modify":
		data, _ := raw["data"].(map[string]any)
		reason, _ := raw["reason"].(string)
		return Modify{Data: data, Reason: reason}
	case "inject_context":
		text, _ := raw["text"].(string)
		role, _ := raw["role"].(string)
		ephemeral, _ := raw["ephemeral"].(bool)
		appendToLast, _ := raw["append_to_last_tool_result"].(bool)
		suppress, _ := raw["suppress_output"].(bool)
		return InjectContext{
			Text:                   text,
			Role:                   role,
			Ephemeral:              ephemeral,
			AppendToLastToolResult: appendToLast,
			SuppressOutput:         suppress,
		}
	default:
		return Continue{}
	}
}
