// Package session implements the session and stream manager (spec
// component C6): per-session event fan-out, a lazily-constructed
// orchestrator runner, and the send_message/execute_sync/subscribe
// operations exposed to the HTTP boundary.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/provider"
	"github.com/agentrt/agentd/internal/store"
)

// Transcript persists a session's message log through store.SessionStore
// and satisfies orchestrator.Transcript. It keeps an in-memory mirror so
// Messages/Len don't re-read the JSONL file on every call; the mirror is
// populated lazily from disk on first use so a freshly-loaded session
// picks up whatever was persisted by an earlier process.
type Transcript struct {
	mu        sync.Mutex
	sessions  *store.SessionStore
	sessionID string
	messages  []provider.Message
	loaded    bool
}

// NewTranscript constructs a Transcript for sessionID backed by sessions.
func NewTranscript(sessions *store.SessionStore, sessionID string) *Transcript {
	return &Transcript{sessions: sessions, sessionID: sessionID}
}

func (t *Transcript) ensureLoaded() error {
	if t.loaded {
		return nil
	}
	entries, err := t.sessions.ReadTranscript(t.sessionID)
	if err != nil {
		return err
	}
	messages := make([]provider.Message, 0, len(entries))
	for _, e := range entries {
		if isCompactionMarker(e) {
			continue
		}
		messages = append(messages, messageFromEntry(e))
	}
	t.messages = messages
	t.loaded = true
	return nil
}

// Append persists msg and mirrors it into the in-memory message list.
func (t *Transcript) Append(ctx context.Context, msg provider.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureLoaded(); err != nil {
		return apperr.Internal("load transcript", err)
	}
	entry := entryFromMessage(msg)
	if err := t.sessions.AppendTranscript(t.sessionID, entry); err != nil {
		return err
	}
	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a copy of the current working transcript.
func (t *Transcript) Messages(ctx context.Context) ([]provider.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureLoaded(); err != nil {
		return nil, apperr.Internal("load transcript", err)
	}
	out := make([]provider.Message, len(t.messages))
	copy(out, t.messages)
	return out, nil
}

// Len reports the in-memory message count, loading from disk if needed.
func (t *Transcript) Len(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.ensureLoaded()
	return len(t.messages)
}

// ReplaceAll swaps the working transcript for a compacted one. Since the
// persisted transcript is append-only, compaction is recorded as a marker
// entry rather than a rewrite; a process restart that re-reads the full
// JSONL will see the pre-compaction messages again, which only affects
// token usage on the next turn, not correctness.
func (t *Transcript) ReplaceAll(ctx context.Context, messages []provider.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	marker := store.TranscriptEntry{
		Timestamp: time.Now(),
		Role:      provider.RoleSystem,
		Content:   "[transcript compacted]",
		Metadata:  map[string]any{"compaction": true, "message_count": len(messages)},
	}
	if err := t.sessions.AppendTranscript(t.sessionID, marker); err != nil {
		return apperr.Internal("append compaction marker", err)
	}
	out := make([]provider.Message, len(messages))
	copy(out, messages)
	t.messages = out
	t.loaded = true
	return nil
}

func isCompactionMarker(e store.TranscriptEntry) bool {
	if e.Metadata == nil {
		return false
	}
	v, ok := e.Metadata["compaction"]
	return ok && v == true
}

func entryFromMessage(m provider.Message) store.TranscriptEntry {
	entry := store.TranscriptEntry{
		Timestamp:  time.Now(),
		Role:       m.Role,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
		Metadata:   m.Metadata,
	}
	if len(m.Blocks) > 0 {
		entry.Content = blocksToJSON(m.Blocks)
	} else {
		entry.Content = m.Content
	}
	return entry
}

func messageFromEntry(e store.TranscriptEntry) provider.Message {
	msg := provider.Message{
		Role:       e.Role,
		ToolCallID: e.ToolCallID,
		Name:       e.Name,
		Metadata:   e.Metadata,
	}
	switch c := e.Content.(type) {
	case string:
		msg.Content = c
	case []any:
		msg.Blocks = blocksFromJSON(c)
	case []map[string]any:
		raw := make([]any, len(c))
		for i, m := range c {
			raw[i] = m
		}
		msg.Blocks = blocksFromJSON(raw)
	}
	return msg
}

func blocksToJSON(blocks []provider.ContentBlock) []map[string]any {
	out := make([]map[string]any, len(blocks))
	for i, b := range blocks {
		switch v := b.(type) {
		case provider.TextBlock:
			out[i] = map[string]any{"type": "text", "text": v.Text}
		case provider.ThinkingBlock:
			out[i] = map[string]any{
				"type": "thinking", "thinking": v.Thinking, "signature": v.Signature,
				"visibility": string(v.Visibility), "encrypted": v.Encrypted, "reasoning_id": v.ReasoningID,
			}
		case provider.ToolCallBlock:
			out[i] = map[string]any{"type": "tool_call", "id": v.ID, "name": v.Name, "input": v.Input}
		case provider.ReasoningBlock:
			out[i] = map[string]any{
				"type": "reasoning", "summary": v.Summary, "content": v.Content, "visibility": string(v.Visibility),
			}
		default:
			out[i] = map[string]any{"type": "unknown"}
		}
	}
	return out
}

func blocksFromJSON(raw []any) []provider.ContentBlock {
	out := make([]provider.ContentBlock, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch asString(m["type"]) {
		case "text":
			out = append(out, provider.TextBlock{Text: asString(m["text"])})
		case "thinking":
			out = append(out, provider.ThinkingBlock{
				Thinking:    asString(m["thinking"]),
				Signature:   asString(m["signature"]),
				Visibility:  provider.ThinkingVisibility(asString(m["visibility"])),
				Encrypted:   asBool(m["encrypted"]),
				ReasoningID: asString(m["reasoning_id"]),
			})
		case "tool_call":
			input, _ := m["input"].(map[string]any)
			out = append(out, provider.ToolCallBlock{ID: asString(m["id"]), Name: asString(m["name"]), Input: input})
		case "reasoning":
			out = append(out, provider.ReasoningBlock{
				Summary: asString(m["summary"]), Content: asString(m["content"]),
				Visibility: provider.ThinkingVisibility(asString(m["visibility"])),
			})
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
