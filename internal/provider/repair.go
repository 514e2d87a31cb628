package provider

// repairInfo describes one synthesized tool-result the repair pass added.
type repairInfo struct {
	ToolCallID string
	ToolName   string
}

// repairToolSequences scans messages for ToolCall blocks in assistant
// messages lacking a matching tool-role message and synthesizes one,
// appending the synthesized messages after the last message, so every
// ToolCall has a subsequent matching tool-result before any upstream call
// (spec §4.4 "Pre-flight repair").
func repairToolSequences(messages []Message) ([]Message, []repairInfo) {
	calls := make(map[string]string) // tool_call_id -> tool name, in first-seen order
	var order []string
	satisfied := make(map[string]bool)

	for _, m := range messages {
		if m.Role == RoleAssistant {
			for _, b := range m.Blocks {
				if tc, ok := b.(ToolCallBlock); ok {
					if _, seen := calls[tc.ID]; !seen {
						order = append(order, tc.ID)
					}
					calls[tc.ID] = tc.Name
				}
			}
		}
		if m.Role == RoleTool && m.ToolCallID != "" {
			satisfied[m.ToolCallID] = true
		}
	}

	var repairs []repairInfo
	for _, id := range order {
		if !satisfied[id] {
			repairs = append(repairs, repairInfo{ToolCallID: id, ToolName: calls[id]})
		}
	}
	if len(repairs) == 0 {
		return messages, nil
	}

	out := make([]Message, len(messages), len(messages)+len(repairs))
	copy(out, messages)
	for _, r := range repairs {
		out = append(out, Message{
			Role:       RoleTool,
			Content:    "[system error] no result was recorded for this tool call; treating as failed",
			ToolCallID: r.ToolCallID,
			Name:       r.ToolName,
		})
	}
	return out, repairs
}
