package provider

import "fmt"

// convert implements spec §4.4 "Message conversion": system messages
// become the wire request's Instructions; developer messages are wrapped
// as a <context_file> user message; tool-role messages fold into a
// "[Tool: <name>]\n<content>" user message for backends without a native
// tool-result role; assistant messages reconstruct text + tool-call
// structure.
func convert(messages []Message) (instructions string, converted []WireMessage) {
	var instructionParts []string

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			instructionParts = append(instructionParts, m.Content)

		case RoleDeveloper:
			converted = append(converted, WireMessage{
				Role:    RoleUser,
				Content: fmt.Sprintf("<context_file>%s</context_file>", m.Content),
			})

		case RoleTool:
			name := m.Name
			if name == "" {
				name = "tool"
			}
			converted = append(converted, WireMessage{
				Role:    RoleUser,
				Content: fmt.Sprintf("[Tool: %s]\n%s", name, m.Content),
			})

		case RoleAssistant:
			wm := WireMessage{Role: RoleAssistant}
			if m.HasBlocks() {
				var text string
				for _, b := range m.Blocks {
					switch v := b.(type) {
					case TextBlock:
						text += v.Text
					case ToolCallBlock:
						wm.ToolCalls = append(wm.ToolCalls, v)
					}
				}
				wm.Content = text
			} else {
				wm.Content = m.Content
			}
			converted = append(converted, wm)

		default: // user, or any unrecognised role passes through verbatim
			converted = append(converted, WireMessage{Role: RoleUser, Content: m.Content})
		}
	}

	return joinInstructions(instructionParts), converted
}

func joinInstructions(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}
