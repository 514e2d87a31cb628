package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvert_SystemMessagesBecomeInstructions(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
	}
	instructions, converted := convert(messages)
	assert.Equal(t, "be helpful", instructions)
	assert.Len(t, converted, 1)
	assert.Equal(t, RoleUser, converted[0].Role)
}

func TestConvert_DeveloperWrappedAsContextFile(t *testing.T) {
	messages := []Message{{Role: RoleDeveloper, Content: "repo notes"}}
	_, converted := convert(messages)
	assert.Equal(t, "<context_file>repo notes</context_file>", converted[0].Content)
	assert.Equal(t, RoleUser, converted[0].Role)
}

func TestConvert_ToolMessagesFoldedWithName(t *testing.T) {
	messages := []Message{{Role: RoleTool, Name: "search", Content: "3 results"}}
	_, converted := convert(messages)
	assert.Equal(t, "[Tool: search]\n3 results", converted[0].Content)
}

func TestConvert_AssistantReconstructsTextAndToolCalls(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Blocks: []ContentBlock{
			TextBlock{Text: "checking"},
			ToolCallBlock{ID: "1", Name: "search", Input: map[string]any{"q": "x"}},
		}},
	}
	_, converted := convert(messages)
	assert.Equal(t, "checking", converted[0].Content)
	assert.Len(t, converted[0].ToolCalls, 1)
	assert.Equal(t, "search", converted[0].ToolCalls[0].Name)
}
