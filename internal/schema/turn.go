package schema

import "strings"

// Role is the speaker of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a turn's content.
//
//   - text:        Text
//   - tool_use:    ID, Name, Input
//   - tool_result: ToolUseID, Content, IsError
type ContentBlock struct {
	Type      BlockType      `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Turn is one role-tagged unit of conversation.
type Turn struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

func NewTextTurn(role Role, text string) Turn {
	return Turn{Role: role, Content: []ContentBlock{TextBlock(text)}}
}

// IsPlainText reports whether every block in t is a text block.
func (t Turn) IsPlainText() bool {
	for _, b := range t.Content {
		if b.Type != BlockText {
			return false
		}
	}
	return true
}

// Text joins the text blocks of t with newlines.
func (t Turn) Text() string {
	parts := make([]string, 0, len(t.Content))
	for _, b := range t.Content {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool_use blocks of t as invocations, in order.
func (t Turn) ToolUses() []ToolInvocation {
	var out []ToolInvocation
	for _, b := range t.Content {
		if b.Type == BlockToolUse {
			out = append(out, ToolInvocation{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return out
}

// Clone returns a copy of t with an independent block slice.
func (t Turn) Clone() Turn {
	blocks := make([]ContentBlock, len(t.Content))
	copy(blocks, t.Content)
	return Turn{Role: t.Role, Content: blocks}
}
