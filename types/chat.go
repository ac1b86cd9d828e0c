package types

import "time"

// DefaultBranch is the branch every chat starts with
const DefaultBranch = "main"

// Role is the author role of a message
type Role string

// Message roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MessageKind distinguishes message payload shapes
type MessageKind string

// Message kinds
const (
	MessageKindText       MessageKind = "text"
	MessageKindFile       MessageKind = "file"
	MessageKindToolCall   MessageKind = "tool_call"
	MessageKindToolResult MessageKind = "tool_result"
)

// BranchInfo records when a branch was created and where it forked from
type BranchInfo struct {
	CreatedAt     time.Time `json:"created_at"`
	FromMessageID *string   `json:"from_message_id,omitempty"`
}

// Chat is a conversation with a branchable message graph
type Chat struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title,omitempty"`
	Summary      string                 `json:"summary,omitempty"` // Rolling conversation summary
	ActiveBranch string                 `json:"active_branch"`
	Branches     map[string]BranchInfo  `json:"branches"`
	MessageCount int                    `json:"message_count"`
	LastMessageAt *time.Time            `json:"last_message_at,omitempty"`
	Settings     map[string]interface{} `json:"settings,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	IsDeleted    bool                   `json:"is_deleted"`
	DeletedAt    *time.Time             `json:"deleted_at,omitempty"`
}

// HasBranch reports whether the named branch exists in the branch table
func (c *Chat) HasBranch(name string) bool {
	_, ok := c.Branches[name]
	return ok
}

// Message is one node of the message graph. Parent linkage is a nullable
// id, never a pointer, so branch views stay cycle-free.
type Message struct {
	ID          string                   `json:"id"`
	ChatID      string                   `json:"chat_id"`
	ParentID    *string                  `json:"parent_id,omitempty"`
	Branch      string                   `json:"branch"`
	Role        Role                     `json:"role"`
	Kind        MessageKind              `json:"message_type"`
	Content     string                   `json:"content"`
	TokenCount  int                      `json:"token_count"`
	ToolName    *string                  `json:"tool_name,omitempty"`
	ToolParams  map[string]interface{}   `json:"tool_params,omitempty"`
	ToolCallID  *string                  `json:"tool_call_id,omitempty"`
	Attachments []map[string]interface{} `json:"attachments,omitempty"`
	Sources     []Source                 `json:"sources,omitempty"`
	Metadata    map[string]interface{}   `json:"metadata,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	IsDeleted   bool                     `json:"is_deleted"`
	DeletedAt   *time.Time               `json:"deleted_at,omitempty"`
}

// ChatMessage is the minimal role/content pair sent to the text model
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToChatMessage reduces a message to the role/content pair sent to the model
func (m *Message) ToChatMessage() ChatMessage {
	return ChatMessage{Role: string(m.Role), Content: m.Content}
}

// ToChatMessages reduces a message list to model format, order preserved
func ToChatMessages(messages []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].ToChatMessage())
	}
	return out
}

// EstimateTokens approximates the token count of a string as chars/4
func EstimateTokens(text string) int {
	return len(text) / 4
}

// EstimateMessageTokens sums the estimated tokens over a message list
func EstimateMessageTokens(messages []ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
