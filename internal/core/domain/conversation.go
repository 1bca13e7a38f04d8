package domain

// Role tags a conversation turn. Explicit enum rather than inferring the role
// from the message shape.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry in the bounded turn history. Turns are
// append-only and always alternate user/assistant.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
