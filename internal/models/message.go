package models

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation turn as produced by the chat page.
type Message struct {
	Role    Role   `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// LatestContent returns the content of the last message, or "" for an empty history.
// The role of that message is not checked.
func LatestContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
