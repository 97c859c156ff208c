package domain

// Role identifies the author of a message in the panel log.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a provider-side chat session bound to one assistant.
type Conversation struct {
	ID string `json:"id"`
}

// Message is a single entry of the in-memory conversation log.
type Message struct {
	Role  Role
	Text  string
	Media []MediaItem
}
