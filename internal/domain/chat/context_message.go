package chat

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContextMessage is a role/content pair sent to the model. Never persisted.
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
