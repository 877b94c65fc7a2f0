package model

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is the persisted state of one Slack channel or DM.
// It is owned by the conversation store and replaced as a whole under the
// conversation lock.
type Conversation struct {
	Messages []Message `json:"messages"`
	Files    []FileRef `json:"files"`
	Model    string    `json:"model,omitempty"`
	Features Features  `json:"features"`
	ToolIDs  []string  `json:"tool_ids"`
	ThreadID string    `json:"thread_id,omitempty"` // remote Assistants thread, created lazily
}

// Message is append-only once stored.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Files   []FileRef `json:"files,omitempty"`
}

// FileRef points at a file uploaded to the model backend.
type FileRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Features are the OpenWebUI per-request feature toggles.
type Features struct {
	ImageGeneration bool `json:"image_generation"`
	CodeInterpreter bool `json:"code_interpreter"`
	WebSearch       bool `json:"web_search"`
	Memory          bool `json:"memory"`
}

// NewConversation returns an empty record.
func NewConversation() *Conversation {
	return &Conversation{
		Messages: []Message{},
		Files:    []FileRef{},
		ToolIDs:  []string{},
	}
}

// Append adds a message to the history.
func (c *Conversation) Append(role Role, content string, files ...FileRef) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Files: files})
}

// AttachFiles records uploaded files on the conversation and returns their
// references for the message that carries them.
func (c *Conversation) AttachFiles(ids ...string) []FileRef {
	refs := make([]FileRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, FileRef{Type: "file", ID: id})
	}
	c.Files = append(c.Files, refs...)
	return refs
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
