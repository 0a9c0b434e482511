package client

import "time"

// Conversation as returned by GET /api/conversations
type Conversation struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	SystemPrompt string    `json:"systemPrompt"`
	LastMessage  string    `json:"lastMessage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message as returned by GET /api/conversations/:id/messages
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// PromptPreset is one of the server's preset system prompts
type PromptPreset struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	SystemPrompt   string `json:"systemPrompt,omitempty"`
	Title          string `json:"title,omitempty"`
}

// Event is one frame of the chat stream
type Event struct {
	Content string `json:"content,omitempty"`

	ConversationID string `json:"conversationId,omitempty"`
	GenerationID   string `json:"generationId,omitempty"`

	Done    bool   `json:"done,omitempty"`
	Stopped bool   `json:"stopped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Outcome is how a chat stream ended as seen by the client
type Outcome string

const (
	OutcomeDone         Outcome = "done"
	OutcomeStopped      Outcome = "stopped"
	OutcomeFailed       Outcome = "failed"
	OutcomeDisconnected Outcome = "disconnected"
)

// ChatResult summarises a finished stream
type ChatResult struct {
	ConversationID string
	GenerationID   string
	Reply          string
	Outcome        Outcome
	Error          string
}
