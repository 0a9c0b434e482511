package chat

// SSE payloads sent around the relayed content frames

// MetaFrame is the first frame of every stream
type MetaFrame struct {
	ConversationID string `json:"conversationId"`
	GenerationID   string `json:"generationId"`
}

// DoneFrame follows a completed and saved reply
type DoneFrame struct {
	Done           bool   `json:"done"`
	ConversationID string `json:"conversationId"`
}

// StoppedFrame acknowledges an explicit stop while the client is still listening
type StoppedFrame struct {
	Stopped        bool   `json:"stopped"`
	ConversationID string `json:"conversationId"`
}

// ErrorFrame reports a failed generation
type ErrorFrame struct {
	Error string `json:"error"`
}

// ProcessingFailed is the only error text clients ever see inside a stream
const ProcessingFailed = "Processing failed"
