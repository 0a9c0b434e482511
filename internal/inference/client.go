// Package inference talks to the OpenAI-compatible model server.
package inference

import (
	"context"
	"errors"
)

var (
	// ErrUpstreamUnavailable is returned while the circuit breaker is open.
	ErrUpstreamUnavailable = errors.New("inference server unavailable")
)

// Role values accepted by chat completion endpoints
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt turn
type Message struct {
	Role    string
	Content string
}

// ChatRequest describes one streamed completion
type ChatRequest struct {
	Messages []Message
	// Model and Temperature override the client defaults when set
	Model       string
	Temperature *float64
}

// TokenStream yields content deltas until the model finishes, fails or the context ends.
type TokenStream interface {
	// Next advances to the next non-empty delta.
	Next() bool
	Delta() string
	// Err is the error that stopped the stream, nil after a normal end.
	Err() error
	Close() error
}

// Client opens streamed chat completions
type Client interface {
	StreamChat(ctx context.Context, req ChatRequest) (TokenStream, error)
	// Ping checks the server answers at all
	Ping(ctx context.Context) error
	// Model is the default model name
	Model() string
}
