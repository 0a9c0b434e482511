// Package client talks to the LocalMind HTTP API.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const userAgent = "LocalMind-CLI/0.1.0"

// Config for a Client
type Config struct {
	BaseURL string
	Token   string
	// Timeout bounds every call except the chat stream
	Timeout time.Duration
	// Debug receives request and response traces when set
	Debug func(msg string, keyvals ...any)
}

// Client is a LocalMind API client
type Client struct {
	http    *resty.Client
	timeout time.Duration
	debug   func(msg string, keyvals ...any)
}

// New creates a client. The resty client itself has no timeout because a chat
// response streams for as long as the model writes.
func New(cfg Config) *Client {
	c := &Client{
		http:    resty.New(),
		timeout: cfg.Timeout,
		debug:   cfg.Debug,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.debug == nil {
		c.debug = func(string, ...any) {}
	}

	c.http.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	c.http.SetHeader("User-Agent", userAgent)
	c.http.JSONMarshal = json.Marshal
	c.http.JSONUnmarshal = json.Unmarshal
	if cfg.Token != "" {
		c.http.SetAuthToken(cfg.Token)
	}

	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		c.debug("HTTP request", "method", req.Method, "url", req.URL)
		return nil
	})
	c.http.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.debug("HTTP response", "status", resp.StatusCode(), "duration", resp.Time())
		return nil
	})
	return c
}

func (c *Client) request(ctx context.Context) (*resty.Request, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return c.http.R().SetContext(ctx), cancel
}

// ListConversations returns the caller's conversations, newest first
func (c *Client) ListConversations(ctx context.Context, search string) ([]Conversation, error) {
	req, cancel := c.request(ctx)
	defer cancel()

	var convs []Conversation
	if search != "" {
		req.SetQueryParam("search", search)
	}
	resp, err := req.SetResult(&convs).Get("/api/conversations")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return convs, nil
}

// Messages returns a conversation's messages in order
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	req, cancel := c.request(ctx)
	defer cancel()

	var msgs []Message
	resp, err := req.SetResult(&msgs).
		SetPathParam("id", conversationID).
		Get("/api/conversations/{id}/messages")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its messages
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	req, cancel := c.request(ctx)
	defer cancel()

	resp, err := req.SetPathParam("id", conversationID).Delete("/api/conversations/{id}")
	return checkResponse(resp, err)
}

// Stop asks the server to stop a running generation
func (c *Client) Stop(ctx context.Context, generationID string) error {
	req, cancel := c.request(ctx)
	defer cancel()

	resp, err := req.SetPathParam("generationId", generationID).Post("/api/chat/{generationId}/stop")
	return checkResponse(resp, err)
}

// Prompts lists the preset system prompts
func (c *Client) Prompts(ctx context.Context) ([]PromptPreset, error) {
	req, cancel := c.request(ctx)
	defer cancel()

	var presets []PromptPreset
	resp, err := req.SetResult(&presets).Get("/api/prompts")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return presets, nil
}

// Chat sends a message and calls onEvent for every frame of the reply.
// Cancelling ctx closes the connection, which the server treats as a disconnect.
// An error from onEvent ends the read early and is returned with the partial result.
func (c *Client) Chat(ctx context.Context, in ChatRequest, onEvent func(Event) error) (*ChatResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBody(in).
		SetDoNotParseResponse(true).
		Post("/api/chat")
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return nil, parseError(resp.StatusCode(), raw)
	}

	result := &ChatResult{Outcome: OutcomeDisconnected}
	var reply strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			c.debug("Skipping malformed frame", "payload", payload, "err", err)
			continue
		}

		switch {
		case ev.GenerationID != "":
			result.ConversationID = ev.ConversationID
			result.GenerationID = ev.GenerationID
		case ev.Done:
			result.Outcome = OutcomeDone
		case ev.Stopped:
			result.Outcome = OutcomeStopped
		case ev.Error != "":
			result.Outcome = OutcomeFailed
			result.Error = ev.Error
		default:
			reply.WriteString(ev.Content)
		}

		if onEvent != nil {
			if err := onEvent(ev); err != nil {
				result.Reply = reply.String()
				return result, err
			}
		}
	}
	result.Reply = reply.String()

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return result, fmt.Errorf("read stream: %w", err)
	}
	return result, nil
}
