package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func chunk(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "local-model",
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]any{"content": content},
			"finish_reason": nil,
		}},
	}
	raw, _ := json.Marshal(payload)
	return "data: " + string(raw) + "\n\n"
}

type OpenAIClientTestSuite struct {
	suite.Suite
	server   *httptest.Server
	handler  http.HandlerFunc
	lastBody map[string]any
	calls    atomic.Int32
}

func (s *OpenAIClientTestSuite) SetupTest() {
	s.calls.Store(0)
	s.lastBody = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if r.URL.Path == "/v1/chat/completions" {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &s.lastBody)
		}
		s.handler(w, r)
	}))
}

func (s *OpenAIClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *OpenAIClientTestSuite) client(threshold uint32) *OpenAIClient {
	return NewOpenAIClient(Config{
		BaseURL:          s.server.URL + "/v1/",
		Model:            "local-model",
		Temperature:      0.7,
		HTTPClient:       s.server.Client(),
		FailureThreshold: threshold,
		OpenTimeout:      time.Minute,
	})
}

func sse(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, f := range frames {
		_, _ = io.WriteString(w, f)
		w.(http.Flusher).Flush()
	}
}

func (s *OpenAIClientTestSuite) TestStreamsContentDeltas() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		sse(w,
			`data: {"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant"}}]}`+"\n\n",
			chunk("Hel"),
			chunk("lo"),
			chunk(""),
			"data: [DONE]\n\n",
		)
	}

	stream, err := s.client(5).StreamChat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "again"},
		},
	})
	s.Require().NoError(err)
	defer stream.Close()

	var got []string
	for stream.Next() {
		got = append(got, stream.Delta())
	}
	s.NoError(stream.Err())
	s.Equal([]string{"Hel", "lo"}, got)

	s.Equal("local-model", s.lastBody["model"])
	s.Equal(true, s.lastBody["stream"])
	s.InDelta(0.7, s.lastBody["temperature"], 0.0001)
	msgs := s.lastBody["messages"].([]any)
	s.Len(msgs, 4)
	s.Equal("system", msgs[0].(map[string]any)["role"])
	s.Equal("assistant", msgs[2].(map[string]any)["role"])
}

func (s *OpenAIClientTestSuite) TestMalformedFramesAreSkipped() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		sse(w,
			chunk("Hel"),
			`data: {"choices":[{"delta":{"content":"trunc`+"\n\n",
			"data: not json at all\n\n",
			chunk("lo"),
			"data: [DONE]\n\n",
		)
	}

	stream, err := s.client(1).StreamChat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	s.Require().NoError(err)

	var got []string
	for stream.Next() {
		got = append(got, stream.Delta())
	}
	s.NoError(stream.Err())
	s.Equal([]string{"Hel", "lo"}, got)
	s.NoError(stream.Close())
}

func (s *OpenAIClientTestSuite) TestErrorEventFailsStream() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		sse(w,
			chunk("par"),
			`data: {"error":{"message":"model crashed"}}`+"\n\n",
			chunk("never"),
		)
	}

	stream, err := s.client(5).StreamChat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	s.Require().NoError(err)

	var got []string
	for stream.Next() {
		got = append(got, stream.Delta())
	}
	s.Equal([]string{"par"}, got)
	s.ErrorContains(stream.Err(), "model crashed")
	s.NoError(stream.Close())
}

func (s *OpenAIClientTestSuite) TestStreamEndsAtDoneMarker() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		sse(w, chunk("a"), "data: [DONE]\n\n", chunk("after"))
	}

	stream, err := s.client(5).StreamChat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	s.Require().NoError(err)
	s.True(stream.Next())
	s.Equal("a", stream.Delta())
	s.False(stream.Next())
	s.False(stream.Next())
	s.NoError(stream.Err())
	s.NoError(stream.Close())
}

func (s *OpenAIClientTestSuite) TestRequestOverrides() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		sse(w, "data: [DONE]\n\n")
	}

	temp := 0.1
	stream, err := s.client(5).StreamChat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "x"}},
		Model:       "other",
		Temperature: &temp,
	})
	s.Require().NoError(err)
	s.False(stream.Next())
	s.NoError(stream.Close())

	s.Equal("other", s.lastBody["model"])
	s.InDelta(0.1, s.lastBody["temperature"], 0.0001)
}

func (s *OpenAIClientTestSuite) TestHTTPErrorSurfacesOnOpen() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}

	_, err := s.client(5).StreamChat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	s.Error(err)
	s.Equal(int32(1), s.calls.Load(), "streams must not be retried")
}

func (s *OpenAIClientTestSuite) TestBreakerOpensAfterConsecutiveFailures() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	c := s.client(2)
	req := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}}

	for i := 0; i < 2; i++ {
		_, err := c.StreamChat(context.Background(), req)
		s.Require().Error(err)
		s.False(errors.Is(err, ErrUpstreamUnavailable))
	}

	_, err := c.StreamChat(context.Background(), req)
	s.ErrorIs(err, ErrUpstreamUnavailable)
	s.Equal(int32(2), s.calls.Load(), "open breaker must not reach the server")
}

func (s *OpenAIClientTestSuite) TestCallerCancelDoesNotTripBreaker() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		sse(w, chunk("a"))
		<-r.Context().Done()
	}
	c := s.client(1)
	req := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}}

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := c.StreamChat(ctx, req)
		s.Require().NoError(err, fmt.Sprintf("attempt %d", i))
		s.True(stream.Next())
		cancel()
		for stream.Next() {
		}
		s.Error(stream.Err())
		s.NoError(stream.Close())
	}
}

func TestOpenAIClientTestSuite(t *testing.T) {
	suite.Run(t, new(OpenAIClientTestSuite))
}

func TestMockClient(t *testing.T) {
	m := &MockClient{Deltas: []string{"a", "b"}, StreamErr: errors.New("boom")}

	stream, err := m.StreamChat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)

	var got []string
	for stream.Next() {
		got = append(got, stream.Delta())
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.EqualError(t, stream.Err(), "boom")
	assert.Equal(t, "q", m.LastRequest().Messages[0].Content)
}
