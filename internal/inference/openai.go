package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/metrics"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config for the OpenAI-compatible client
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	HTTPClient  *http.Client

	// Breaker settings; zero values pick the defaults below
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// OpenAIClient streams completions through openai-go behind a circuit breaker.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	breaker     *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewOpenAIClient creates a client for the model server at cfg.BaseURL
func NewOpenAIClient(cfg Config) *OpenAIClient {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// local servers ignore the key but the SDK always sends the header
		apiKey = "not-needed"
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(apiKey),
		// a retried stream would start a second generation
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = defaultOpenTimeout
	}

	breaker := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// the caller hanging up is not the server's fault
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("Inference circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.Get().Chat.UpstreamCircuitState.Set(float64(to))
		},
	})

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		breaker:     breaker,
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// BreakerState exposes the breaker for health reporting
func (c *OpenAIClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// StreamChat starts a streamed completion. The request is sent before StreamChat returns,
// so connection and HTTP status errors surface here rather than on the first Next.
func (c *OpenAIClient) StreamChat(ctx context.Context, req ChatRequest) (TokenStream, error) {
	done, err := c.breaker.Allow()
	if err != nil {
		metrics.Get().Chat.UpstreamErrorsTotal.WithLabelValues("circuit_open").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// the SDK's typed stream gives up on the first undecodable frame, so events are
	// decoded here and bad ones skipped
	var raw *http.Response
	err = c.client.Post(ctx, "chat/completions", c.params(req), &raw, option.WithJSONSet("stream", true))
	if err != nil {
		if raw != nil && raw.Body != nil {
			_ = raw.Body.Close()
		}
		reported := breakerError(ctx, err)
		done(reported)
		if !errors.Is(reported, context.Canceled) {
			metrics.Get().Chat.UpstreamErrorsTotal.WithLabelValues(classify(err)).Inc()
		}
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	decoder := ssestream.NewDecoder(raw)
	if decoder == nil {
		err := errors.New("open completion stream: empty response")
		done(err)
		return nil, err
	}
	return &openAIStream{ctx: ctx, decoder: decoder, done: done}, nil
}

// Ping lists models, which every OpenAI-compatible server implements
func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	return err
}

func (c *OpenAIClient) params(req ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(temperature),
	}
}

var doneMarker = []byte("[DONE]")

type openAIStream struct {
	ctx     context.Context
	decoder ssestream.Decoder
	delta   string
	err     error
	ended   bool
	skipped int

	once sync.Once
	done func(err error)
}

func (s *openAIStream) Next() bool {
	if s.ended || s.err != nil {
		return false
	}

	for s.decoder.Next() {
		data := s.decoder.Event().Data
		if bytes.HasPrefix(data, doneMarker) {
			s.ended = true
			break
		}
		if e := json.Get(data, "error"); e.ValueType() != jsoniter.InvalidValue && e.ValueType() != jsoniter.NilValue {
			s.err = fmt.Errorf("received error while streaming: %s", e.ToString())
			break
		}

		var chunk openai.ChatCompletionChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			s.skipped++
			logger.Log.Debug("Skipping malformed completion frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			s.delta = content
			return true
		}
	}

	if s.err == nil && !s.ended {
		s.err = s.decoder.Err()
	}
	s.finish()
	return false
}

func (s *openAIStream) Delta() string {
	return s.delta
}

func (s *openAIStream) Err() error {
	return s.err
}

func (s *openAIStream) Close() error {
	s.finish()
	return s.decoder.Close()
}

// finish reports the stream's outcome to the breaker exactly once
func (s *openAIStream) finish() {
	s.once.Do(func() {
		if s.skipped > 0 {
			logger.Log.Warn("Skipped malformed completion frames", zap.Int("frames", s.skipped))
		}
		reported := breakerError(s.ctx, s.err)
		if reported != nil && !errors.Is(reported, context.Canceled) {
			metrics.Get().Chat.UpstreamErrorsTotal.WithLabelValues(classify(s.err)).Inc()
		}
		s.done(reported)
	})
}

// breakerError folds every failure caused by our own cancellation into
// context.Canceled, which the breaker excludes
func breakerError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return err
}

func classify(err error) string {
	var apiErr *openai.Error
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
