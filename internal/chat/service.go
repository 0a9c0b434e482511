// Package chat runs one chat turn: conversation bookkeeping, prompt assembly,
// the streamed relay and persistence of the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localmind/backend/internal/auth"
	"github.com/localmind/backend/internal/config"
	"github.com/localmind/backend/internal/inference"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/metrics"
	"github.com/localmind/backend/internal/models"
	"github.com/localmind/backend/internal/relay"
	"github.com/localmind/backend/internal/repository"
	"github.com/localmind/backend/internal/telemetry"
	"github.com/localmind/backend/internal/util"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage rejects requests without text
	ErrEmptyMessage = errors.New("message is required")
)

// persistTimeout bounds writes that run after the client may have gone away
const persistTimeout = 10 * time.Second

// Options configure the service
type Options struct {
	DefaultSystemPrompt   string
	HistoryLimit          int
	GenerationTimeout     time.Duration
	PersistPartialReplies bool
}

// SendRequest is the body of POST /api/chat
type SendRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	SystemPrompt   string `json:"systemPrompt,omitempty"`
	Title          string `json:"title,omitempty"`
}

// Service handles chat turns
type Service struct {
	repo     repository.ConversationRepository
	client   inference.Client
	registry *relay.Registry
	relay    *relay.Relay
	opts     Options
}

// NewService wires a chat service
func NewService(repo repository.ConversationRepository, client inference.Client, registry *relay.Registry, opts Options) *Service {
	r := relay.New()
	r.OnChunk = func() { metrics.Get().Chat.ChunksStreamed.Inc() }

	if opts.DefaultSystemPrompt == "" {
		opts.DefaultSystemPrompt = config.DefaultSystemPrompt
	}

	return &Service{
		repo:     repo,
		client:   client,
		registry: registry,
		relay:    r,
		opts:     opts,
	}
}

// Registry exposes the generation registry for the stop endpoint
func (s *Service) Registry() *relay.Registry {
	return s.registry
}

// Generation is a prepared chat turn whose user message is already stored
type Generation struct {
	ID             string
	ConversationID string
	Created        bool

	svc      *Service
	identity *auth.Identity
	request  context.Context // the client's request; ends when it disconnects
	ctx      context.Context // request ctx plus explicit stop
	release  func()
	messages []inference.Message
}

// Prepare validates the request, resolves or creates the conversation, stores the
// user message and registers the generation. Errors returned here happen before any
// stream is opened: ErrEmptyMessage, repository.ErrNotFound, repository.ErrForbidden,
// relay.ErrTooManyGenerations or a storage error.
// The caller must Run or Release the returned generation.
func (s *Service) Prepare(ctx context.Context, identity *auth.Identity, req SendRequest) (*Generation, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	var (
		conv    *models.Conversation
		created bool
		err     error
	)
	if req.ConversationID != "" {
		conv, err = s.repo.GetOwnedConversation(ctx, req.ConversationID, identity.UID)
		if err != nil {
			return nil, err
		}
	}

	genCtx, genID, release, err := s.registry.Start(ctx, identity.UID)
	if err != nil {
		return nil, err
	}

	if conv == nil {
		conv = &models.Conversation{
			OwnerID:      identity.UID,
			Title:        req.Title,
			SystemPrompt: req.SystemPrompt,
		}
		if conv.Title == "" {
			conv.Title = util.DeriveTitle(req.Message)
		}
		if conv.SystemPrompt == "" {
			conv.SystemPrompt = s.opts.DefaultSystemPrompt
		}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			release()
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		created = true
	}

	userMsg := &models.Message{
		ConversationID: conv.ID,
		OwnerID:        identity.UID,
		Role:           models.RoleUser,
		Content:        req.Message,
	}
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		release()
		metrics.Get().Chat.PersistFailuresTotal.WithLabelValues(string(models.RoleUser)).Inc()
		if created {
			if delErr := s.repo.DeleteConversation(context.WithoutCancel(ctx), conv.ID); delErr != nil {
				logger.Log.Warn("Failed to roll back new conversation",
					logger.WithUserID(identity.UID),
					logger.WithConversationID(conv.ID),
					zap.Error(delErr),
				)
			}
		}
		return nil, fmt.Errorf("save user message: %w", err)
	}

	messages, err := s.buildPrompt(ctx, conv, userMsg)
	if err != nil {
		release()
		return nil, err
	}

	return &Generation{
		ID:             genID,
		ConversationID: conv.ID,
		Created:        created,
		svc:            s,
		identity:       identity,
		request:        ctx,
		ctx:            genCtx,
		release:        release,
		messages:       messages,
	}, nil
}

// Send prepares and runs a turn in one call, for callers whose sink needs no setup
// between the two. The HTTP handler calls Prepare and Run separately so that it can
// answer with a JSON error before committing to an event stream.
func (s *Service) Send(ctx context.Context, identity *auth.Identity, req SendRequest, sink relay.Sink) (relay.Result, error) {
	gen, err := s.Prepare(ctx, identity, req)
	if err != nil {
		return relay.Result{}, err
	}
	return gen.Run(sink), nil
}

// buildPrompt is the system prompt followed by the most recent turns, which end
// with the user message just stored.
func (s *Service) buildPrompt(ctx context.Context, conv *models.Conversation, userMsg *models.Message) ([]inference.Message, error) {
	systemPrompt := conv.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.opts.DefaultSystemPrompt
	}
	messages := []inference.Message{{Role: inference.RoleSystem, Content: systemPrompt}}

	history, err := s.repo.RecentMessages(ctx, conv.ID, s.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	for _, m := range history {
		// rows with equal timestamps can sort either way; the new message always goes last
		if m.ID == userMsg.ID || m.Role == models.RoleSystem || m.Content == "" {
			continue
		}
		messages = append(messages, inference.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, inference.Message{Role: inference.RoleUser, Content: userMsg.Content})
	return messages, nil
}

// Messages is the prompt that will be sent upstream
func (g *Generation) Messages() []inference.Message {
	return g.messages
}

// Release frees the generation slot without running it
func (g *Generation) Release() {
	g.release()
}

// Run streams the reply into sink and stores it according to the outcome.
func (g *Generation) Run(sink relay.Sink) relay.Result {
	defer g.release()
	s := g.svc
	chatMetrics := metrics.Get().Chat

	fields := []zap.Field{
		logger.WithUserID(g.identity.UID),
		logger.WithConversationID(g.ConversationID),
		logger.WithGenerationID(g.ID),
	}

	ctx := g.ctx
	if s.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.GenerationTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartGenerationSpan(ctx, g.ConversationID, g.ID, s.client.Model())

	res := g.stream(ctx, sink)

	switch res.Outcome {
	case relay.OutcomeCompleted:
		if err := g.persistAssistant(res.Content, models.MessageComplete); err != nil {
			logger.Log.Error("Failed to save assistant reply", append(fields, zap.Error(err))...)
			res.Outcome = relay.OutcomeFailed
			res.Err = err
			_ = sink.Send(ErrorFrame{Error: ProcessingFailed})
			break
		}
		_ = sink.Send(DoneFrame{Done: true, ConversationID: g.ConversationID})

	case relay.OutcomeCancelled:
		if s.opts.PersistPartialReplies && res.Content != "" {
			if err := g.persistAssistant(res.Content, models.MessagePartial); err != nil {
				logger.Log.Warn("Failed to save partial reply", append(fields, zap.Error(err))...)
			}
		}
		if res.Stopped() && g.request.Err() == nil {
			_ = sink.Send(StoppedFrame{Stopped: true, ConversationID: g.ConversationID})
		}

	case relay.OutcomeFailed:
		logger.Log.Error("Generation failed", append(fields, zap.Error(res.Err))...)
		if g.request.Err() == nil {
			_ = sink.Send(ErrorFrame{Error: ProcessingFailed})
		}
	}

	telemetry.EndGenerationSpan(span, string(res.Outcome), res.Chunks, res.Err)
	chatMetrics.GenerationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	chatMetrics.GenerationDuration.WithLabelValues(string(res.Outcome)).Observe(res.Duration.Seconds())
	if res.Chunks > 0 {
		chatMetrics.TimeToFirstToken.Observe(res.FirstTokenAfter.Seconds())
	}

	logger.Log.Info("Generation finished", append(fields,
		logger.WithOutcome(string(res.Outcome)),
		zap.Int("chunks", res.Chunks),
		zap.Int("chars", len(res.Content)),
		logger.WithDuration(res.Duration),
	)...)

	return res
}

// stream sends the meta frame, opens the upstream request and relays it.
func (g *Generation) stream(ctx context.Context, sink relay.Sink) relay.Result {
	s := g.svc

	if err := sink.Send(MetaFrame{ConversationID: g.ConversationID, GenerationID: g.ID}); err != nil {
		return relay.Result{Outcome: relay.OutcomeCancelled, Err: fmt.Errorf("%w: %v", relay.ErrSinkClosed, err)}
	}

	started := time.Now()
	upstream, err := s.client.StreamChat(ctx, inference.ChatRequest{Messages: g.messages})
	if err != nil {
		res := relay.Result{Outcome: relay.OutcomeFailed, Err: err, Duration: time.Since(started)}
		if ctx.Err() != nil && !errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
			res.Outcome = relay.OutcomeCancelled
			res.Err = context.Cause(ctx)
		}
		return res
	}

	return s.relay.Run(ctx, upstream, sink)
}

// persistAssistant stores the reply with a context detached from the request, so a
// client that disconnects right after the last token does not lose it.
func (g *Generation) persistAssistant(content string, status models.MessageStatus) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(g.request), persistTimeout)
	defer cancel()

	err := g.svc.repo.AppendMessage(ctx, &models.Message{
		ConversationID: g.ConversationID,
		OwnerID:        g.identity.UID,
		Role:           models.RoleAssistant,
		Content:        content,
		Status:         status,
	})
	if err != nil {
		metrics.Get().Chat.PersistFailuresTotal.WithLabelValues(string(models.RoleAssistant)).Inc()
	}
	return err
}
