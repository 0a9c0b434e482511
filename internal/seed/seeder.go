// Package seed fills the conversation store with fake chats for local development.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/models"
	"github.com/localmind/backend/internal/repository"
	"go.uber.org/zap"
)

const (
	conversationsPerUser = 5
	minMessages          = 10
	maxMessages          = 15
	messageGap           = 5 * time.Minute
)

// Seeder handles database seeding operations
type Seeder struct {
	repo  repository.ConversationRepository
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewSeeder creates a seeder. seed 0 picks a random seed.
func NewSeeder(repo repository.ConversationRepository, seed uint64) *Seeder {
	return &Seeder{
		repo:  repo,
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// Seed creates conversations of alternating user and assistant messages owned by uid
func (s *Seeder) Seed(ctx context.Context, uid string) ([]*models.Conversation, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", repository.ErrInvalidInput)
	}

	created := make([]*models.Conversation, 0, conversationsPerUser)
	for i := 0; i < conversationsPerUser; i++ {
		conv, err := s.seedConversation(ctx, uid)
		if err != nil {
			return created, fmt.Errorf("failed to seed conversation %d: %w", i+1, err)
		}
		created = append(created, conv)
		logger.Log.Info("Seeded conversation",
			logger.WithConversationID(conv.ID),
			zap.String("title", conv.Title),
		)
	}
	return created, nil
}

func (s *Seeder) seedConversation(ctx context.Context, uid string) (*models.Conversation, error) {
	now := s.now()
	// leave room for every message to land before now
	start := s.faker.DateRange(now.AddDate(0, 0, -7), now.Add(-maxMessages*messageGap))

	conv := &models.Conversation{
		OwnerID:   uid,
		Title:     s.title(),
		CreatedAt: start,
		UpdatedAt: start,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	count := s.faker.IntRange(minMessages, maxMessages)
	for j := 0; j < count; j++ {
		msg := &models.Message{
			ConversationID: conv.ID,
			OwnerID:        uid,
			Role:           models.RoleUser,
			Timestamp:      start.Add(time.Duration(j+1) * messageGap),
		}
		if j%2 == 0 {
			msg.Content = s.faker.HipsterSentence()
		} else {
			msg.Role = models.RoleAssistant
			msg.Content = s.paragraph()
		}
		// AppendMessage keeps lastMessage and updatedAt in step
		if err := s.repo.AppendMessage(ctx, msg); err != nil {
			return nil, err
		}
		conv.LastMessage = msg.Content
	}
	return conv, nil
}

func (s *Seeder) title() string {
	words := make([]string, s.faker.IntRange(2, 4))
	for i := range words {
		words[i] = s.faker.Word()
	}
	title := strings.Join(words, " ")
	return strings.ToUpper(title[:1]) + title[1:]
}

func (s *Seeder) paragraph() string {
	sentences := make([]string, s.faker.IntRange(3, 6))
	for i := range sentences {
		sentences[i] = s.faker.HipsterSentence()
	}
	return strings.Join(sentences, " ")
}

// Wipe removes every conversation and message owned by uid
func (s *Seeder) Wipe(ctx context.Context, uid string) (int64, error) {
	if uid == "" {
		return 0, fmt.Errorf("%w: uid is required", repository.ErrInvalidInput)
	}
	n, err := s.repo.DeleteOwnerData(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe data for %s: %w", uid, err)
	}
	logger.Log.Info("Wiped seed data", logger.WithUserID(uid), zap.Int64("conversations", n))
	return n, nil
}
