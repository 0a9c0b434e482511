package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localmind/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrForbidden    = errors.New("conversation belongs to another user")
	ErrInvalidInput = errors.New("invalid input")
)

// ConversationRepository is the conversation store: conversations and their messages.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// GetOwnedConversation returns ErrNotFound or ErrForbidden when the caller may not use it.
	GetOwnedConversation(ctx context.Context, id, ownerID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, ownerID, search string) ([]*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)

	// DeleteOwnerData removes everything a user owns and returns the number of conversations removed.
	DeleteOwnerData(ctx context.Context, ownerID string) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil || conv.OwnerID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetOwnedConversation(ctx context.Context, id, ownerID string) (*models.Conversation, error) {
	conv, err := r.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(ownerID) {
		return nil, ErrForbidden
	}
	return conv, nil
}

// ListConversations returns the owner's conversations newest first.
// A non-empty search keeps only titles containing it, ignoring case.
func (r *conversationRepository) ListConversations(ctx context.Context, ownerID, search string) ([]*models.Conversation, error) {
	var convs []*models.Conversation

	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if s := strings.TrimSpace(search); s != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(s))+"%")
	}

	err := query.Order("created_at DESC").Find(&convs).Error
	return convs, err
}

// DeleteConversation removes the conversation and all of its messages atomically.
func (r *conversationRepository) DeleteConversation(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Conversation{})
		if res.Error != nil {
			return fmt.Errorf("delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage inserts the message and updates the conversation's lastMessage in one transaction.
func (r *conversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil || msg.ConversationID == "" || msg.Role == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message": msg.Content,
				"updated_at":   msg.Timestamp,
			})
		if res.Error != nil {
			return fmt.Errorf("update conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListMessages returns every message in chronological order
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	var msgs []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&msgs).Error
	return msgs, err
}

// RecentMessages returns the last limit messages, oldest first. limit <= 0 means all.
func (r *conversationRepository) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		return r.ListMessages(ctx, conversationID)
	}

	var msgs []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *conversationRepository) DeleteOwnerData(ctx context.Context, ownerID string) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("owner_id = ?", ownerID).Delete(&models.Conversation{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
