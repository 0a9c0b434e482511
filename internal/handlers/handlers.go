package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/cache"
	"github.com/localmind/backend/internal/chat"
	"github.com/localmind/backend/internal/inference"
	"github.com/localmind/backend/internal/repository"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	repo  repository.ConversationRepository
	chat  *chat.Service
	ai    inference.Client
	redis *cache.RedisClient

	aiURL            string
	maxActivePerUser int
	dbHealth         func(ctx context.Context) error
}

// Options carry the values the handlers report or need besides their collaborators
type Options struct {
	// AIURL is echoed by GET /
	AIURL            string
	MaxActivePerUser int
	// DBHealth is probed by GET /health
	DBHealth func(ctx context.Context) error
}

// NewHandlers creates a new handlers instance
func NewHandlers(repo repository.ConversationRepository, chatService *chat.Service, ai inference.Client, opts Options) *Handlers {
	return &Handlers{
		repo:             repo,
		chat:             chatService,
		ai:               ai,
		aiURL:            opts.AIURL,
		maxActivePerUser: opts.MaxActivePerUser,
		dbHealth:         opts.DBHealth,
	}
}

// SetRedisClient enables the Redis check in /health
func (h *Handlers) SetRedisClient(rc *cache.RedisClient) {
	h.redis = rc
}

// RegisterRoutes mounts every route. requireAuth guards the /api routes that act on
// a user's data; chatLimit throttles new chat turns and runs after authentication so
// it can count per user.
func (h *Handlers) RegisterRoutes(r gin.IRouter, requireAuth, chatLimit gin.HandlerFunc) {
	r.GET("/", h.Root)
	r.GET("/test", h.Test)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/prompts", h.GetPrompts)

	authed := api.Group("", requireAuth)
	{
		authed.POST("/chat", chatLimit, h.Chat)
		authed.POST("/chat/:generationId/stop", h.StopGeneration)

		authed.GET("/conversations", h.ListConversations)
		authed.GET("/conversations/:id/messages", h.GetConversationMessages)
		authed.DELETE("/conversations/:id", h.DeleteConversation)
	}
}
