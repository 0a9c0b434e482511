package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/models"
	"github.com/localmind/backend/internal/util"
	"go.uber.org/zap"
)

// ListConversations returns the caller's conversations, newest first, optionally
// filtered by a case-insensitive title substring.
// GET /api/conversations?search=
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	conversations, err := h.repo.ListConversations(c.Request.Context(), userID, c.Query("search"))
	if err != nil {
		logger.Log.Error("Failed to list conversations", logger.WithUserID(userID), zap.Error(err))
		util.RespondInternalError(c, "Failed to fetch conversations")
		return
	}
	if conversations == nil {
		conversations = []*models.Conversation{}
	}

	c.JSON(http.StatusOK, conversations)
}

// GetConversationMessages returns a conversation's messages in order.
// GET /api/conversations/:id/messages
func (h *Handlers) GetConversationMessages(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	conversationID := c.Param("id")

	if _, err := h.repo.GetOwnedConversation(c.Request.Context(), conversationID, userID); util.HandleOwnershipError(c, err, "conversation") {
		return
	}

	messages, err := h.repo.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		logger.Log.Error("Failed to list messages", logger.WithConversationID(conversationID), zap.Error(err))
		util.RespondInternalError(c, "Failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	c.JSON(http.StatusOK, messages)
}

// DeleteConversation removes a conversation and all of its messages.
// DELETE /api/conversations/:id
func (h *Handlers) DeleteConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	conversationID := c.Param("id")

	if _, err := h.repo.GetOwnedConversation(c.Request.Context(), conversationID, userID); util.HandleOwnershipError(c, err, "conversation") {
		return
	}

	if err := h.repo.DeleteConversation(c.Request.Context(), conversationID); err != nil {
		logger.Log.Error("Failed to delete conversation", logger.WithConversationID(conversationID), zap.Error(err))
		util.RespondInternalError(c, "Failed to delete conversation")
		return
	}

	logger.Log.Info("Conversation deleted", logger.WithConversationID(conversationID), logger.WithUserID(userID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
