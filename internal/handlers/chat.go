package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/chat"
	apierrors "github.com/localmind/backend/internal/errors"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/metrics"
	"github.com/localmind/backend/internal/relay"
	"github.com/localmind/backend/internal/repository"
	"github.com/localmind/backend/internal/util"
	"go.uber.org/zap"
)

// Chat stores the user's message and streams the model's reply as server-sent events.
// Validation, ownership and capacity errors are plain JSON responses; once the stream
// is open, failures arrive as an error frame.
// POST /api/chat
func (h *Handlers) Chat(c *gin.Context) {
	identity, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	var req chat.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}

	gen, err := h.chat.Prepare(c.Request.Context(), identity, req)
	if err != nil {
		h.respondPrepareError(c, err)
		return
	}

	gen.Run(startSSE(c))
}

func (h *Handlers) respondPrepareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		util.RespondBadRequest(c, "Message is required")
	case errors.Is(err, relay.ErrTooManyGenerations):
		util.RespondWithAPIError(c, apierrors.TooManyGenerations(h.maxActivePerUser))
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrForbidden):
		util.HandleRepoError(c, err, "conversation")
	default:
		logger.Log.Error("Failed to start chat turn",
			logger.WithUserID(c.GetString(util.ContextUserID)),
			zap.Error(err),
		)
		util.RespondInternalError(c, "Processing failed")
	}
}

// StopGeneration cancels one of the caller's running generations, wherever it runs.
// POST /api/chat/:generationId/stop
func (h *Handlers) StopGeneration(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	generationID := c.Param("generationId")
	stops := metrics.Get().Chat.StopRequestsTotal

	result, err := h.chat.Registry().Stop(c.Request.Context(), generationID, userID)
	switch {
	case errors.Is(err, relay.ErrGenerationNotFound):
		stops.WithLabelValues("not_found").Inc()
		util.RespondNotFound(c, "generation")
		return
	case errors.Is(err, relay.ErrNotOwner):
		stops.WithLabelValues("forbidden").Inc()
		util.RespondForbidden(c, "Unauthorized")
		return
	case err != nil:
		stops.WithLabelValues("error").Inc()
		logger.Log.Error("Failed to stop generation",
			logger.WithGenerationID(generationID),
			logger.WithUserID(userID),
			zap.Error(err),
		)
		util.RespondInternalError(c, "Failed to stop generation")
		return
	}

	stops.WithLabelValues(string(result)).Inc()
	c.JSON(http.StatusAccepted, gin.H{
		"stopped":      true,
		"generationId": generationID,
		"via":          result,
	})
}
