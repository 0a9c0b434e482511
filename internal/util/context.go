package util

import (
	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/auth"
)

// Context keys set by the auth middleware
const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
)

// GetUserIDFromContext extracts the user ID from the Gin context.
// Returns the user ID and true if found, or empty string and false if not authenticated.
// If the user is not authenticated, it automatically responds with 401 Unauthorized.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		RespondUnauthorized(c)
		return "", false
	}
	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		RespondInternalError(c, "invalid user ID in context")
		return "", false
	}
	return userIDStr, true
}

// GetIdentityFromContext returns the verified identity placed by the auth middleware.
func GetIdentityFromContext(c *gin.Context) (*auth.Identity, bool) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		RespondUnauthorized(c)
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	if !ok {
		RespondInternalError(c, "invalid identity in context")
		return nil, false
	}
	return identity, true
}
