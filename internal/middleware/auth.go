package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/auth"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/util"
	"go.uber.org/zap"
)

// AuthMiddleware verifies the bearer token and stores the caller's identity.
// A missing header is 401; a token that fails verification is 403.
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			util.RespondUnauthorized(c)
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Log.Debug("Token verification failed",
				logger.WithIP(c.ClientIP()),
				zap.Error(err),
			)
			util.RespondForbidden(c, "Unauthorized: Invalid token")
			return
		}

		c.Set(util.ContextUserID, identity.UID)
		c.Set(util.ContextIdentity, identity)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
