package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/repository"
)

// HandleRepoError maps repository errors to HTTP responses.
// Returns true if the error was handled (and response was sent), false otherwise.
func HandleRepoError(c *gin.Context, err error, resourceName string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		RespondNotFound(c, resourceName)
	case errors.Is(err, repository.ErrForbidden):
		RespondForbidden(c, "Unauthorized")
	default:
		RespondInternalError(c, "Failed to fetch "+resourceName)
	}
	return true
}

// HandleOwnershipError is HandleRepoError for routes that must not reveal whether
// someone else's resource exists: missing and foreign both answer 403.
func HandleOwnershipError(c *gin.Context, err error, resourceName string) bool {
	if errors.Is(err, repository.ErrNotFound) {
		err = repository.ErrForbidden
	}
	return HandleRepoError(c, err, resourceName)
}
