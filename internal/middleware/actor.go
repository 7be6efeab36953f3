package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/uuid"
)

// ActorHeader carries the ID of the user performing a request. Identity is
// established upstream; this service only records who acted.
const ActorHeader = "X-Actor-ID"

// ActorKey is the Gin context key holding the actor ID.
const ActorKey = "actorID"

// RequireActor rejects requests whose actor header is missing or not a UUID
// and stores the canonical actor ID on the context for the handlers.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(ActorHeader))
		if raw == "" {
			abortUnauthorized(c, "missing "+ActorHeader+" header")
			return
		}
		actorID, err := uuid.Parse(raw)
		if err != nil {
			abortUnauthorized(c, ActorHeader+" must be a UUID")
			return
		}
		c.Set(ActorKey, actorID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	appErr := apperrors.WithMessage(apperrors.ErrUnauthorized, message)
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
