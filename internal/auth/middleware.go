package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codepacceproduct/clausify/internal/log"
)

const userIDContextKey = "auth_user_id"

const invalidSignatureMessage = "Assinatura inválida para o Harvey Service"

// Middleware validates the identity headers and stores the user in the context.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.Verify(c.Request.Context(),
			c.GetHeader(HeaderUserID),
			c.GetHeader(HeaderTimestamp),
			c.GetHeader(HeaderSignature),
		)
		if err != nil {
			log.FromCtx(c.Request.Context()).Warn().Err(err).
				Str("path", c.FullPath()).
				Str("user_id", c.GetHeader(HeaderUserID)).
				Msg("request rejected")
			msg := invalidSignatureMessage
			if errors.Is(err, ErrMissingIdentity) {
				msg = "authorization required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// UserIDFromContext retrieves the authenticated user id from the gin context.
func UserIDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	userID, ok := val.(string)
	return userID, ok && userID != ""
}
