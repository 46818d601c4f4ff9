package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dfryer1193/racblog/account/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const identityKey = "identity"

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAuth rejects requests without a session the authenticator accepts.
func RequireAuth(auth domain.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		identity, err := auth.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrAuth) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("Failed to verify session")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session check failed"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity RequireAuth stored on the context.
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok
}
