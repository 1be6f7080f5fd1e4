package api

import (
	"net/http"
	"strings"

	"chat-server/auth"
	"chat-server/domain"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// RequireAuth resolves the Authorization bearer token with the same
// resolver the WebSocket core uses and aborts anonymous requests. The
// resolved identity is stored on the request context for handlers.
func RequireAuth(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		identity := resolver.Resolve(raw)
		if identity.IsAnonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "authentication required",
			})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) domain.Identity {
	value, _ := c.Get(identityKey)
	identity, _ := value.(domain.Identity)
	return identity
}
