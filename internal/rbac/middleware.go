package rbac

import (
	"net/http"

	"github.com/Andres1439/verify-cod-orders/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireScope allows access if the caller's token carries any of the provided scopes.
// Rules:
// - admin bypasses all checks
// - a token without scopes is unauthenticated (401), a token lacking them is forbidden (403)
func RequireScope(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}

	return func(c *gin.Context) {
		scopes := auth.Scopes(c.Request.Context())
		if len(scopes) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "scopes required"})
			return
		}

		for _, s := range scopes {
			if IsAdmin(s) {
				c.Next()
				return
			}
			if _, ok := allowedSet[s]; ok {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "missing scope"})
	}
}
