// README: Bearer token authentication. Puts the verified Principal on
// the gin context for handlers to read.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campusride/internal/identity"
)

const principalKey = "principal"

func Auth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		p, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the authenticated caller set by Auth.
func Principal(c *gin.Context) (identity.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return identity.Principal{}, false
	}
	p, ok := v.(identity.Principal)
	return p, ok
}
