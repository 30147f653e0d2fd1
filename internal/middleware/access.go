package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/movienight/backend/pkg/response"
)

// AccessChecker validates operator tokens.
type AccessChecker interface {
	Enabled() bool
	ValidateToken(token string) error
}

// RequireAccess rejects requests without a valid operator token. The token is
// read from the Authorization header, or from the token query parameter for
// websocket upgrades. It is a no-op while the checker is disabled.
func RequireAccess(checker AccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil || !checker.Enabled() {
			c.Next()
			return
		}
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		}
		if token == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if err := checker.ValidateToken(token); err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Next()
	}
}
