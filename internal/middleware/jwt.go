package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coldline/backend/internal/auth"
	"github.com/coldline/backend/pkg/response"
)

const (
	// ContextUserID is the key for the admin user ID in gin context.
	ContextUserID = "user_id"
	// ContextUsername is the key for the admin username in gin context.
	ContextUsername = "username"
)

// JWT returns a middleware that validates the bearer token and sets admin
// claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}
