package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classlive/backend/internal/auth"
	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/response"
)

const (
	// ContextIdentity is the key for the authenticated identity in gin context.
	ContextIdentity = "identity"
	// ContextUserRole is the key for the platform role in gin context.
	ContextUserRole = "user_role"
)

// JWT returns a middleware that validates the bearer token and stores the
// caller's identity in the request context. Unauthenticated calls never reach
// component logic.
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
		c.Set(ContextIdentity, models.Identity{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
			Role:        claims.Role,
		})
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// Identity returns the authenticated identity stored by the JWT middleware.
func Identity(c *gin.Context) models.Identity {
	return c.MustGet(ContextIdentity).(models.Identity)
}
