package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"team-chat/internal/auth"
	"team-chat/internal/models"
)

const viewerContextKey = "viewer"

// AuthMiddleware validates the Authorization header and stores the
// authenticated viewer record on the request context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := auth.ValidateToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(viewerContextKey, claims.User())
		c.Next()
	}
}

// Viewer returns the authenticated user stored by AuthMiddleware.
func Viewer(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(viewerContextKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok && user.ID != ""
}

// SetViewer stores a viewer on the context; test helper for handler tests.
func SetViewer(c *gin.Context, user models.User) {
	c.Set(viewerContextKey, user)
}
