package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/auth"
)

// AuthMiddleware validates the Authorization header through the
// authentication gate and stores the resolved user id in the context.
func AuthMiddleware(gate auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := gate.Authenticate(c.Request.Context(), header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
