package middleware

import (
	"net/http"
	"strings"

	"github.com/Cramiac/SyncTunes/internal/services"

	"github.com/gin-gonic/gin"
)

// MemberAuth validates the member token issued on create/join and puts the
// room and member ids on the request context.
func MemberAuth(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		roomID, memberID, err := tokens.ValidateMemberToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("room_id", roomID)
		c.Set("member_id", memberID)
		c.Next()
	}
}
