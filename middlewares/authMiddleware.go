package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tesouraria/church_backend/utils"
)

// AuthMiddleware accepts "Authorization: Bearer <jwt>" as an alternative to the session token header.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": utils.MsgUnauthenticated})
			c.Abort()
			return
		}
		claims, err := utils.JwtValidate(strings.TrimSpace(auth[len(bearer):]))
		if err != nil || claims.Username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": utils.MsgUnauthenticated})
			c.Abort()
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), claims.Username)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
