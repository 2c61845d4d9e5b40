package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/models"
	"github.com/tesouraria/church_backend/utils"
)

// SessionHeader carries the opaque token issued by login.
const SessionHeader = "token"

// SessionMiddleware resolves the session token into a username. Requests without the header pass through.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get(SessionHeader)
		if token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		username, exists, err := models.ResolveSessionUsername(ctx, token)
		if err != nil {
			// a redis outage is reported as an expired session
			cid, _ := utils.GetCorrelationIdFromContext(ctx)
			config.LogError(config.GetLogger(), "sessionMiddleware.go", "SessionMiddleware", "resolve session", cid, err)
		}
		if err != nil || !exists || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": utils.MsgUnauthenticated})
			c.Abort()
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUsernameInContext(ctx, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
