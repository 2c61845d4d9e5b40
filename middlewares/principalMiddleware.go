package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/models"
	"github.com/tesouraria/church_backend/utils"
)

// PrincipalMiddleware resolves the authenticated username into a principal with its capabilities
// and congregation scope. Anonymous requests pass through; handlers reject them.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username, ok := utils.GetUsernameFromContext(ctx)
		if !ok || username == "" {
			c.Next()
			return
		}

		principal, err := models.LoadPrincipal(ctx, username)
		if err != nil {
			status, message := utils.ResolveError(err)
			if status >= 500 {
				cid, _ := utils.GetCorrelationIdFromContext(ctx)
				config.GetLogger().WithFields(logrus.Fields{
					"field":          "PrincipalMiddleware",
					"username":       username,
					"correlation_id": cid,
				}).Error(err.Error())
			}
			c.JSON(status, gin.H{"error": message})
			c.Abort()
			return
		}

		ctx = models.NewContextWithPrincipal(ctx, principal)
		ctx = utils.SetUserIdInContext(ctx, principal.UserId)
		ctx = utils.SetUserNameInContext(ctx, principal.ActorName())
		ctx = utils.SetCongregationScopeInContext(ctx, principal.CongregationIds, principal.Capabilities.AllCongregations)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
