package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/metrics"
	"github.com/tesouraria/church_backend/models"
	"github.com/tesouraria/church_backend/utils"
)

// requirePrincipal answers 401 when the request carries no authenticated principal.
func requirePrincipal(c *gin.Context) (*models.Principal, bool) {
	principal, ok := models.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": utils.MsgUnauthenticated})
		return nil, false
	}
	return principal, true
}

// respondError maps err to its status and localized message. Unexpected errors are logged
// with the request's correlation id and never shown to the client.
func respondError(c *gin.Context, operation string, err error) {
	status, message := utils.ResolveError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		actor, _ := utils.GetUserNameFromContext(ctx)
		config.GetLogger().WithFields(logrus.Fields{
			"field":          operation,
			"correlation_id": cid,
			"actor":          actor,
		}).Error(err.Error())
	}
	c.JSON(status, gin.H{"error": message})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
		return 0, false
	}
	return id, true
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		info, err := models.Login(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "login", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requirePrincipal(c); !ok {
			return
		}
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, "logout", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

func createLaunchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var input models.NewLaunch
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		launch, err := models.CreateLaunch(c.Request.Context(), principal, &input)
		if err != nil {
			respondError(c, "createLaunch", err)
			return
		}
		c.JSON(http.StatusCreated, launch)
	}
}

func listLaunchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var filter models.LaunchFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		launches, err := models.ListLaunches(c.Request.Context(), principal, &filter)
		if err != nil {
			respondError(c, "listLaunches", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launches": launches})
	}
}

func getLaunchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		launch, err := models.GetLaunch(c.Request.Context(), principal, id)
		if err != nil {
			respondError(c, "getLaunch", err)
			return
		}
		c.JSON(http.StatusOK, launch)
	}
}

func cancelLaunchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		launch, err := models.CancelLaunch(c.Request.Context(), principal, id)
		if err != nil {
			respondError(c, "cancelLaunch", err)
			return
		}
		c.JSON(http.StatusOK, launch)
	}
}

func createSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var input models.NewCongregationSummary
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		result, err := models.CreateSummary(c.Request.Context(), principal, &input)
		if err != nil {
			status, _ := utils.ResolveError(err)
			metrics.RecordSummaryRejected("create", status)
			respondError(c, "createSummary", err)
			return
		}
		metrics.RecordSummaryCreated(string(result.Summary.SummaryType), len(result.Launches))
		c.JSON(http.StatusCreated, result)
	}
}

func listSummariesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var filter models.SummaryFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		summaries, err := models.ListSummaries(c.Request.Context(), principal, &filter)
		if err != nil {
			respondError(c, "listSummaries", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summaries": summaries})
	}
}

func getSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		summary, err := models.GetSummary(c.Request.Context(), principal, id)
		if err != nil {
			respondError(c, "getSummary", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func updateSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var input models.UpdateCongregationSummary
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		summary, transitions, err := models.UpdateSummary(c.Request.Context(), principal, &input)
		if err != nil {
			status, _ := utils.ResolveError(err)
			metrics.RecordSummaryRejected("update", status)
			respondError(c, "updateSummary", err)
			return
		}
		for _, t := range transitions {
			metrics.RecordApprovalTransition(t.Tier, t.Forward)
		}
		c.JSON(http.StatusOK, summary)
	}
}

func deleteSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		id, err := strconv.Atoi(c.Query("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgMissingFields})
			return
		}
		message, err := models.DeleteSummary(c.Request.Context(), principal, id)
		if err != nil {
			status, _ := utils.ResolveError(err)
			metrics.RecordSummaryRejected("delete", status)
			respondError(c, "deleteSummary", err)
			return
		}
		metrics.RecordSummaryDeleted()
		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}

func summaryAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var filter models.SummaryAuditFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.MsgInvalidRequest})
			return
		}
		report, err := models.LoadSummaryAudit(c.Request.Context(), principal, &filter)
		if err != nil {
			respondError(c, "summaryAudit", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
