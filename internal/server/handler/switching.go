package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/app"
)

type switchRequest struct {
	ForceRestart *bool `json:"force_restart"`
}

// HandleSwitchAccount handles POST /v1/switch/:id. force_restart falls back
// to the configured default when omitted.
func HandleSwitchAccount(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req switchRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		forceRestart := appCtx.Config.Switch.ForceRestartDefault
		if req.ForceRestart != nil {
			forceRestart = *req.ForceRestart
		}

		result, err := appCtx.SwitchAccount(c.Request.Context(), c.Param("id"), forceRestart)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleRollback handles POST /v1/rollback/:history_id.
func HandleRollback(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := appCtx.Rollback(c.Request.Context(), c.Param("history_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleListHistory handles GET /v1/history?limit=N.
func HandleListHistory(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		history, err := appCtx.ListHistory(limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}
