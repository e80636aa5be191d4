package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/store"
)

type refreshRequest struct {
	AccountID string `json:"account_id"`
	Force     bool   `json:"force"`
}

// HandleRefreshQuota handles POST /v1/quota/refresh. An empty account_id
// refreshes every account.
func HandleRefreshQuota(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		snaps, err := appCtx.RefreshQuota(c.Request.Context(), req.AccountID, req.Force)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snaps)
	}
}

// HandleQuotaDashboard handles GET /v1/quota/dashboard.
func HandleQuotaDashboard(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := appCtx.QuotaDashboard()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// HandleListSnapshots handles GET /v1/quota/snapshots/:id?limit=N.
func HandleListSnapshots(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		snaps, err := appCtx.ListSnapshots(c.Param("id"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snaps)
	}
}

// HandleSetRefreshPolicy handles PUT /v1/quota/policy.
func HandleSetRefreshPolicy(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var policy store.QuotaPolicy
		if err := c.ShouldBindJSON(&policy); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := appCtx.SetRefreshPolicy(policy); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
