package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/app"
)

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// HandleInitVault handles POST /v1/vault/init.
func HandleInitVault(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := appCtx.InitVault(req.Password); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleUnlockVault handles POST /v1/vault/unlock.
func HandleUnlockVault(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := appCtx.UnlockVault(req.Password); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleLockVault handles POST /v1/vault/lock.
func HandleLockVault(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := appCtx.LockVault(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleVaultStatus handles GET /v1/vault/status.
func HandleVaultStatus(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := appCtx.VaultStatus()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
