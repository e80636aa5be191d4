package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/app"
)

// HandleRuntimeDiagnostics handles GET /v1/diagnostics.
func HandleRuntimeDiagnostics(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		diag, err := appCtx.RuntimeDiagnostics(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, diag)
	}
}

// HandleCliStatus handles GET /v1/cli/status.
func HandleCliStatus(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := appCtx.CliStatus(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
