package server

import (
	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/server/handler"
)

// NewRouter creates and configures the Gin router with all routes. The
// facade maps one-to-one onto /v1.
func NewRouter(appCtx *app.Context, cfg *Config) *gin.Engine {
	r := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	auth := TokenAuth(cfg.APIToken)

	v1 := r.Group("/v1", auth)
	{
		// Vault
		v1.POST("/vault/init", handler.HandleInitVault(appCtx))
		v1.POST("/vault/unlock", handler.HandleUnlockVault(appCtx))
		v1.POST("/vault/lock", handler.HandleLockVault(appCtx))
		v1.GET("/vault/status", handler.HandleVaultStatus(appCtx))

		// Accounts
		v1.POST("/accounts/import/current", handler.HandleImportCurrent(appCtx))
		v1.POST("/accounts/import/file", handler.HandleImportFromFile(appCtx))
		v1.POST("/accounts/import/login", handler.HandleImportViaLogin(appCtx))
		v1.GET("/accounts", handler.HandleListAccounts(appCtx))
		v1.PUT("/accounts/:id", handler.HandleUpdateAccountMeta(appCtx))
		v1.DELETE("/accounts/:id", handler.HandleDeleteAccount(appCtx))

		// Switch
		v1.POST("/switch/:id", handler.HandleSwitchAccount(appCtx))
		v1.POST("/rollback/:history_id", handler.HandleRollback(appCtx))
		v1.GET("/history", handler.HandleListHistory(appCtx))

		// Quota
		v1.POST("/quota/refresh", handler.HandleRefreshQuota(appCtx))
		v1.GET("/quota/dashboard", handler.HandleQuotaDashboard(appCtx))
		v1.GET("/quota/snapshots/:id", handler.HandleListSnapshots(appCtx))
		v1.PUT("/quota/policy", handler.HandleSetRefreshPolicy(appCtx))

		// Diagnostics
		v1.GET("/diagnostics", handler.HandleRuntimeDiagnostics(appCtx))
		v1.GET("/cli/status", handler.HandleCliStatus(appCtx))
	}

	return r
}
