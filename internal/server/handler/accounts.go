package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/app"
)

type importRequest struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
	Path string   `json:"path"`
}

// HandleImportCurrent handles POST /v1/accounts/import/current.
func HandleImportCurrent(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		account, err := appCtx.ImportCurrent(req.Name, req.Tags)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

// HandleImportFromFile handles POST /v1/accounts/import/file.
func HandleImportFromFile(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		account, err := appCtx.ImportFromFile(req.Path, req.Name, req.Tags)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

// HandleImportViaLogin handles POST /v1/accounts/import/login. The request
// blocks until the login flow completes or times out.
func HandleImportViaLogin(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		account, err := appCtx.ImportViaLogin(c.Request.Context(), req.Name, req.Tags)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

// HandleListAccounts handles GET /v1/accounts.
func HandleListAccounts(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := appCtx.ListAccounts()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

type updateAccountRequest struct {
	Name string   `json:"name" binding:"required"`
	Tags []string `json:"tags"`
}

// HandleUpdateAccountMeta handles PUT /v1/accounts/:id.
func HandleUpdateAccountMeta(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := appCtx.UpdateAccountMeta(c.Param("id"), req.Name, req.Tags); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleDeleteAccount handles DELETE /v1/accounts/:id.
func HandleDeleteAccount(appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := appCtx.DeleteAccount(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
