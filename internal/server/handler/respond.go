// Package handler binds the command facade to HTTP. Handlers stay thin:
// decode, call the facade, encode.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/githubbzxs/codex-switch/internal/apperr"
)

// respondError maps error kinds onto HTTP statuses and serializes the stable
// machine-readable kind next to the human-readable message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound, apperr.KindNoSnapshot, apperr.KindCliNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindDuplicate:
		status = http.StatusConflict
	case apperr.KindBadPassword:
		status = http.StatusUnauthorized
	case apperr.KindThrottled:
		status = http.StatusTooManyRequests
	case apperr.KindVaultLocked:
		status = http.StatusLocked
	}
	c.JSON(status, gin.H{"kind": string(kind), "error": err.Error()})
}
