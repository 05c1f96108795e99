package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainshop/chainshop-api/services"
)

// respondOK writes the success envelope.
func respondOK(c *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// respondMessage writes the error envelope with an explicit status and code.
func respondMessage(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondDomainError maps a service error onto an HTTP status by its kind, so
// clients can tell "retry with corrected input" (400) from "lost a race"
// (409) from "retry later, upstream failed" (5xx).
func respondDomainError(c *gin.Context, err error) {
	var de *services.DomainError
	if !errors.As(err, &de) {
		respondMessage(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error.")
		return
	}

	status := http.StatusBadRequest
	switch de.Kind {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindConflict:
		status = http.StatusConflict
	case services.KindChainRead, services.KindChainWrite:
		status = http.StatusBadGateway
	case services.KindChainTimeout:
		status = http.StatusGatewayTimeout
	}
	respondMessage(c, status, de.Kind.String(), de.Message)
}
