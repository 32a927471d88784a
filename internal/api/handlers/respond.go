package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jgarciait/aqsign-demo-sub001/internal/identity"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

// abortWithError maps domain errors onto HTTP statuses and a stable error
// code, so clients can tell "already completed" from "not found" from plain
// bad input.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, signing.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, signing.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
	case errors.Is(err, signing.ErrAlreadyInTerminalState):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "already_completed"})
	case errors.Is(err, signing.ErrAlreadySent):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "already_sent"})
	case errors.Is(err, signing.ErrNotSent):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "not_sent"})
	case errors.Is(err, signing.ErrNotYetSigned):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "not_yet_signed"})
	case errors.Is(err, signing.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "conflict"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
	}
}

// recipientFromToken decodes the request's recipient token. The token is
// carried in the query string for GETs and form posts alike.
func recipientFromToken(c *gin.Context) (identity.Recipient, error) {
	return identity.DecodeToken(c.Query("token"))
}
