package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/services"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

type SignatureHandler struct {
	signatures *services.SignatureService
	logger     *zap.Logger
}

func NewSignatureHandler(signatures *services.SignatureService, logger *zap.Logger) *SignatureHandler {
	return &SignatureHandler{
		signatures: signatures,
		logger:     logger.With(zap.String("handler", "signature")),
	}
}

// Add appends one signature for the token's recipient. A stable client
// id makes the call retry-safe.
func (h *SignatureHandler) Add(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var entry models.SignatureEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}
	saved, err := h.signatures.Add(c.Request.Context(), c.Param("id"), rec, entry)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

type consolidatedPayload struct {
	Signatures []models.SignatureEntry `json:"signatures"`
}

// PutConsolidated replaces the recipient's full signature set in one call.
func (h *SignatureHandler) PutConsolidated(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var payload consolidatedPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}
	if err := h.signatures.AddConsolidated(c.Request.Context(), c.Param("id"), rec, payload.Signatures); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": len(payload.Signatures)})
}

// PatchPosition merges a partial position update into one signature.
func (h *SignatureHandler) PatchPosition(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var patch models.PositionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}
	err = h.signatures.UpdatePosition(c.Request.Context(), c.Param("id"), rec, c.Param("sigId"), patch)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": c.Param("sigId")})
}

// Delete removes one signature; deleting the last one removes the
// recipient's row entirely.
func (h *SignatureHandler) Delete(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	err = h.signatures.DeleteOne(c.Request.Context(), c.Param("id"), rec, c.Param("sigId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("sigId")})
}

// Clear deletes the recipient's signature row; with the aggregate token it
// clears every recipient's row on the document.
func (h *SignatureHandler) Clear(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.signatures.ClearAll(c.Request.Context(), c.Param("id"), rec); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
