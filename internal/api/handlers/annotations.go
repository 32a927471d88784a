package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/compose"
	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/services"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

type AnnotationHandler struct {
	annotations *services.AnnotationService
	signatures  *services.SignatureService
	logger      *zap.Logger
}

func NewAnnotationHandler(annotations *services.AnnotationService, signatures *services.SignatureService, logger *zap.Logger) *AnnotationHandler {
	return &AnnotationHandler{
		annotations: annotations,
		signatures:  signatures,
		logger:      logger.With(zap.String("handler", "annotation")),
	}
}

type annotationsPayload struct {
	Annotations []models.TextAnnotation `json:"annotations"`
}

// Put replaces the recipient's text annotation list in full.
func (h *AnnotationHandler) Put(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var payload annotationsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}
	if err := h.annotations.Upsert(c.Request.Context(), c.Param("id"), rec, payload.Annotations); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": len(payload.Annotations)})
}

type annotationView struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Page      int                `json:"page"`
	Recipient string             `json:"recipient"`
	Text      string             `json:"text,omitempty"`
	ImageData string             `json:"imageData,omitempty"`
	Timestamp string             `json:"timestamp,omitempty"`
	Position  annotationPosition `json:"position"`
}

type annotationPosition struct {
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	Width          float64  `json:"width"`
	Height         float64  `json:"height"`
	RelativeX      *float64 `json:"relativeX,omitempty"`
	RelativeY      *float64 `json:"relativeY,omitempty"`
	RelativeWidth  *float64 `json:"relativeWidth,omitempty"`
	RelativeHeight *float64 `json:"relativeHeight,omitempty"`
}

// Get returns the normalized annotation list for the recipient, or for
// every recipient when the aggregate token is supplied.
func (h *AnnotationHandler) Get(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	docID := c.Param("id")

	textRows, err := h.annotations.Rows(c.Request.Context(), docID, rec)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sigRows, err := h.signatures.Rows(c.Request.Context(), docID, rec)
	if err != nil {
		abortWithError(c, err)
		return
	}

	annotations := compose.FromRows(textRows, sigRows, h.logger)
	out := make([]annotationView, len(annotations))
	for i, a := range annotations {
		out[i] = annotationView{
			ID:        a.ID,
			Type:      string(a.Kind),
			Page:      a.Placement.Page,
			Recipient: a.Recipient,
			Text:      a.Text,
			ImageData: a.ImageData,
			Timestamp: a.Timestamp,
			Position: annotationPosition{
				X:              a.Placement.X,
				Y:              a.Placement.Y,
				Width:          a.Placement.Width,
				Height:         a.Placement.Height,
				RelativeX:      a.Placement.RelX,
				RelativeY:      a.Placement.RelY,
				RelativeWidth:  a.Placement.RelW,
				RelativeHeight: a.Placement.RelH,
			},
		}
	}
	c.JSON(http.StatusOK, gin.H{"annotations": out})
}
