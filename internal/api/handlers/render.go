package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/services"
)

type RenderHandler struct {
	renders *services.RenderService
	logger  *zap.Logger
}

func NewRenderHandler(renders *services.RenderService, logger *zap.Logger) *RenderHandler {
	return &RenderHandler{
		renders: renders,
		logger:  logger.With(zap.String("handler", "render")),
	}
}

// Print composites the current annotation set regardless of session
// status; used for in-progress previews.
func (h *RenderHandler) Print(c *gin.Context) {
	h.render(c, false)
}

// Final composites the closed annotation set. Rejected until the session
// reaches signed or returned.
func (h *RenderHandler) Final(c *gin.Context) {
	h.render(c, true)
}

func (h *RenderHandler) render(c *gin.Context, final bool) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out, err := h.renders.Composite(c.Request.Context(), c.Param("id"), rec, final)
	if err != nil {
		abortWithError(c, err)
		return
	}

	// Audit metadata travels in headers, never inside the PDF content.
	c.Header("X-Signature-Count", strconv.Itoa(out.SignatureCount))
	if out.Signer != "" {
		c.Header("X-Signer", out.Signer)
		c.Header("X-Signed-At", out.SignedAt)
	}
	c.Header("Content-Disposition", `inline; filename="`+out.FileName+`"`)
	c.Data(http.StatusOK, "application/pdf", out.PDF)
}
