package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/services"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

type DocumentHandler struct {
	documents *services.DocumentService
	logger    *zap.Logger
}

func NewDocumentHandler(documents *services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With(zap.String("handler", "document")),
	}
}

type documentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	FileURL   string `json:"fileUrl"`
	Owner     string `json:"owner"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (h *DocumentHandler) response(doc *models.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		FileName:  doc.FileName,
		FileURL:   h.documents.PublicURL(doc),
		Owner:     doc.OwnerEmail,
		Status:    string(doc.Status),
		CreatedAt: doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: doc.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *DocumentHandler) Create(c *gin.Context) {
	owner := c.PostForm("owner")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".pdf" {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		abortWithError(c, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		abortWithError(c, err)
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), owner, filepath.Base(fileHeader.Filename), content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.response(doc))
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(doc))
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = h.response(&docs[i])
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

type sendRequest struct {
	Creator    string   `json:"creator"`
	Recipients []string `json:"recipients" binding:"required"`
}

func (h *DocumentHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, signing.ErrInvalidInput)
		return
	}
	if err := h.documents.Send(c.Request.Context(), c.Param("id"), req.Creator, req.Recipients); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(signing.StatusSent)})
}

// Sign closes the session via the multi-field flow: all required fields
// arrived in one submission and the request moves to signed.
func (h *DocumentHandler) Sign(c *gin.Context) {
	h.complete(c, signing.StatusSigned)
}

// Return closes the session via the single-signature flow: the recipient
// explicitly sends the document back and the request moves to returned.
func (h *DocumentHandler) Return(c *gin.Context) {
	h.complete(c, signing.StatusReturned)
}

func (h *DocumentHandler) complete(c *gin.Context, target signing.Status) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.documents.Complete(c.Request.Context(), c.Param("id"), rec, target); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(target)})
}

func (h *DocumentHandler) Resend(c *gin.Context) {
	rec, err := recipientFromToken(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.documents.Resend(c.Request.Context(), c.Param("id"), rec); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(signing.StatusSent)})
}
