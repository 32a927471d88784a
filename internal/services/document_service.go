package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/identity"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
	"github.com/jgarciait/aqsign-demo-sub001/internal/storage"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/metrics"
)

// DocumentService owns document and signing-request lifecycle: upload,
// dispatch to recipients, completion and reopening.
type DocumentService struct {
	db      *gorm.DB
	blobs   storage.BlobStore
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewDocumentService(db *gorm.DB, blobs storage.BlobStore, logger *zap.Logger, metrics *metrics.MetricsCollector) *DocumentService {
	return &DocumentService{
		db:      db,
		blobs:   blobs,
		logger:  logger.With(zap.String("service", "document_service")),
		metrics: metrics,
	}
}

func (ds *DocumentService) Get(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	if err := ds.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: document %s", signing.ErrNotFound, docID)
		}
		return nil, err
	}
	return &doc, nil
}

func (ds *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := ds.db.WithContext(ctx).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Create stores the uploaded PDF in the blob store and creates the draft
// document row pointing at it.
func (ds *DocumentService) Create(ctx context.Context, ownerEmail, fileName string, content []byte) (*models.Document, error) {
	if fileName == "" || len(content) == 0 {
		return nil, fmt.Errorf("%w: missing file name or content", signing.ErrInvalidInput)
	}
	start := time.Now()
	id := uuid.New().String()
	blobPath := path.Join("documents", id, fileName)

	if err := ds.blobs.Upload(ctx, blobPath, content); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:         id,
		FileName:   fileName,
		FilePath:   blobPath,
		OwnerEmail: ownerEmail,
		Status:     signing.StatusDraft,
	}
	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("documents_created", nil)
	ds.metrics.ObserveSize("document_size", float64(len(content)))
	ds.metrics.ObserveLatency("document_create", time.Since(start))

	ds.logger.Info("document created",
		zap.String("doc_id", id),
		zap.String("owner", ownerEmail),
		zap.Int("size", len(content)))
	return doc, nil
}

// Send dispatches a draft document: the document moves to sent and one
// signing request per recipient is created. Recipient rows are committed
// individually, document status last, so a partial failure leaves the
// document still in draft rather than sent with missing requests.
func (ds *DocumentService) Send(ctx context.Context, docID, creatorEmail string, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients", signing.ErrInvalidInput)
	}
	doc, err := ds.Get(ctx, docID)
	if err != nil {
		return err
	}
	if err := signing.Transition(doc.Status, signing.StatusSent); err != nil {
		return err
	}

	now := time.Now()
	for _, email := range recipients {
		req := &models.SigningRequest{
			ID:             uuid.New().String(),
			DocumentID:     docID,
			RecipientEmail: email,
			CreatorEmail:   creatorEmail,
			Status:         signing.StatusSent,
			SentAt:         &now,
		}
		if err := ds.db.WithContext(ctx).Create(req).Error; err != nil {
			return fmt.Errorf("create signing request for %s: %w", email, err)
		}
	}

	if err := ds.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", docID).
		Update("status", signing.StatusSent).Error; err != nil {
		return err
	}

	ds.metrics.IncrementCounter("documents_sent", nil)
	ds.logger.Info("document dispatched",
		zap.String("doc_id", docID),
		zap.Int("recipients", len(recipients)))
	return nil
}

func (ds *DocumentService) request(ctx context.Context, docID string, rec identity.Recipient) (*models.SigningRequest, error) {
	var req models.SigningRequest
	err := ds.db.WithContext(ctx).
		Where("document_id = ? AND recipient_email = ?", docID, rec.Email()).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: signing request for %s", signing.ErrNotFound, rec.Email())
		}
		return nil, err
	}
	return &req, nil
}

// Complete closes the signing session with the given terminal status:
// signed for the multi-field flow, returned for the single-signature
// send-back flow. The matching timestamp field is recorded. For the
// aggregate identity every request on the document is closed.
func (ds *DocumentService) Complete(ctx context.Context, docID string, rec identity.Recipient, target signing.Status) error {
	if !target.Terminal() {
		return signing.ErrInvalidInput
	}
	doc, err := ds.Get(ctx, docID)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]any{"status": target}
	if target == signing.StatusSigned {
		updates["signed_at"] = now
	} else {
		updates["returned_at"] = now
	}

	if rec.IsAggregate() {
		if err := signing.Transition(doc.Status, target); err != nil {
			return err
		}
		if err := ds.db.WithContext(ctx).Model(&models.SigningRequest{}).
			Where("document_id = ?", docID).
			Updates(updates).Error; err != nil {
			return err
		}
	} else {
		req, err := ds.request(ctx, docID, rec)
		if err != nil {
			return err
		}
		if err := signing.Transition(req.Status, target); err != nil {
			return err
		}
		if err := ds.db.WithContext(ctx).Model(&models.SigningRequest{}).
			Where("id = ?", req.ID).
			Updates(updates).Error; err != nil {
			return err
		}
	}

	if err := ds.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", docID).
		Update("status", target).Error; err != nil {
		return err
	}

	ds.metrics.IncrementCounter("documents_completed", map[string]string{"status": string(target)})
	ds.logger.Info("signing session completed",
		zap.String("doc_id", docID),
		zap.String("recipient", rec.Key()),
		zap.String("status", string(target)))
	return nil
}

// Resend reopens a session back to sent. Stored signatures are left in
// place: reopening invalidates the closed-round guarantee, and clearing
// them is a separate cleanup the caller performs explicitly beforehand.
func (ds *DocumentService) Resend(ctx context.Context, docID string, rec identity.Recipient) error {
	doc, err := ds.Get(ctx, docID)
	if err != nil {
		return err
	}
	if err := signing.Reopen(doc.Status); err != nil {
		return err
	}

	now := time.Now()
	reqUpdates := map[string]any{"status": signing.StatusSent, "sent_at": now}
	q := ds.db.WithContext(ctx).Model(&models.SigningRequest{}).Where("document_id = ?", docID)
	if !rec.IsAggregate() {
		q = q.Where("recipient_email = ?", rec.Email())
	}
	if err := q.Updates(reqUpdates).Error; err != nil {
		return err
	}

	if err := ds.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", docID).
		Update("status", signing.StatusSent).Error; err != nil {
		return err
	}

	ds.logger.Info("signing session reopened",
		zap.String("doc_id", docID),
		zap.String("recipient", rec.Key()))
	return nil
}

// SourceBytes fetches the document's source PDF from the blob store.
func (ds *DocumentService) SourceBytes(ctx context.Context, doc *models.Document) ([]byte, error) {
	return ds.blobs.Download(ctx, doc.FilePath)
}

// PublicURL exposes the blob store's viewing URL for a document.
func (ds *DocumentService) PublicURL(doc *models.Document) string {
	return ds.blobs.GetPublicURL(doc.FilePath)
}

// Touch bumps the document's updated_at. Best-effort: failures are logged
// and swallowed, never folded into the primary operation's result.
func (ds *DocumentService) Touch(ctx context.Context, docID string) {
	err := ds.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", docID).
		Update("updated_at", time.Now()).Error
	if err != nil {
		ds.logger.Warn("touch document failed", zap.String("doc_id", docID), zap.Error(err))
	}
}

// Gate rejects mutation once the session is closed. For a specific
// recipient the recipient's own request decides; a request that does not
// exist yet (pre-dispatch saves) does not block. The document's terminal
// status always blocks.
func (ds *DocumentService) Gate(ctx context.Context, docID string, rec identity.Recipient) error {
	doc, err := ds.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status.Terminal() {
		return signing.ErrAlreadyInTerminalState
	}
	if rec.IsAggregate() {
		return nil
	}
	req, err := ds.request(ctx, docID, rec)
	if err != nil {
		if errors.Is(err, signing.ErrNotFound) {
			return nil
		}
		return err
	}
	if req.Status.Terminal() {
		return signing.ErrAlreadyInTerminalState
	}
	return nil
}
