package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jgarciait/aqsign-demo-sub001/internal/compose"
	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/identity"
)

// AnnotationService owns the free-text annotation store: one row per
// (document, recipient) holding that recipient's full list. Signatures are
// excluded at every boundary of this store.
type AnnotationService struct {
	db        *gorm.DB
	documents *DocumentService
	logger    *zap.Logger
}

func NewAnnotationService(db *gorm.DB, documents *DocumentService, logger *zap.Logger) *AnnotationService {
	return &AnnotationService{
		db:        db,
		documents: documents,
		logger:    logger.With(zap.String("service", "annotation_service")),
	}
}

// Upsert replaces the recipient's annotation list. Signature-typed entries
// are dropped before the write; missing ids, types and timestamps are
// filled in. Safe to retry: the row holds the full list, so a replay
// rewrites the same content.
func (as *AnnotationService) Upsert(ctx context.Context, docID string, rec identity.Recipient, list []models.TextAnnotation) error {
	if err := as.documents.Gate(ctx, docID, rec); err != nil {
		return err
	}

	clean := make(models.TextAnnotationList, 0, len(list))
	for _, a := range list {
		if a.Type == string(compose.KindSignature) {
			as.logger.Warn("rejecting signature-typed entry on text annotation write",
				zap.String("doc_id", docID),
				zap.String("annotation_id", a.ID))
			continue
		}
		if a.Type == "" {
			a.Type = string(compose.KindText)
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Timestamp == "" {
			a.Timestamp = time.Now().Format(time.RFC3339)
		}
		clean = append(clean, a)
	}

	var row models.AnnotationRow
	err := as.db.WithContext(ctx).
		Where("document_id = ? AND recipient_email = ?", docID, rec.Key()).
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.AnnotationRow{
			DocumentID:     docID,
			RecipientEmail: rec.Key(),
			Annotations:    clean,
		}
		if err := as.db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := as.db.WithContext(ctx).Model(&row).
			Update("annotations", clean).Error; err != nil {
			return err
		}
	}

	as.documents.Touch(ctx, docID)
	return nil
}

// Rows returns the raw annotation rows for a document: the recipient's own
// row, or every recipient's rows in aggregate mode.
func (as *AnnotationService) Rows(ctx context.Context, docID string, rec identity.Recipient) ([]models.AnnotationRow, error) {
	q := as.db.WithContext(ctx).Where("document_id = ?", docID)
	if !rec.IsAggregate() {
		q = q.Where("recipient_email = ?", rec.Key())
	}
	var rows []models.AnnotationRow
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
