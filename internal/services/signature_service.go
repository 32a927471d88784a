package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/identity"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/metrics"
)

// maxWriteAttempts bounds the optimistic-concurrency retry loop on
// signature row writes.
const maxWriteAttempts = 3

// SignatureService is the reconciler over the per-(document, recipient)
// signature row. Every mutation is a read-modify-write conditioned on the
// row version it read; a concurrent writer bumps the version and the loser
// re-reads and retries instead of silently clobbering the row.
//
// Readers understand both historical payload shapes (legacy single
// signature and current signature array); writers normalize rows they touch
// to the current shape and leave every other legacy row alone.
type SignatureService struct {
	db        *gorm.DB
	documents *DocumentService
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
}

func NewSignatureService(db *gorm.DB, documents *DocumentService, logger *zap.Logger, metrics *metrics.MetricsCollector) *SignatureService {
	return &SignatureService{
		db:        db,
		documents: documents,
		logger:    logger.With(zap.String("service", "signature_service")),
		metrics:   metrics,
	}
}

func (ss *SignatureService) row(ctx context.Context, docID, recipientKey string) (*models.SignatureRow, error) {
	var row models.SignatureRow
	err := ss.db.WithContext(ctx).
		Where("document_id = ? AND recipient_email = ?", docID, recipientKey).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// casUpdate writes the mutated payload only if the row still carries the
// version that was read. Returns false when a concurrent writer won.
func (ss *SignatureService) casUpdate(ctx context.Context, row *models.SignatureRow, data models.SignatureData) (bool, error) {
	res := ss.db.WithContext(ctx).Model(&models.SignatureRow{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]any{
			"signature_data": data,
			"signed_at":      time.Now(),
			"version":        row.Version + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (ss *SignatureService) afterWrite(ctx context.Context, docID, operation string) {
	ss.documents.Touch(ctx, docID)
	ss.metrics.IncrementCounter("signature_writes", map[string]string{"op": operation})
}

func fillEntry(entry *models.SignatureEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format(time.RFC3339)
	}
}

// Add appends one signature to the recipient's row, creating the row in
// current shape when it does not exist and migrating a legacy row it lands
// on. Entries are deduplicated on id, so a client retry of the same
// submission is a no-op rather than a duplicate.
func (ss *SignatureService) Add(ctx context.Context, docID string, rec identity.Recipient, entry models.SignatureEntry) (*models.SignatureEntry, error) {
	if entry.DataURL == "" {
		return nil, fmt.Errorf("%w: signature data missing", signing.ErrInvalidInput)
	}
	if err := ss.documents.Gate(ctx, docID, rec); err != nil {
		return nil, err
	}
	fillEntry(&entry)

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		row, err := ss.row(ctx, docID, rec.Key())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created := &models.SignatureRow{
				DocumentID:     docID,
				RecipientEmail: rec.Key(),
				SignatureData:  models.SignatureData{Signatures: []models.SignatureEntry{entry}},
				SignedAt:       time.Now(),
				Version:        1,
			}
			if err := ss.db.WithContext(ctx).Create(created).Error; err != nil {
				// Lost the insert race; re-read and append instead.
				ss.logger.Debug("signature row insert raced, retrying", zap.Error(err))
				continue
			}
			ss.afterWrite(ctx, docID, "add")
			return &entry, nil
		}
		if err != nil {
			return nil, err
		}

		entries := row.SignatureData.Entries()
		for i := range entries {
			if entries[i].ID == entry.ID {
				return &entries[i], nil
			}
		}
		entries = append(entries, entry)

		ok, err := ss.casUpdate(ctx, row, models.SignatureData{Signatures: entries})
		if err != nil {
			return nil, err
		}
		if ok {
			ss.afterWrite(ctx, docID, "add")
			return &entry, nil
		}
	}
	return nil, signing.ErrConflict
}

// AddConsolidated replaces the recipient's entire row with the given entry
// set in current shape. Used when a client submits its full signature set
// in one call; an empty set is an input error, ClearAll is the way to
// empty a row.
func (ss *SignatureService) AddConsolidated(ctx context.Context, docID string, rec identity.Recipient, entries []models.SignatureEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty signature set", signing.ErrInvalidInput)
	}
	if err := ss.documents.Gate(ctx, docID, rec); err != nil {
		return err
	}
	for i := range entries {
		if entries[i].DataURL == "" {
			return fmt.Errorf("%w: signature data missing", signing.ErrInvalidInput)
		}
		fillEntry(&entries[i])
	}
	data := models.SignatureData{Signatures: entries}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		row, err := ss.row(ctx, docID, rec.Key())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created := &models.SignatureRow{
				DocumentID:     docID,
				RecipientEmail: rec.Key(),
				SignatureData:  data,
				SignedAt:       time.Now(),
				Version:        1,
			}
			if err := ss.db.WithContext(ctx).Create(created).Error; err != nil {
				ss.logger.Debug("signature row insert raced, retrying", zap.Error(err))
				continue
			}
			ss.afterWrite(ctx, docID, "add_consolidated")
			return nil
		}
		if err != nil {
			return err
		}

		ok, err := ss.casUpdate(ctx, row, data)
		if err != nil {
			return err
		}
		if ok {
			ss.afterWrite(ctx, docID, "add_consolidated")
			return nil
		}
	}
	return signing.ErrConflict
}

// UpdatePosition merges a partial position update into one signature. In
// current-shape data the entry is located by id; a legacy row is itself the
// target and is migrated to current shape by the write.
func (ss *SignatureService) UpdatePosition(ctx context.Context, docID string, rec identity.Recipient, signatureID string, patch models.PositionPatch) error {
	if err := ss.documents.Gate(ctx, docID, rec); err != nil {
		return err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		row, err := ss.row(ctx, docID, rec.Key())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no signatures for %s", signing.ErrNotFound, rec.Key())
		}
		if err != nil {
			return err
		}

		var entries []models.SignatureEntry
		switch row.SignatureData.Shape() {
		case models.ShapeLegacy:
			entries = row.SignatureData.Entries()
			patch.Apply(&entries[0].Position)
			fillEntry(&entries[0])
		case models.ShapeCurrent:
			entries = row.SignatureData.Signatures
			idx := -1
			for i := range entries {
				if entries[i].ID == signatureID {
					idx = i
					break
				}
			}
			if idx < 0 {
				return fmt.Errorf("%w: signature %s", signing.ErrNotFound, signatureID)
			}
			patch.Apply(&entries[idx].Position)
		default:
			return fmt.Errorf("%w: signature %s", signing.ErrNotFound, signatureID)
		}

		ok, err := ss.casUpdate(ctx, row, models.SignatureData{Signatures: entries})
		if err != nil {
			return err
		}
		if ok {
			ss.afterWrite(ctx, docID, "update_position")
			return nil
		}
	}
	return signing.ErrConflict
}

// DeleteOne removes the matching entry. Removing the last entry deletes
// the row outright: no row ever persists with an empty signatures array.
func (ss *SignatureService) DeleteOne(ctx context.Context, docID string, rec identity.Recipient, signatureID string) error {
	if err := ss.documents.Gate(ctx, docID, rec); err != nil {
		return err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		row, err := ss.row(ctx, docID, rec.Key())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no signatures for %s", signing.ErrNotFound, rec.Key())
		}
		if err != nil {
			return err
		}

		entries := row.SignatureData.Entries()
		kept := make([]models.SignatureEntry, 0, len(entries))
		found := false
		for _, e := range entries {
			if e.ID == signatureID {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		if !found {
			return fmt.Errorf("%w: signature %s", signing.ErrNotFound, signatureID)
		}

		if len(kept) == 0 {
			res := ss.db.WithContext(ctx).
				Where("id = ? AND version = ?", row.ID, row.Version).
				Delete(&models.SignatureRow{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				ss.afterWrite(ctx, docID, "delete")
				return nil
			}
			continue
		}

		ok, err := ss.casUpdate(ctx, row, models.SignatureData{Signatures: kept})
		if err != nil {
			return err
		}
		if ok {
			ss.afterWrite(ctx, docID, "delete")
			return nil
		}
	}
	return signing.ErrConflict
}

// ClearAll deletes the recipient's signature row; for the aggregate
// identity it deletes every signature row of the document. Idempotent:
// clearing an already-empty document succeeds.
func (ss *SignatureService) ClearAll(ctx context.Context, docID string, rec identity.Recipient) error {
	if err := ss.documents.Gate(ctx, docID, rec); err != nil {
		return err
	}

	q := ss.db.WithContext(ctx).Where("document_id = ?", docID)
	if !rec.IsAggregate() {
		q = q.Where("recipient_email = ?", rec.Key())
	}
	res := q.Delete(&models.SignatureRow{})
	if res.Error != nil {
		return res.Error
	}

	ss.afterWrite(ctx, docID, "clear")
	ss.logger.Info("signatures cleared",
		zap.String("doc_id", docID),
		zap.String("recipient", rec.Key()),
		zap.Int64("rows", res.RowsAffected))
	return nil
}

// Rows returns the raw signature rows for a document: the recipient's own
// row, or every row in aggregate mode. Both payload shapes pass through
// untouched; normalization happens in the compose package.
func (ss *SignatureService) Rows(ctx context.Context, docID string, rec identity.Recipient) ([]models.SignatureRow, error) {
	q := ss.db.WithContext(ctx).Where("document_id = ?", docID)
	if !rec.IsAggregate() {
		q = q.Where("recipient_email = ?", rec.Key())
	}
	var rows []models.SignatureRow
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
