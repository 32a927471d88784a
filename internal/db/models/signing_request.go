package models

import (
	"time"

	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

// SigningRequest binds a document to one recipient for one signing session.
// Exactly one active request per (document, recipient) pair; status moves
// monotonically sent → signed or sent → returned unless explicitly
// reopened by a resend.
type SigningRequest struct {
	ID             string         `gorm:"primaryKey"`
	DocumentID     string         `gorm:"index:idx_request_doc_recipient,unique;not null"`
	RecipientEmail string         `gorm:"index:idx_request_doc_recipient,unique;not null"`
	CreatorEmail   string         `gorm:"index"`
	Status         signing.Status `gorm:"not null;default:'sent'"`
	SentAt         *time.Time
	SignedAt       *time.Time
	ReturnedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
