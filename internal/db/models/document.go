package models

import (
	"time"

	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

// Document is a PDF routed for signature. The file itself lives in the blob
// store; the row carries its locator and display name. Documents are owned
// by their creator but readable by any authenticated actor in this trust
// model.
type Document struct {
	ID         string         `gorm:"primaryKey"`
	FileName   string         `gorm:"not null"`
	FilePath   string         `gorm:"not null"`
	OwnerEmail string         `gorm:"index"`
	Status     signing.Status `gorm:"not null;default:'draft'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
