package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TextAnnotation is one placed free-text element. Relative coordinates are
// page fractions with a top-left origin and win over the absolute fields
// when present; absolute x/y are kept for older data.
type TextAnnotation struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Page      int      `json:"page"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Width     float64  `json:"width"`
	Height    float64  `json:"height"`
	RelativeX *float64 `json:"relativeX,omitempty"`
	RelativeY *float64 `json:"relativeY,omitempty"`
	Text      string   `json:"text"`
	FontSize  float64  `json:"fontSize,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// TextAnnotationList is the jsonb column payload: the full annotation list
// for one recipient.
type TextAnnotationList []TextAnnotation

func (l TextAnnotationList) Value() (driver.Value, error) {
	if l == nil {
		l = TextAnnotationList{}
	}
	return json.Marshal(l)
}

func (l *TextAnnotationList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("unsupported annotation list column type %T", value)
}

// AnnotationRow holds the full text-annotation list for one
// (document, recipient) pair. Signature-typed entries are filtered out at
// every write and read boundary; this store is signature-free.
type AnnotationRow struct {
	ID             uint               `gorm:"primaryKey"`
	DocumentID     string             `gorm:"index:idx_annotation_doc_recipient,unique;not null"`
	RecipientEmail string             `gorm:"index:idx_annotation_doc_recipient,unique;not null"`
	Annotations    TextAnnotationList `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
