package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SignaturePosition locates one signature on a page. The relative fields
// (page fractions, top-left origin) are authoritative when present; the
// absolute fields are a fallback for rows written before relative
// coordinates existed.
type SignaturePosition struct {
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	Width          float64  `json:"width"`
	Height         float64  `json:"height"`
	Page           int      `json:"page"`
	RelativeX      *float64 `json:"relativeX,omitempty"`
	RelativeY      *float64 `json:"relativeY,omitempty"`
	RelativeWidth  *float64 `json:"relativeWidth,omitempty"`
	RelativeHeight *float64 `json:"relativeHeight,omitempty"`
}

// PositionPatch is a partial position update. Only non-nil fields are
// merged into the stored position; everything else is retained.
type PositionPatch struct {
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	Page           *int     `json:"page,omitempty"`
	RelativeX      *float64 `json:"relativeX,omitempty"`
	RelativeY      *float64 `json:"relativeY,omitempty"`
	RelativeWidth  *float64 `json:"relativeWidth,omitempty"`
	RelativeHeight *float64 `json:"relativeHeight,omitempty"`
}

// Apply merges the patch into pos.
func (p PositionPatch) Apply(pos *SignaturePosition) {
	if p.X != nil {
		pos.X = *p.X
	}
	if p.Y != nil {
		pos.Y = *p.Y
	}
	if p.Width != nil {
		pos.Width = *p.Width
	}
	if p.Height != nil {
		pos.Height = *p.Height
	}
	if p.Page != nil {
		pos.Page = *p.Page
	}
	if p.RelativeX != nil {
		pos.RelativeX = p.RelativeX
	}
	if p.RelativeY != nil {
		pos.RelativeY = p.RelativeY
	}
	if p.RelativeWidth != nil {
		pos.RelativeWidth = p.RelativeWidth
	}
	if p.RelativeHeight != nil {
		pos.RelativeHeight = p.RelativeHeight
	}
}

// SignatureEntry is one signature in the current storage shape.
type SignatureEntry struct {
	ID        string            `json:"id"`
	DataURL   string            `json:"dataUrl"`
	Source    string            `json:"source,omitempty"`
	Position  SignaturePosition `json:"position"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// SignatureShape tags which historical layout a stored signature_data
// payload uses.
type SignatureShape int

const (
	ShapeUnknown SignatureShape = iota
	ShapeLegacy
	ShapeCurrent
)

// SignatureData is the jsonb payload of a signature row. Two layouts exist
// in production data and every reader must understand both:
//
//   - current: {"signatures": [ ... ]}
//   - legacy:  {"dataUrl": ..., "position": ..., "timestamp": ...}
//
// Writers normalize to the current shape going forward but never rewrite
// legacy rows they do not touch.
type SignatureData struct {
	Signatures []SignatureEntry `json:"signatures,omitempty"`

	DataURL   string             `json:"dataUrl,omitempty"`
	Position  *SignaturePosition `json:"position,omitempty"`
	Timestamp string             `json:"timestamp,omitempty"`
}

func (d SignatureData) Shape() SignatureShape {
	if d.Signatures != nil {
		return ShapeCurrent
	}
	if d.DataURL != "" {
		return ShapeLegacy
	}
	return ShapeUnknown
}

// Entries normalizes either shape to a flat entry slice, preserving array
// order. A legacy payload becomes exactly one entry; an unknown payload
// becomes none.
func (d SignatureData) Entries() []SignatureEntry {
	switch d.Shape() {
	case ShapeCurrent:
		return d.Signatures
	case ShapeLegacy:
		entry := SignatureEntry{
			DataURL:   d.DataURL,
			Timestamp: d.Timestamp,
		}
		if d.Position != nil {
			entry.Position = *d.Position
		}
		return []SignatureEntry{entry}
	}
	return nil
}

func (d SignatureData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *SignatureData) Scan(value any) error {
	if value == nil {
		*d = SignatureData{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return fmt.Errorf("unsupported signature data column type %T", value)
}

// SignatureRow holds all signatures for one (document, recipient) pair.
// Invariant: no row persists with an empty signatures array; removing the
// last entry deletes the row. Version is the optimistic-concurrency token
// checked on every read-modify-write.
type SignatureRow struct {
	ID             uint          `gorm:"primaryKey"`
	DocumentID     string        `gorm:"index:idx_signature_doc_recipient,unique;not null"`
	RecipientEmail string        `gorm:"index:idx_signature_doc_recipient,unique;not null"`
	SignatureData  SignatureData `gorm:"type:jsonb"`
	SignedAt       time.Time
	Version        int `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
