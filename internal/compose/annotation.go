// Package compose builds the canonical in-memory annotation list consumed
// by the PDF compositor. It merges the two storage representations, free
// text annotation rows and signature rows in either historical shape, into
// one ordered, storage-agnostic slice. Nothing here is ever persisted; the
// list is rebuilt from storage on every composite or print operation.
package compose

import (
	"github.com/jgarciait/aqsign-demo-sub001/internal/geometry"
)

type Kind string

const (
	KindText      Kind = "text"
	KindSignature Kind = "signature"
)

// Annotation is the canonical compositor input: one placed text or
// signature element with its resolved placement and payload.
type Annotation struct {
	ID        string
	Kind      Kind
	Recipient string
	Timestamp string

	// Text payload.
	Text     string
	FontSize float64

	// Signature payload: a base64 image data URL.
	ImageData string

	Placement geometry.Placement
}
