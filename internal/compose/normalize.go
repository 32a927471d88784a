package compose

import (
	"time"

	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/geometry"
)

// FromRows merges text-annotation rows and signature rows into the
// canonical ordered annotation list: text annotations first, then flattened
// signatures, input row order and in-row array order preserved. Later-drawn
// items visually sit above earlier ones; there is no explicit z-index.
//
// Rows whose payload matches neither signature shape are skipped and
// logged, never fatal. Signature-typed entries found in the text store are
// dropped here as well; that store is signature-free by contract.
func FromRows(textRows []models.AnnotationRow, sigRows []models.SignatureRow, logger *zap.Logger) []Annotation {
	out := make([]Annotation, 0, len(textRows)+len(sigRows))

	for _, row := range textRows {
		for _, a := range row.Annotations {
			if a.Type == string(KindSignature) {
				logger.Warn("dropping signature-typed entry found in text annotation store",
					zap.String("document_id", row.DocumentID),
					zap.String("recipient", row.RecipientEmail),
					zap.String("annotation_id", a.ID))
				continue
			}
			out = append(out, Annotation{
				ID:        a.ID,
				Kind:      KindText,
				Recipient: row.RecipientEmail,
				Timestamp: a.Timestamp,
				Text:      a.Text,
				FontSize:  a.FontSize,
				Placement: geometry.Placement{
					Page:   a.Page,
					X:      a.X,
					Y:      a.Y,
					Width:  a.Width,
					Height: a.Height,
					RelX:   a.RelativeX,
					RelY:   a.RelativeY,
				},
			})
		}
	}

	for _, row := range sigRows {
		entries := row.SignatureData.Entries()
		if len(entries) == 0 {
			logger.Warn("signature row matches neither storage shape, skipping",
				zap.String("document_id", row.DocumentID),
				zap.String("recipient", row.RecipientEmail))
			continue
		}
		for _, e := range entries {
			ts := e.Timestamp
			if ts == "" && !row.SignedAt.IsZero() {
				ts = row.SignedAt.Format(time.RFC3339)
			}
			out = append(out, Annotation{
				ID:        e.ID,
				Kind:      KindSignature,
				Recipient: row.RecipientEmail,
				Timestamp: ts,
				ImageData: e.DataURL,
				Placement: PlacementFromPosition(e.Position),
			})
		}
	}

	return out
}

// PlacementFromPosition maps a stored signature position onto the geometry
// placement used for drawing.
func PlacementFromPosition(p models.SignaturePosition) geometry.Placement {
	return geometry.Placement{
		Page:   p.Page,
		X:      p.X,
		Y:      p.Y,
		Width:  p.Width,
		Height: p.Height,
		RelX:   p.RelativeX,
		RelY:   p.RelativeY,
		RelW:   p.RelativeWidth,
		RelH:   p.RelativeHeight,
	}
}
