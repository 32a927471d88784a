package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/compose"
	"github.com/jgarciait/aqsign-demo-sub001/internal/identity"
	"github.com/jgarciait/aqsign-demo-sub001/internal/pdf"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/metrics"
)

// RenderService re-derives the canonical annotation list from storage and
// invokes the compositor against the source PDF. Rendering is read-only:
// every call produces fresh output and calls may run fully in parallel.
type RenderService struct {
	documents   *DocumentService
	annotations *AnnotationService
	signatures  *SignatureService
	compositor  *pdf.Compositor
	logger      *zap.Logger
	metrics     *metrics.MetricsCollector
}

func NewRenderService(
	documents *DocumentService,
	annotations *AnnotationService,
	signatures *SignatureService,
	compositor *pdf.Compositor,
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
) *RenderService {
	return &RenderService{
		documents:   documents,
		annotations: annotations,
		signatures:  signatures,
		compositor:  compositor,
		logger:      logger.With(zap.String("service", "render_service")),
		metrics:     metrics,
	}
}

// RenderOutput carries the composited bytes plus the audit metadata callers
// expose as response headers. The metadata is never embedded in the PDF
// content itself.
type RenderOutput struct {
	PDF            []byte
	FileName       string
	SignatureCount int
	Signer         string
	SignedAt       string
}

// Composite renders the document with its current annotation set. When
// final is true the render is gated on a terminal session status: asking
// for the final signed PDF earlier is an error, not a degraded render.
func (rs *RenderService) Composite(ctx context.Context, docID string, rec identity.Recipient, final bool) (*RenderOutput, error) {
	start := time.Now()

	doc, err := rs.documents.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if final && !doc.Status.Terminal() {
		return nil, signing.ErrNotYetSigned
	}

	src, err := rs.documents.SourceBytes(ctx, doc)
	if err != nil {
		return nil, err
	}

	textRows, err := rs.annotations.Rows(ctx, docID, rec)
	if err != nil {
		return nil, err
	}
	sigRows, err := rs.signatures.Rows(ctx, docID, rec)
	if err != nil {
		return nil, err
	}

	annotations := compose.FromRows(textRows, sigRows, rs.logger)
	result, err := rs.compositor.Compose(ctx, src, annotations)
	if err != nil {
		return nil, err
	}

	out := &RenderOutput{
		PDF:            result.PDF,
		FileName:       doc.FileName,
		SignatureCount: result.DrawnSignatures,
	}
	for _, row := range sigRows {
		if row.SignedAt.After(start) {
			continue
		}
		if out.SignedAt == "" || row.SignedAt.Format(time.RFC3339) > out.SignedAt {
			out.Signer = row.RecipientEmail
			out.SignedAt = row.SignedAt.Format(time.RFC3339)
		}
	}

	rs.metrics.IncrementCounter("composites_rendered", map[string]string{"final": boolLabel(final)})
	rs.metrics.ObserveSize("composite_size", float64(len(result.PDF)))
	rs.metrics.ObserveLatency("composite_render", time.Since(start))

	rs.logger.Info("composite rendered",
		zap.String("doc_id", docID),
		zap.String("recipient", rec.Key()),
		zap.Int("drawn", result.DrawnTotal),
		zap.Int("skipped", result.Skipped),
		zap.Bool("final", final))
	return out, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
