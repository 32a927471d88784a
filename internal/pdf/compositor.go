// Package pdf burns a composited annotation list onto an existing PDF's
// pages. Each annotation is stamped independently: a bad page number,
// malformed image payload or failed draw skips that annotation and the
// render continues. Only an unreadable source document or a failed final
// serialization is fatal.
package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/compose"
	"github.com/jgarciait/aqsign-demo-sub001/internal/geometry"
)

// DefaultFontSize is used for text annotations that carry no font size.
const DefaultFontSize = 12

var (
	// ErrUnreadableSource means the input bytes could not be parsed as a
	// PDF. Nothing is rendered.
	ErrUnreadableSource = errors.New("unreadable source pdf")

	// ErrSerializeOutput means the final document could not be written.
	ErrSerializeOutput = errors.New("failed to serialize composited pdf")
)

type Compositor struct {
	conf   *model.Configuration
	logger *zap.Logger
}

func NewCompositor(logger *zap.Logger) *Compositor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Compositor{
		conf:   conf,
		logger: logger.With(zap.String("component", "pdf_compositor")),
	}
}

// Result is the compositor output: the final bytes plus the draw counts the
// caller exposes as response metadata.
type Result struct {
	PDF             []byte
	DrawnTotal      int
	DrawnSignatures int
	Skipped         int
}

// Compose stamps each annotation, in order, onto the matching page of the
// source document. Annotations are applied one at a time so a failing draw
// leaves every earlier draw intact.
func (c *Compositor) Compose(ctx context.Context, src []byte, annotations []compose.Annotation) (*Result, error) {
	rctx, err := api.ReadContext(bytes.NewReader(src), c.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	if err := api.ValidateContext(rctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	dims, err := rctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	pageCount := rctx.PageCount

	res := &Result{}
	current := src

	for _, ann := range annotations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageIndex := ann.Placement.Page - 1
		if pageIndex < 0 || pageIndex >= pageCount {
			c.logger.Warn("annotation page out of range, skipping",
				zap.String("annotation_id", ann.ID),
				zap.Int("page", ann.Placement.Page),
				zap.Int("page_count", pageCount))
			res.Skipped++
			continue
		}

		wm, err := c.watermark(ann, dims[pageIndex].Width, dims[pageIndex].Height)
		if err != nil {
			c.logger.Warn("annotation could not be prepared, skipping",
				zap.String("annotation_id", ann.ID),
				zap.String("kind", string(ann.Kind)),
				zap.Error(err))
			res.Skipped++
			continue
		}

		var buf bytes.Buffer
		pages := []string{strconv.Itoa(ann.Placement.Page)}
		if err := api.AddWatermarks(bytes.NewReader(current), &buf, pages, wm, c.conf); err != nil {
			c.logger.Warn("annotation draw failed, skipping",
				zap.String("annotation_id", ann.ID),
				zap.String("kind", string(ann.Kind)),
				zap.Error(err))
			res.Skipped++
			continue
		}

		current = buf.Bytes()
		res.DrawnTotal++
		if ann.Kind == compose.KindSignature {
			res.DrawnSignatures++
		}
	}

	if len(current) == 0 {
		return nil, ErrSerializeOutput
	}
	res.PDF = current
	return res, nil
}

func (c *Compositor) watermark(ann compose.Annotation, pageWidth, pageHeight float64) (*model.Watermark, error) {
	rect := geometry.Resolve(ann.Placement, pageWidth, pageHeight)

	switch ann.Kind {
	case compose.KindSignature:
		raw, mime, err := DecodeDataURL(ann.ImageData)
		if err != nil {
			return nil, err
		}
		// Scale the image so its natural width fills the draw rectangle;
		// pixel dimensions map 1:1 onto points at scale 1. Scaling is
		// uniform, so the drawn height follows the image's aspect ratio
		// rather than the rectangle's.
		scale := 1.0
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil && cfg.Width > 0 {
			scale = rect.W / float64(cfg.Width)
		} else {
			c.logger.Warn("could not read image dimensions, drawing unscaled",
				zap.String("annotation_id", ann.ID),
				zap.String("mime", mime))
		}
		desc := fmt.Sprintf("pos:bl, off:%.2f %.2f, scale:%.4f abs, rot:0, op:1",
			rect.X, rect.Y, scale)
		return api.ImageWatermarkForReader(bytes.NewReader(raw), desc, true, false, types.POINTS)

	case compose.KindText:
		if strings.TrimSpace(ann.Text) == "" {
			return nil, errors.New("empty text annotation")
		}
		size := int(ann.FontSize)
		if size <= 0 {
			size = DefaultFontSize
		}
		y := rect.Y - geometry.TextBaselineOffset
		if y < 0 {
			y = 0
		}
		desc := fmt.Sprintf("fontname:Helvetica, points:%d, scale:1 abs, pos:bl, off:%.2f %.2f, rot:0, op:1, fillcolor:#000000",
			size, rect.X, y)
		return api.TextWatermark(ann.Text, desc, true, false, types.POINTS)
	}

	return nil, fmt.Errorf("unknown annotation kind %q", ann.Kind)
}

// DecodeDataURL splits a base64 image data URL into raw bytes and the
// declared MIME type, defaulting to image/png when none is declared. A bare
// base64 string without the data: scheme is accepted for older payloads.
func DecodeDataURL(s string) ([]byte, string, error) {
	if s == "" {
		return nil, "", errors.New("empty image payload")
	}
	mime := "image/png"
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", errors.New("malformed data url")
		}
		payload = rest
		if m := strings.TrimPrefix(header, "data:"); m != "" {
			if declared, _, _ := strings.Cut(m, ";"); declared != "" {
				mime = declared
			}
		}
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, "", fmt.Errorf("decode image payload: %w", err)
	}
	return raw, mime, nil
}
