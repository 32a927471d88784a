// Package geometry converts annotation placements between the coordinate
// systems involved in compositing: page fractions with a top-left origin as
// captured by the client, and absolute PDF user-space units with a
// bottom-left origin as required for drawing.
package geometry

// TextBaselineOffset is the fixed visual offset, in PDF units, reserved
// below a text annotation's anchor point. It approximates the baseline
// alignment the client shows on screen.
const TextBaselineOffset = 20.0

// Rect is a draw rectangle in PDF user space: bottom-left origin, units are
// points, (X, Y) is the lower-left corner of the drawn content.
type Rect struct {
	X, Y, W, H float64
}

// Placement is a stored annotation position. Relative fields are page
// fractions (0–1, top-left origin) and are authoritative when present; the
// absolute fields are top-left pixel coordinates kept as a fallback for
// older data.
type Placement struct {
	Page int

	X, Y, Width, Height float64

	RelX, RelY, RelW, RelH *float64
}

// PDFX converts a page-fraction X to an absolute PDF X.
func PDFX(relX, pageWidth float64) float64 {
	return relX * pageWidth
}

// PDFY converts a top-left-origin page-fraction Y to the bottom-left-origin
// Y of an element whose own origin is its bottom edge.
func PDFY(relY, relHeight, pageHeight float64) float64 {
	return pageHeight - relY*pageHeight - relHeight*pageHeight
}

// FlipY converts a top-left-origin absolute Y to a bottom-left-origin Y for
// an element of the given height.
func FlipY(topY, height, pageHeight float64) float64 {
	return pageHeight - topY - height
}

// Resolve computes the clamped draw rectangle for a placement on a page of
// the given size. Relative coordinates win when both RelX and RelY are
// present; otherwise the absolute fallback is flipped into PDF space.
func Resolve(p Placement, pageWidth, pageHeight float64) Rect {
	var r Rect
	if p.RelX != nil && p.RelY != nil {
		w, h := p.Width, p.Height
		if p.RelW != nil {
			w = *p.RelW * pageWidth
		}
		if p.RelH != nil {
			h = *p.RelH * pageHeight
		}
		r = Rect{
			X: PDFX(*p.RelX, pageWidth),
			Y: pageHeight - *p.RelY*pageHeight - h,
			W: w,
			H: h,
		}
	} else {
		r = Rect{
			X: p.X,
			Y: FlipY(p.Y, p.Height, pageHeight),
			W: p.Width,
			H: p.Height,
		}
	}
	return Clamp(r, pageWidth, pageHeight)
}

// Clamp shrinks a rectangle so it cannot extend past the right page edge or
// below the bottom one. Applied unconditionally before drawing; prevents
// out-of-page draws and negative-size errors.
func Clamp(r Rect, pageWidth, pageHeight float64) Rect {
	if r.X+r.W > pageWidth {
		r.W = pageWidth - r.X
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	return r
}
