package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/compose"
	"github.com/jgarciait/aqsign-demo-sub001/internal/geometry"
)

// 1x1 opaque PNG.
const testPNGDataURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func fp(v float64) *float64 { return &v }

// buildTestPDF assembles a minimal letter-size PDF with the given page
// count, tracking object offsets so the xref table is exact.
func buildTestPDF(t *testing.T, pageCount int) []byte {
	t.Helper()

	var kids []string
	for i := 0; i < pageCount; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount),
	}
	for i := 0; i < pageCount; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objects)+1)
	for i, body := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func signatureAnnotation(id string, page int) compose.Annotation {
	return compose.Annotation{
		ID:        id,
		Kind:      compose.KindSignature,
		ImageData: testPNGDataURL,
		Placement: geometry.Placement{
			Page: page,
			RelX: fp(0.15), RelY: fp(0.15),
			RelW: fp(0.49), RelH: fp(0.19),
		},
	}
}

func textAnnotation(id string, page int, text string) compose.Annotation {
	return compose.Annotation{
		ID:   id,
		Kind: compose.KindText,
		Text: text,
		Placement: geometry.Placement{
			Page: page,
			RelX: fp(0.2), RelY: fp(0.3),
		},
	}
}

func TestComposeDrawsAnnotations(t *testing.T) {
	c := NewCompositor(zap.NewNop())
	src := buildTestPDF(t, 2)

	res, err := c.Compose(context.Background(), src, []compose.Annotation{
		textAnnotation("t1", 1, "Approved"),
		signatureAnnotation("s1", 2),
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if res.DrawnTotal != 2 || res.Skipped != 0 {
		t.Errorf("drawn %d skipped %d, want 2 drawn 0 skipped", res.DrawnTotal, res.Skipped)
	}
	if res.DrawnSignatures != 1 {
		t.Errorf("signature count = %d, want 1", res.DrawnSignatures)
	}
	if len(res.PDF) == 0 || !bytes.HasPrefix(res.PDF, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestComposeSkipsOutOfRangePage(t *testing.T) {
	c := NewCompositor(zap.NewNop())
	src := buildTestPDF(t, 1)

	res, err := c.Compose(context.Background(), src, []compose.Annotation{
		signatureAnnotation("bad", 999),
		signatureAnnotation("good", 1),
	})
	if err != nil {
		t.Fatalf("one bad annotation must not abort the render: %v", err)
	}
	if res.DrawnTotal != 1 || res.Skipped != 1 {
		t.Errorf("drawn %d skipped %d, want 1 drawn 1 skipped", res.DrawnTotal, res.Skipped)
	}
	if len(res.PDF) == 0 {
		t.Error("no output despite a successful annotation")
	}
}

func TestComposeSkipsMalformedImage(t *testing.T) {
	c := NewCompositor(zap.NewNop())
	src := buildTestPDF(t, 1)

	bad := signatureAnnotation("bad", 1)
	bad.ImageData = "data:image/png;base64,!!!not-base64!!!"

	res, err := c.Compose(context.Background(), src, []compose.Annotation{
		bad,
		textAnnotation("good", 1, "still here"),
	})
	if err != nil {
		t.Fatalf("malformed image must not abort the render: %v", err)
	}
	if res.DrawnTotal != 1 || res.Skipped != 1 {
		t.Errorf("drawn %d skipped %d, want 1 drawn 1 skipped", res.DrawnTotal, res.Skipped)
	}
}

func TestComposeUnreadableSource(t *testing.T) {
	c := NewCompositor(zap.NewNop())

	_, err := c.Compose(context.Background(), []byte("definitely not a pdf"), nil)
	if !errors.Is(err, ErrUnreadableSource) {
		t.Errorf("garbage source = %v, want ErrUnreadableSource", err)
	}
}

func TestComposeNoAnnotations(t *testing.T) {
	c := NewCompositor(zap.NewNop())
	src := buildTestPDF(t, 1)

	res, err := c.Compose(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Compose with no annotations: %v", err)
	}
	if !bytes.Equal(res.PDF, src) {
		t.Error("annotation-free render should return the source bytes untouched")
	}
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantMime string
		wantErr  bool
	}{
		{"png data url", testPNGDataURL, "image/png", false},
		{"jpeg data url", "data:image/jpeg;base64,AAAA", "image/jpeg", false},
		{"bare base64 defaults to png", "AAAA", "image/png", false},
		{"no mime defaults to png", "data:;base64,AAAA", "image/png", false},
		{"empty", "", "", true},
		{"not base64", "data:image/png;base64,@@@@", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, mime, err := DecodeDataURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL: %v", err)
			}
			if mime != tt.wantMime {
				t.Errorf("mime = %q, want %q", mime, tt.wantMime)
			}
			if len(raw) == 0 {
				t.Error("no bytes decoded")
			}
		})
	}
}
