package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/veridocproj/veridoc/internal/artifact"
)

// encodeTestPNG produces a small color PNG for image-artifact tests.
func encodeTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestRasterize_UnsupportedKind(t *testing.T) {
	r := New(Config{})
	doc := artifact.New("notes.txt", []byte("plain text"))

	_, err := r.Rasterize(context.Background(), doc)
	if !errors.Is(err, artifact.ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestRasterize_CorruptPDF(t *testing.T) {
	r := New(Config{ScratchDir: t.TempDir()})
	doc := artifact.New("broken.pdf", []byte("this is not a pdf"))

	_, err := r.Rasterize(context.Background(), doc)
	if err == nil {
		t.Fatal("expected error for corrupt PDF")
	}

	var rasterErr *Error
	if !errors.As(err, &rasterErr) {
		t.Fatalf("expected *raster.Error, got %T", err)
	}
	if rasterErr.Filename != "broken.pdf" {
		t.Errorf("unexpected filename in error: %s", rasterErr.Filename)
	}
}

func TestRasterize_Image(t *testing.T) {
	r := New(Config{})
	doc := artifact.New("marksheet.png", encodeTestPNG(t))

	pages, err := r.Rasterize(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pages.Close()

	if pages.Count() != 1 {
		t.Errorf("expected 1 page, got %d", pages.Count())
	}

	if !pages.Next() {
		t.Fatal("expected one page from iterator")
	}
	p := pages.Page()
	if p.Number != 1 {
		t.Errorf("expected page number 1, got %d", p.Number)
	}

	// Output must be a decodable grayscale PNG.
	decoded, err := png.Decode(bytes.NewReader(p.PNG))
	if err != nil {
		t.Fatalf("page PNG does not decode: %v", err)
	}
	if _, ok := decoded.(*image.Gray); !ok {
		t.Errorf("expected grayscale page, got %T", decoded)
	}

	if pages.Next() {
		t.Error("iterator should be exhausted after one page")
	}
	if pages.Err() != nil {
		t.Errorf("unexpected iterator error: %v", pages.Err())
	}
}

func TestRasterize_UndecodableImage(t *testing.T) {
	r := New(Config{})
	doc := artifact.New("garbage.png", []byte{0x00, 0x01, 0x02, 0x03})

	_, err := r.Rasterize(context.Background(), doc)
	var rasterErr *Error
	if !errors.As(err, &rasterErr) {
		t.Fatalf("expected *raster.Error, got %v", err)
	}
}

func TestPages_CloseIdempotent(t *testing.T) {
	r := New(Config{})
	doc := artifact.New("marksheet.png", encodeTestPNG(t))

	pages, err := r.Rasterize(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := pages.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := pages.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})
	if r.dpi != DefaultDPI {
		t.Errorf("expected default DPI %d, got %d", DefaultDPI, r.dpi)
	}
	if r.pdftoppm != DefaultPdftoppmPath {
		t.Errorf("expected default binary %q, got %q", DefaultPdftoppmPath, r.pdftoppm)
	}
}
