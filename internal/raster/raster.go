// Package raster renders admission documents into grayscale page images for OCR.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	_ "image/jpeg" // jpeg decoding for image artifacts

	_ "golang.org/x/image/bmp"  // bmp decoding for image artifacts
	_ "golang.org/x/image/tiff" // tiff decoding for image artifacts

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/veridocproj/veridoc/internal/artifact"
)

const (
	// DefaultDPI is the render resolution. OCR accuracy degrades sharply
	// below ~200 DPI on typical marksheet scans.
	DefaultDPI = 300

	// DefaultPdftoppmPath locates pdftoppm (poppler-utils) on PATH.
	DefaultPdftoppmPath = "pdftoppm"
)

// Error records a rasterization failure for one document. The document
// contributes nothing to the call; the call itself continues.
type Error struct {
	Filename string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rasterization failed for %s: %v", e.Filename, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Page is a single rendered page image.
type Page struct {
	Number int // 1-based, document page order
	PNG    []byte
}

// Config holds rasterizer settings.
type Config struct {
	// PdftoppmPath is the pdftoppm binary (default: pdftoppm on PATH).
	PdftoppmPath string
	// DPI is the render resolution (default: 300).
	DPI int
	// MaxPages caps pages rendered per document (0 = unlimited).
	MaxPages int
	// ScratchDir hosts transient render output (default: os temp dir).
	ScratchDir string
	// Logger for render progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// Rasterizer renders documents page by page.
type Rasterizer struct {
	pdftoppm   string
	dpi        int
	maxPages   int
	scratchDir string
	logger     *slog.Logger
}

// New creates a Rasterizer with defaults filled in.
func New(cfg Config) *Rasterizer {
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = DefaultPdftoppmPath
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Rasterizer{
		pdftoppm:   cfg.PdftoppmPath,
		dpi:        cfg.DPI,
		maxPages:   cfg.MaxPages,
		scratchDir: cfg.ScratchDir,
		logger:     cfg.Logger,
	}
}

// Rasterize prepares the page iterator for a document.
// Unsupported kinds return artifact.ErrUnsupportedKind; corrupt payloads
// return *Error. PDF pages render lazily, one per Next call, so only a single
// 300 DPI page is in memory per document at a time.
func (r *Rasterizer) Rasterize(ctx context.Context, doc artifact.Document) (*Pages, error) {
	switch doc.Kind {
	case artifact.KindPDF:
		return r.rasterizePDF(ctx, doc)
	case artifact.KindImage:
		return r.rasterizeImage(doc)
	default:
		return nil, fmt.Errorf("%s: %w", doc.Filename, artifact.ErrUnsupportedKind)
	}
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, doc artifact.Document) (*Pages, error) {
	pageCount, err := api.PageCount(bytes.NewReader(doc.Data), nil)
	if err != nil {
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("failed to read PDF: %w", err)}
	}
	if pageCount == 0 {
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("PDF has no pages")}
	}
	if r.maxPages > 0 && pageCount > r.maxPages {
		r.logger.Warn("capping document pages",
			"document", doc.Filename, "pages", pageCount, "max", r.maxPages)
		pageCount = r.maxPages
	}

	// pdftoppm reads from disk, so park the payload in the scratch dir for
	// the lifetime of the iterator.
	tmpFile, err := os.CreateTemp(r.scratchDir, "veridoc-doc-*.pdf")
	if err != nil {
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("failed to create scratch file: %w", err)}
	}
	if _, err := tmpFile.Write(doc.Data); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("failed to write scratch file: %w", err)}
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("failed to close scratch file: %w", err)}
	}

	return &Pages{
		ctx:       ctx,
		raster:    r,
		filename:  doc.Filename,
		pdfPath:   tmpFile.Name(),
		pageCount: pageCount,
	}, nil
}

func (r *Rasterizer) rasterizeImage(doc artifact.Document) (*Pages, error) {
	img, format, err := image.Decode(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("failed to decode image: %w", err)}
	}

	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, &Error{Filename: doc.Filename, Err: fmt.Errorf("failed to encode grayscale PNG: %w", err)}
	}

	r.logger.Debug("decoded image artifact", "document", doc.Filename, "format", format)

	return &Pages{
		filename:  doc.Filename,
		pageCount: 1,
		single:    buf.Bytes(),
	}, nil
}

// renderPage renders one PDF page to a grayscale PNG using pdftoppm.
func (r *Rasterizer) renderPage(ctx context.Context, pdfPath string, pageNum int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp(r.scratchDir, "veridoc-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", pageNum)

	// -png: PNG output
	// -gray: grayscale render
	// -f/-l N: render exactly this page
	// -r: resolution in DPI
	// -singlefile: no page number suffix on output
	cmd := exec.CommandContext(ctx, r.pdftoppm,
		"-png",
		"-gray",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", r.dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

// Pages is a forward-only iterator over a document's rendered pages.
// It is consumed once; pages render on demand in document order.
//
//	for pages.Next() {
//	    p := pages.Page()
//	    ...
//	}
//	if err := pages.Err(); err != nil { ... }
type Pages struct {
	ctx       context.Context
	raster    *Rasterizer
	filename  string
	pdfPath   string // empty for image artifacts
	pageCount int
	single    []byte // pre-rendered page for image artifacts

	current Page
	nextNum int
	err     error
	closed  bool
}

// Count returns the total number of pages the iterator will yield.
func (p *Pages) Count() int {
	return p.pageCount
}

// Next advances to the next page, rendering it. Returns false when exhausted
// or after a render failure; check Err afterwards.
func (p *Pages) Next() bool {
	if p.err != nil || p.nextNum >= p.pageCount {
		return false
	}
	p.nextNum++

	if p.pdfPath == "" {
		p.current = Page{Number: p.nextNum, PNG: p.single}
		return true
	}

	png, err := p.raster.renderPage(p.ctx, p.pdfPath, p.nextNum)
	if err != nil {
		p.err = &Error{Filename: p.filename, Err: fmt.Errorf("page %d: %w", p.nextNum, err)}
		return false
	}
	p.current = Page{Number: p.nextNum, PNG: png}
	return true
}

// Page returns the page rendered by the last successful Next call.
func (p *Pages) Page() Page {
	return p.current
}

// Err returns the first render error, if any.
func (p *Pages) Err() error {
	return p.err
}

// Close releases the scratch copy of the document. Safe to call more than once.
func (p *Pages) Close() error {
	if p.closed || p.pdfPath == "" {
		return nil
	}
	p.closed = true
	return os.Remove(p.pdfPath)
}
