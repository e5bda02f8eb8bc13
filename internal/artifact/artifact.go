// Package artifact models uploaded admission documents before processing.
package artifact

import (
	"errors"
	"path/filepath"
	"strings"
)

// Kind classifies a document by its container format.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

// ErrUnsupportedKind indicates a document whose format the pipeline cannot
// rasterize. Callers skip such documents rather than failing the call.
var ErrUnsupportedKind = errors.New("unsupported artifact kind")

// Document is a single uploaded file. The engine reads Data during
// rasterization and does not retain it afterwards.
type Document struct {
	Filename string
	Kind     Kind
	Data     []byte
}

// New builds a Document with the kind detected from the filename.
func New(filename string, data []byte) Document {
	return Document{
		Filename: filename,
		Kind:     DetectKind(filename),
		Data:     data,
	}
}

// imageExtensions lists the raster image formats accepted for direct OCR.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// DetectKind maps a filename extension to a Kind.
func DetectKind(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return KindPDF
	case imageExtensions[ext]:
		return KindImage
	default:
		return KindUnknown
	}
}
