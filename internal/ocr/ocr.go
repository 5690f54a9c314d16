// Package ocr turns raw document bytes into per-page plain text.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/config"
)

// Extractor extracts per-page text from one document.
type Extractor interface {
	ExtractPages(ctx context.Context, doc []byte) ([]string, error)
}

// ErrEmptyDocument is returned for zero-length input.
var ErrEmptyDocument = eris.New("ocr: empty document")

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "native":
		return NewNativePDF(), nil
	case "text":
		return NewPlainText(), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// splitPages splits extracted text on form feeds. A trailing empty page
// (pdftotext ends every page with \f) is dropped.
func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}
