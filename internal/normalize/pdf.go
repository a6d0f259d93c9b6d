package normalize

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/go-fitz"
)

// PDFExtractor turns a PDF document into per-page text. The normalizer
// treats it as an optional capability: a nil extractor degrades to
// empty PDF text instead of failing the document.
type PDFExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}

// FitzExtractor extracts text with MuPDF.
type FitzExtractor struct{}

// ExtractPages returns the text of each page in order. A page that
// fails to render is logged and skipped; it never aborts the document.
func (FitzExtractor) ExtractPages(data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			slog.Warn("Error extracting text from PDF page", "page", i, "error", err)
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
