package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Document kinds.
const (
	KindEmail = "email"
	KindPDF   = "pdf"
)

// RawDocument is one unprocessed input: a saved email or a standalone
// PDF invoice.
type RawDocument struct {
	Kind string
	Name string
	Data []byte
}

// DocumentSource yields the raw documents modified since a cutoff.
type DocumentSource interface {
	Documents(ctx context.Context, since time.Time) ([]RawDocument, error)
}

// DirSource reads saved .eml files and standalone .pdf invoices from
// two watch directories. Either directory may be empty or missing.
type DirSource struct {
	emailDir string
	pdfDir   string
}

func NewDirSource(emailDir, pdfDir string) *DirSource {
	return &DirSource{emailDir: emailDir, pdfDir: pdfDir}
}

func (s *DirSource) Documents(ctx context.Context, since time.Time) ([]RawDocument, error) {
	var docs []RawDocument

	emails, err := readDir(ctx, s.emailDir, ".eml", KindEmail, since)
	if err != nil {
		return nil, err
	}
	docs = append(docs, emails...)

	pdfs, err := readDir(ctx, s.pdfDir, ".pdf", KindPDF, since)
	if err != nil {
		return nil, err
	}
	return append(docs, pdfs...), nil
}

func readDir(ctx context.Context, dir, ext, kind string, since time.Time) ([]RawDocument, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s directory: %w", kind, err)
	}

	var docs []RawDocument
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		docs = append(docs, RawDocument{Kind: kind, Name: entry.Name(), Data: data})
	}
	return docs, nil
}
