// Package extract pulls searchable text and a publication year out of uploaded PDFs.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ErrNoMetadata is returned when the document carries no parseable creation date.
var ErrNoMetadata = errors.New("pdf creation date not found")

// Result is what an extractor learned about a document.
type Result struct {
	Content string
	PubYear int
}

var (
	creationStamp = regexp.MustCompile(`\d{14}`)
	// Predictor 1 is the identity; the reader only knows PNG-up, so the key is renamed
	// in place (same length) to keep xref offsets valid.
	identityPredictor = regexp.MustCompile(`/Predictor(\s+1)([^0-9.])`)
)

// PDFExtractor reads text-based PDFs page by page. Scanned documents yield empty content;
// a missing creation date yields ErrNoMetadata with whatever text was found.
type PDFExtractor struct {
	MaxBytes int64
}

// NewPDFExtractor builds an extractor that reads at most maxBytes from the upload.
func NewPDFExtractor(maxBytes int64) *PDFExtractor {
	if maxBytes <= 0 {
		maxBytes = 200 * 1024 * 1024
	}
	return &PDFExtractor{MaxBytes: maxBytes}
}

// Extract reads the document and returns its text and fiscal publication year.
func (e *PDFExtractor) Extract(r io.Reader) (result *Result, err error) {
	raw, err := io.ReadAll(io.LimitReader(r, e.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		return nil, fmt.Errorf("not a pdf document")
	}
	raw = identityPredictor.ReplaceAll(raw, []byte("/NoPredict$1$2"))

	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	result = &Result{Content: pageText(doc)}

	stamp := creationStamp.FindString(doc.Trailer().Key("Info").Key("CreationDate").Text())
	if stamp == "" {
		return result, ErrNoMetadata
	}
	created, err := time.Parse("20060102150405", stamp)
	if err != nil {
		return result, ErrNoMetadata
	}
	result.PubYear = FiscalYear(created)
	return result, nil
}

// FiscalYear maps a date onto the April-start academic year.
func FiscalYear(t time.Time) int {
	if t.Month() < time.April {
		return t.Year() - 1
	}
	return t.Year()
}

// pageText skips pages the reader cannot interpret instead of failing the document.
func pageText(doc *pdf.Reader) string {
	fonts := make(map[string]*pdf.Font)
	var pages []string
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n")
}
