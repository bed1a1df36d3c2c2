package ingestion

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Page is one non-empty page of extracted, cleaned text.
type Page struct {
	Text   string
	Number int // 1-based page number in the source document
}

// PDFExtractor pulls per-page text out of a PDF. When the page-level parser
// cannot produce anything usable it falls back to docconv, which loses page
// boundaries and reports the whole document as page 1.
type PDFExtractor struct {
	logger *zap.Logger
}

func NewPDFExtractor(logger *zap.Logger) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExtractor{logger: logger}
}

// IsPDF sniffs the magic bytes; a PDF starts with "%PDF-".
func IsPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

// ExtractPages returns the cleaned text of every non-empty page, in order.
// Whitespace-only pages are dropped.
func (e *PDFExtractor) ExtractPages(data []byte) ([]Page, error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("not a PDF: missing %%PDF header")
	}

	pages, err := e.extractPerPage(data)
	if err != nil || len(pages) == 0 {
		e.logger.Warn("per-page pdf extraction failed, falling back to docconv",
			zap.Error(err), zap.Int("pages", len(pages)))
		return e.extractWhole(data)
	}
	return pages, nil
}

func (e *PDFExtractor) extractPerPage(data []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("pdf page extraction failed", zap.Int("page", i), zap.Error(err))
			continue
		}
		text = CleanText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Text: text, Number: i})
	}
	return pages, nil
}

func (e *PDFExtractor) extractWhole(data []byte) ([]Page, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}
	text := CleanText(res.Body)
	if text == "" {
		return nil, fmt.Errorf("docconv: extracted empty text")
	}
	return []Page{{Text: text, Number: 1}}, nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Letters and digits in any script survive; only symbols outside the
	// basic punctuation set are stripped.
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()\[\]{}]`)
)

// CleanText collapses whitespace and strips characters outside the basic
// punctuation set.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = punctRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
