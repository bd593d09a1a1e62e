package service

import (
	"bytes"
	"fmt"
	"image"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	"github.com/gen2brain/go-fitz"
)

// headerWindow is how far into the file the %PDF- marker may appear
const headerWindow = 1024

// PDFInspector validates and renders PDFs with MuPDF
type PDFInspector struct {
	logger domain.Logger
}

// NewPDFInspector creates a new PDF inspector
func NewPDFInspector(logger domain.Logger) *PDFInspector {
	return &PDFInspector{
		logger: logger,
	}
}

// PageCount opens the document and returns its number of pages. Anything
// that is not a parseable PDF with at least one page is a malformed document.
func (p *PDFInspector) PageCount(pdfBytes []byte) (int, error) {
	doc, err := p.open(pdfBytes)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return 0, apperrors.NewMalformedDocumentError("document has no pages", nil)
	}
	return pages, nil
}

// RenderPage rasterizes one page (1-indexed) at the given resolution
func (p *PDFInspector) RenderPage(pdfBytes []byte, page int, dpi float64) (image.Image, error) {
	doc, err := p.open(pdfBytes)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, apperrors.NewValidationError("page out of range", fmt.Sprintf("page %d of %d", page, doc.NumPage()))
	}

	p.logger.Debug("Rendering PDF page", "page", page, "total", doc.NumPage(), "dpi", dpi)
	img, err := doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, apperrors.NewMalformedDocumentError("render page", err)
	}
	return img, nil
}

func (p *PDFInspector) open(pdfBytes []byte) (*fitz.Document, error) {
	head := pdfBytes
	if len(head) > headerWindow {
		head = head[:headerWindow]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return nil, apperrors.NewMalformedDocumentError("missing PDF header", nil)
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, apperrors.NewMalformedDocumentError("failed to open PDF", err)
	}
	return doc, nil
}
