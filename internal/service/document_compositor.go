package service

import (
	"bytes"
	"fmt"
	"math"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	"github.com/jung-kurt/gofpdf"
)

// Page geometry in points
const (
	a4Width          = 595.28
	a4Height         = 841.89
	imagePageMargin  = 36.0
	overlaySize      = 96.0
	overlayInset     = 24.0
	overlayImageName = "overlay"
)

var a4 = gofpdf.SizeType{Wd: a4Width, Ht: a4Height}

// PDFCompositor builds derived documents: either an existing PDF with the
// overlay stamped on its first page, or a new A4 document with one image per
// page and the overlay on the first.
type PDFCompositor struct {
	inspector  *PDFInspector
	normalizer *ImageNormalizer
	logger     domain.Logger
}

// NewPDFCompositor creates a new compositor
func NewPDFCompositor(inspector *PDFInspector, normalizer *ImageNormalizer, logger domain.Logger) *PDFCompositor {
	return &PDFCompositor{
		inspector:  inspector,
		normalizer: normalizer,
		logger:     logger,
	}
}

// EmbedOverlay copies every page of pdfBytes at its own size and draws the
// overlay in the top-right corner of page 1. The source is never modified.
func (c *PDFCompositor) EmbedOverlay(pdfBytes []byte, overlay []byte) (doc *domain.DerivedDocument, err error) {
	pageCount, err := c.inspector.PageCount(pdfBytes)
	if err != nil {
		return nil, err
	}

	// gofpdi panics on structures it cannot parse
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = apperrors.NewMalformedDocumentError("import PDF pages", fmt.Errorf("%v", r))
		}
	}()

	pdf := newPointDocument()
	if err := c.registerOverlay(pdf, overlay); err != nil {
		return nil, err
	}

	pages, err := importPages(pdf, pdfBytes, pageCount)
	if err != nil {
		return nil, err
	}
	for i, page := range pages {
		placePage(pdf, page)
		if i == 0 {
			drawOverlay(pdf, page.width, page.height)
		}
	}

	out, err := render(pdf)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Embedded overlay into PDF", "pages", pageCount, "bytes", len(out))
	return &domain.DerivedDocument{
		SourceKind: domain.SourceKindEmbeddedPDF,
		PageCount:  pageCount,
		Bytes:      out,
	}, nil
}

// ComposeFromImages lays out one image per A4 page, in order, scaled to fit
// inside the margins and centered. The overlay goes on page 1 only.
func (c *PDFCompositor) ComposeFromImages(images [][]byte, overlay []byte) (*domain.DerivedDocument, error) {
	if len(images) == 0 {
		return nil, apperrors.NewValidationError("no images to compose")
	}

	pdf := newPointDocument()
	if err := c.registerOverlay(pdf, overlay); err != nil {
		return nil, err
	}

	for i, raw := range images {
		img, err := c.normalizer.Normalize(raw)
		if err != nil {
			return nil, err
		}

		name := fmt.Sprintf("page-%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: img.ImageType}
		if info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Bytes)); info == nil || pdf.Err() {
			return nil, apperrors.NewUnsupportedMediaTypeError("image could not be embedded", fmt.Sprintf("image %d: %v", i+1, pdf.Error()))
		}

		pdf.AddPageFormat("P", a4)
		x, y, w, h := fitCentered(float64(img.Width), float64(img.Height), a4Width, a4Height, imagePageMargin)
		pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
		if i == 0 {
			drawOverlay(pdf, a4Width, a4Height)
		}
	}

	out, err := render(pdf)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Composed PDF from images", "pages", len(images), "bytes", len(out))
	return &domain.DerivedDocument{
		SourceKind: domain.SourceKindComposedPDF,
		PageCount:  len(images),
		Bytes:      out,
	}, nil
}

func (c *PDFCompositor) registerOverlay(pdf *gofpdf.Fpdf, overlay []byte) error {
	img, err := c.normalizer.Normalize(overlay)
	if err != nil {
		return apperrors.NewEncodingError("overlay image unusable", err)
	}
	opts := gofpdf.ImageOptions{ImageType: img.ImageType}
	if info := pdf.RegisterImageOptionsReader(overlayImageName, opts, bytes.NewReader(img.Bytes)); info == nil || pdf.Err() {
		return apperrors.NewEncodingError("register overlay image", pdf.Error())
	}
	return nil
}

func newPointDocument() *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           a4,
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCompression(true)
	return pdf
}

// drawOverlay places the overlay in the top-right corner, shrinking it on
// pages too small for the default size.
func drawOverlay(pdf *gofpdf.Fpdf, pageW, pageH float64) {
	size := math.Min(overlaySize, math.Min(pageW, pageH)/3)
	inset := math.Min(overlayInset, math.Min(pageW, pageH)/12)
	pdf.ImageOptions(overlayImageName, pageW-inset-size, inset, size, size, false,
		gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}

// fitCentered scales a srcW x srcH box to fit inside the page minus margin,
// preserving aspect ratio, and centers it.
func fitCentered(srcW, srcH, pageW, pageH, margin float64) (x, y, w, h float64) {
	boxW := pageW - 2*margin
	boxH := pageH - 2*margin
	scale := math.Min(boxW/srcW, boxH/srcH)
	w = srcW * scale
	h = srcH * scale
	x = margin + (boxW-w)/2
	y = margin + (boxH-h)/2
	return x, y, w, h
}

func render(pdf *gofpdf.Fpdf) ([]byte, error) {
	if pdf.Err() {
		return nil, apperrors.NewInternalError("compose PDF", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperrors.NewInternalError("write PDF", err)
	}
	return buf.Bytes(), nil
}

var _ domain.DocumentCompositor = (*PDFCompositor)(nil)
