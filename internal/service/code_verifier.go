package service

import (
	"image"

	apperrors "artifact-stamper/pkg/errors"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

const verifyDPI = 150

// CodeVerifier reads the QR code back out of a derived document's first page.
type CodeVerifier struct {
	inspector *PDFInspector
}

func NewCodeVerifier(inspector *PDFInspector) *CodeVerifier {
	return &CodeVerifier{inspector: inspector}
}

// ReadDocumentCode renders page 1 and decodes the code found on it
func (v *CodeVerifier) ReadDocumentCode(pdfBytes []byte) (string, error) {
	page, err := v.inspector.RenderPage(pdfBytes, 1, verifyDPI)
	if err != nil {
		return "", err
	}

	// the overlay sits in the top-right corner; try there before the full page
	b := page.Bounds()
	corner := image.Rect(b.Min.X+b.Dx()/2, b.Min.Y, b.Max.X, b.Min.Y+b.Dy()/2)
	if sub, ok := page.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		if text, err := DecodeCodeImage(sub.SubImage(corner)); err == nil {
			return text, nil
		}
	}
	return DecodeCodeImage(page)
}

// DecodeCodeImage decodes a single QR code from a raster image
func DecodeCodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", apperrors.NewEncodingError("prepare image for decoding", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", apperrors.NewEncodingError("no readable code found", err)
	}
	return result.GetText(), nil
}
