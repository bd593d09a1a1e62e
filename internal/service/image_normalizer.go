package service

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	apperrors "artifact-stamper/pkg/errors"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxImagePixels bounds decoded image size (roughly 300 MB of NRGBA)
const maxImagePixels = 80_000_000

// NormalizedImage is an image in a form gofpdf can embed
type NormalizedImage struct {
	Bytes     []byte
	ImageType string // "JPG" or "PNG"
	Width     int
	Height    int
}

// ImageNormalizer turns any supported raster format into JPEG or 8-bit PNG.
// JPEG passes through untouched; everything else is decoded and re-encoded
// as PNG, which also removes 16-bit depth and interlacing.
type ImageNormalizer struct{}

func NewImageNormalizer() *ImageNormalizer {
	return &ImageNormalizer{}
}

func (n *ImageNormalizer) Normalize(raw []byte) (*NormalizedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewUnsupportedMediaTypeError("image could not be decoded", err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperrors.NewUnsupportedMediaTypeError("image has no pixels")
	}
	if cfg.Width*cfg.Height > maxImagePixels {
		return nil, apperrors.NewValidationError("image too large", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	}

	if format == "jpeg" {
		return &NormalizedImage{Bytes: raw, ImageType: "JPG", Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewUnsupportedMediaTypeError("image could not be decoded", err.Error())
	}

	bounds := img.Bounds()
	flat := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		return nil, apperrors.NewInternalError("re-encode image", err)
	}

	return &NormalizedImage{
		Bytes:     buf.Bytes(),
		ImageType: "PNG",
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}
