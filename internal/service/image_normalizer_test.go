package service

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	apperrors "artifact-stamper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestImageNormalizer_JPEGPassesThrough(t *testing.T) {
	raw := jpegBytes(t, 40, 20, color.RGBA{R: 200, A: 255})

	img, err := NewImageNormalizer().Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "JPG", img.ImageType)
	assert.Equal(t, raw, img.Bytes)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 20, img.Height)
}

func TestImageNormalizer_ReencodesToPNG(t *testing.T) {
	src := solidImage(30, 50, color.RGBA{G: 180, A: 255})

	var gifBuf, bmpBuf, tiffBuf, png16Buf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, src, nil))
	require.NoError(t, bmp.Encode(&bmpBuf, src))
	require.NoError(t, tiff.Encode(&tiffBuf, src, nil))

	deep := image.NewNRGBA64(image.Rect(0, 0, 30, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 30; x++ {
			deep.Set(x, y, color.NRGBA64{G: 0xb400, A: 0xffff})
		}
	}
	require.NoError(t, png.Encode(&png16Buf, deep))

	inputs := map[string][]byte{
		"gif":    gifBuf.Bytes(),
		"bmp":    bmpBuf.Bytes(),
		"tiff":   tiffBuf.Bytes(),
		"png-16": png16Buf.Bytes(),
		"png":    pngBytes(t, 30, 50, color.RGBA{G: 180, A: 255}),
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			img, err := NewImageNormalizer().Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, "PNG", img.ImageType)
			assert.Equal(t, 30, img.Width)
			assert.Equal(t, 50, img.Height)

			_, err = png.DecodeConfig(bytes.NewReader(img.Bytes))
			require.NoError(t, err)

			// IHDR follows the 8-byte signature and the chunk length and type
			require.Greater(t, len(img.Bytes), 28)
			assert.Equal(t, "IHDR", string(img.Bytes[12:16]))
			assert.Equal(t, byte(8), img.Bytes[24], "bit depth")
			assert.Equal(t, byte(0), img.Bytes[28], "interlace method")
		})
	}
}

func TestImageNormalizer_RejectsGarbage(t *testing.T) {
	_, err := NewImageNormalizer().Normalize([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnsupportedMediaType))
}
