package service

import (
	"strings"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// QRCodeEncoder renders URLs as PNG QR codes
type QRCodeEncoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewQRCodeEncoder creates an encoder producing size x size pixel images
func NewQRCodeEncoder(size int, recovery string) *QRCodeEncoder {
	if size <= 0 {
		size = defaultQRSize
	}
	return &QRCodeEncoder{
		size:  size,
		level: parseRecoveryLevel(recovery),
	}
}

// Encode renders text. Content beyond the QR capacity at the configured
// recovery level fails with an encoding error; there is nothing to retry.
func (e *QRCodeEncoder) Encode(text string) (*domain.EncodedCode, error) {
	if text == "" {
		return nil, apperrors.NewEncodingError("empty payload", nil)
	}

	png, err := qrcode.Encode(text, e.level, e.size)
	if err != nil {
		return nil, apperrors.NewEncodingError("payload exceeds code capacity", err)
	}

	return &domain.EncodedCode{
		PayloadURL: text,
		ImageBytes: png,
	}, nil
}

func parseRecoveryLevel(recovery string) qrcode.RecoveryLevel {
	switch strings.ToLower(recovery) {
	case "low":
		return qrcode.Low
	case "high":
		return qrcode.High
	case "highest":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

var _ domain.CodeEncoder = (*QRCodeEncoder)(nil)
