package domain

import (
	"mime"
	"path/filepath"
	"strings"
)

const MimeTypePDF = "application/pdf"

// allowedImageTypes is the allow-list for image batches and single image uploads
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

var extensionTypes = map[string]string{
	".pdf":  MimeTypePDF,
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// NormalizeMimeType lower-cases the media type, strips parameters and maps
// common aliases. When the declared type is empty or generic the file
// extension decides.
func NormalizeMimeType(declared, filename string) string {
	mediaType := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	switch mediaType {
	case "image/jpg", "image/pjpeg":
		mediaType = "image/jpeg"
	case "image/x-png":
		mediaType = "image/png"
	case "image/x-ms-bmp":
		mediaType = "image/bmp"
	case "application/x-pdf":
		mediaType = MimeTypePDF
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
			return byExt
		}
	}
	return mediaType
}

// IsPDF reports whether the normalized type is a PDF
func IsPDF(mimeType string) bool {
	return mimeType == MimeTypePDF
}

// IsAllowedImage reports whether the normalized type is on the image allow-list
func IsAllowedImage(mimeType string) bool {
	return allowedImageTypes[mimeType]
}
