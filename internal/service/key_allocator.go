package service

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	derivedKeyPrefix = "qr-"
	maxNameLength    = 120
	tokenLength      = 12
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9.\-]`)

// KeyAllocator hands out object keys of the form
// "{epochMillis}-{token}-{sanitizedName}". The random token keeps two
// uploads of the same name within the same millisecond apart.
type KeyAllocator struct {
	now   func() time.Time
	token func() string
}

// NewKeyAllocator creates an allocator using the wall clock and random UUIDs
func NewKeyAllocator() *KeyAllocator {
	return &KeyAllocator{
		now:   time.Now,
		token: randomToken,
	}
}

// NewKeyAllocatorWith creates an allocator with injected clock and token source
func NewKeyAllocatorWith(now func() time.Time, token func() string) *KeyAllocator {
	return &KeyAllocator{now: now, token: token}
}

// OriginalKey allocates a fresh key for an uploaded file
func (a *KeyAllocator) OriginalKey(originalName string) string {
	return fmt.Sprintf("%d-%s-%s", a.now().UnixMilli(), a.token(), SanitizeName(originalName))
}

// ComposedKey allocates a fresh key for a PDF composed from an image batch,
// named after the first image.
func (a *KeyAllocator) ComposedKey(firstImageName string) string {
	return derivedKeyPrefix + a.OriginalKey(stem(SanitizeName(firstImageName))+".pdf")
}

// DerivedKeyForPDF returns the key of the stamped copy of a PDF original
func DerivedKeyForPDF(originalKey string) string {
	return derivedKeyPrefix + originalKey
}

// DerivedKeyForFile returns the key of the PDF wrapping a non-PDF original
func DerivedKeyForFile(originalKey string) string {
	return derivedKeyPrefix + stem(originalKey) + ".pdf"
}

// SanitizeName strips path components and replaces every character outside
// [A-Za-z0-9.-] with an underscore. The extension is preserved, including
// its case.
func SanitizeName(name string) string {
	base := strings.TrimSpace(name)
	base = strings.ReplaceAll(base, "\\", "/")
	base = filepath.Base(base)
	if base == "" || base == "." || base == "/" || base == ".." {
		base = "file"
	}
	sanitized := unsafeKeyChars.ReplaceAllString(base, "_")

	if len(sanitized) > maxNameLength {
		ext := filepath.Ext(sanitized)
		if len(ext) >= maxNameLength {
			ext = ""
		}
		sanitized = sanitized[:maxNameLength-len(ext)] + ext
	}
	return sanitized
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}
