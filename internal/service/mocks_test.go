package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"

	"artifact-stamper/internal/domain"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
)

type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		messages: []string{},
	}
}

func (m *MockLogger) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.record("INFO: " + msg)
}

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	if err != nil {
		msg += " - " + err.Error()
	}
	m.record("ERROR: " + msg)
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		msg += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	m.record("DEBUG: " + msg)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.record("WARN: " + msg)
}

// Lines returns the recorded lines starting with prefix, in order
func (m *MockLogger) Lines(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []string
	for _, line := range m.messages {
		if strings.HasPrefix(line, prefix) {
			lines = append(lines, line)
		}
	}
	return lines
}

// Contains reports whether any message has the given prefix and substring
func (m *MockLogger) Contains(prefix, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.messages {
		if strings.HasPrefix(line, prefix) && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// MockBlobStore keeps objects in memory. Failures can be injected per
// operation.
type MockBlobStore struct {
	mu       sync.Mutex
	base     string
	objects  map[string][]byte
	types    map[string]string
	public   map[string]bool
	putOrder []string
	deleted  []string
	failPut  func(key string) error
	failMake func(key string) error
	putHook  func(ctx context.Context, key string) error
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		base:    "https://blobs.test/public/artifacts",
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		public:  make(map[string]bool),
	}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putHook != nil {
		if err := m.putHook(ctx, key); err != nil {
			return err
		}
	}
	if m.failPut != nil {
		if err := m.failPut(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	m.putOrder = append(m.putOrder, key)
	return nil
}

func (m *MockBlobStore) MakePublic(ctx context.Context, key string) error {
	if m.failMake != nil {
		if err := m.failMake(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return domain.ErrObjectNotFound
	}
	m.public[key] = true
	return nil
}

func (m *MockBlobStore) PublicURL(key string) string {
	return m.base + "/" + key
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockBlobStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *MockBlobStore) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[key]
}

func (m *MockBlobStore) IsPublic(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.public[key]
}

func (m *MockBlobStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func (m *MockBlobStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// MockRecorder stores records in memory
type MockRecorder struct {
	mu      sync.Mutex
	records []*domain.UploadRecord
	fail    error
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

func (m *MockRecorder) RecordUpload(ctx context.Context, record *domain.UploadRecord) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	if copied.ID == "" {
		copied.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	}
	m.records = append(m.records, &copied)
	return copied.ID, nil
}

func (m *MockRecorder) Records() []*domain.UploadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.UploadRecord(nil), m.records...)
}

var errInjected = errors.New("injected failure")

// Fixture builders

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(w, h, c)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidImage(w, h, c), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// samplePDF builds a PDF with one filled page per size, so tests can tell
// pages apart by color and dimensions without needing fonts.
func samplePDF(t *testing.T, sizes ...gofpdf.SizeType) []byte {
	t.Helper()
	if len(sizes) == 0 {
		sizes = []gofpdf.SizeType{a4}
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: sizes[0]})
	pdf.SetAutoPageBreak(false, 0)
	for i, size := range sizes {
		pdf.AddPageFormat("P", size)
		r, g, b := pageColor(i)
		pdf.SetFillColor(r, g, b)
		pdf.Rect(size.Wd/4, size.Ht/2, size.Wd/2, size.Ht/4, "F")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func pageColor(i int) (int, int, int) {
	palette := [][3]int{{220, 30, 30}, {30, 160, 30}, {30, 30, 220}, {200, 160, 0}}
	c := palette[i%len(palette)]
	return c[0], c[1], c[2]
}

// colorAt samples the pixel at a fractional position of the image
func colorAt(img image.Image, fx, fy float64) color.RGBA {
	b := img.Bounds()
	x := b.Min.X + int(float64(b.Dx())*fx)
	y := b.Min.Y + int(float64(b.Dy())*fy)
	r, g, bl, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)}
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d > -40 && d < 40
}

func sameColor(c color.RGBA, r, g, b int) bool {
	return near(c.R, uint8(r)) && near(c.G, uint8(g)) && near(c.B, uint8(b))
}
