package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"
)

// MockArtifactService records calls and returns canned results
type MockArtifactService struct {
	single     *domain.IngestResult
	singleErr  error
	images     *domain.IngestResult
	imagesErr  error
	batch      func(uploads []domain.RawUpload) []domain.ItemResult
	lastUpload []domain.RawUpload
	lastStrict bool
}

func (m *MockArtifactService) IngestSingleFile(ctx context.Context, upload domain.RawUpload) (*domain.IngestResult, error) {
	m.lastUpload = []domain.RawUpload{upload}
	return m.single, m.singleErr
}

func (m *MockArtifactService) IngestImageBatch(ctx context.Context, uploads []domain.RawUpload, allMustBeImages bool) (*domain.IngestResult, error) {
	m.lastUpload, m.lastStrict = uploads, allMustBeImages
	return m.images, m.imagesErr
}

func (m *MockArtifactService) IngestFileBatch(ctx context.Context, uploads []domain.RawUpload) []domain.ItemResult {
	m.lastUpload = uploads
	return m.batch(uploads)
}

type MockUploadRepository struct {
	records map[string]*domain.UploadRecord
	err     error
}

func (m *MockUploadRepository) RecordUpload(ctx context.Context, record *domain.UploadRecord) (string, error) {
	m.records[record.ID] = record
	return record.ID, nil
}

func (m *MockUploadRepository) FindUpload(ctx context.Context, id string) (*domain.UploadRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if record, ok := m.records[id]; ok {
		return record, nil
	}
	return nil, domain.ErrUploadNotFound
}

type testPart struct {
	field       string
	name        string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, target string, parts ...testPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = io.WriteString(w, p.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestRouter(svc *MockArtifactService, repo *MockUploadRepository) http.Handler {
	if repo == nil {
		repo = &MockUploadRepository{records: map[string]*domain.UploadRecord{}}
	}
	return NewRouter(NewArtifactHandler(svc, repo, NewMockHandlerLogger()), nil, nil)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestUploadFile_Success(t *testing.T) {
	svc := &MockArtifactService{single: &domain.IngestResult{
		OriginalURL: "https://blobs.test/a.pdf",
		DerivedURL:  "https://blobs.test/qr-a.pdf",
		RecordID:    "rec-1",
		PageCount:   2,
	}}
	router := newTestRouter(svc, nil)

	req := multipartRequest(t, "/api/v1/artifacts", testPart{"file", "../../etc/report.pdf", "application/pdf", "%PDF-1.4"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var got domain.IngestResult
	decodeBody(t, rr, &got)
	if got.DerivedURL != "https://blobs.test/qr-a.pdf" || got.RecordID != "rec-1" {
		t.Fatalf("unexpected result: %+v", got)
	}

	if len(svc.lastUpload) != 1 {
		t.Fatalf("expected one upload, got %d", len(svc.lastUpload))
	}
	upload := svc.lastUpload[0]
	if upload.OriginalName != "report.pdf" {
		t.Fatalf("expected path components stripped, got %q", upload.OriginalName)
	}
	if upload.MimeType != "application/pdf" || string(upload.Bytes) != "%PDF-1.4" {
		t.Fatalf("unexpected upload: %+v", upload)
	}
}

func TestUploadFile_SniffsMissingContentType(t *testing.T) {
	svc := &MockArtifactService{single: &domain.IngestResult{}}
	router := newTestRouter(svc, nil)

	req := multipartRequest(t, "/api/v1/artifacts", testPart{"file", "scan", "", "%PDF-1.7\n..."})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if svc.lastUpload[0].MimeType != "application/pdf" {
		t.Fatalf("expected sniffed application/pdf, got %q", svc.lastUpload[0].MimeType)
	}
}

func TestUploadFile_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
		stage  domain.Stage
	}{
		{
			name:   "unsupported media type",
			err:    &domain.StageError{Stage: domain.StageReceived, Err: apperrors.NewUnsupportedMediaTypeError("unsupported file type")},
			status: http.StatusUnsupportedMediaType,
			kind:   "unsupported_media_type",
			stage:  domain.StageReceived,
		},
		{
			name:   "malformed pdf",
			err:    &domain.StageError{Stage: domain.StageCodeReady, Err: apperrors.NewMalformedDocumentError("cannot parse PDF", nil)},
			status: http.StatusUnprocessableEntity,
			kind:   "malformed_document",
			stage:  domain.StageCodeReady,
		},
		{
			name:   "storage",
			err:    &domain.StageError{Stage: domain.StageDerivedComposed, Err: apperrors.NewStorageWriteError("upload object", nil)},
			status: http.StatusBadGateway,
			kind:   "storage_write",
			stage:  domain.StageDerivedComposed,
		},
		{
			name:   "timeout",
			err:    &domain.StageError{Stage: domain.StageOriginalStored, Err: apperrors.NewTimeoutError("pipeline run timed out", context.DeadlineExceeded)},
			status: http.StatusGatewayTimeout,
			kind:   "timeout",
			stage:  domain.StageOriginalStored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&MockArtifactService{singleErr: tt.err}, nil)
			req := multipartRequest(t, "/api/v1/artifacts", testPart{"file", "a.pdf", "application/pdf", "x"})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			var body errorResponse
			decodeBody(t, rr, &body)
			if body.Kind != tt.kind || body.Stage != tt.stage {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestUploadFile_MissingField(t *testing.T) {
	router := newTestRouter(&MockArtifactService{}, nil)

	req := multipartRequest(t, "/api/v1/artifacts", testPart{"other", "a.pdf", "application/pdf", "x"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestUploadFile_NotMultipart(t *testing.T) {
	router := newTestRouter(&MockArtifactService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/artifacts", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func batchOutcome(failIndexes ...int) func([]domain.RawUpload) []domain.ItemResult {
	failed := make(map[int]bool)
	for _, i := range failIndexes {
		failed[i] = true
	}
	return func(uploads []domain.RawUpload) []domain.ItemResult {
		items := make([]domain.ItemResult, len(uploads))
		for i, u := range uploads {
			items[i] = domain.ItemResult{Index: i, OriginalName: u.OriginalName, Status: domain.ItemStatusRecorded,
				Result: &domain.IngestResult{DerivedURL: "https://blobs.test/qr-" + u.OriginalName}}
			if failed[i] {
				items[i] = domain.ItemResult{Index: i, OriginalName: u.OriginalName, Status: domain.ItemStatusFailed,
					Failure: &domain.Failure{Kind: "malformed_document", Stage: domain.StageCodeReady, Message: "cannot parse PDF"}}
			}
		}
		return items
	}
}

func TestUploadBatch_Status(t *testing.T) {
	tests := []struct {
		name     string
		fail     []int
		status   int
		recorded int
	}{
		{"all recorded", nil, http.StatusCreated, 3},
		{"mixed", []int{1}, http.StatusMultiStatus, 2},
		{"all failed", []int{0, 1, 2}, http.StatusUnprocessableEntity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockArtifactService{batch: batchOutcome(tt.fail...)}
			router := newTestRouter(svc, nil)

			req := multipartRequest(t, "/api/v1/artifacts/batch",
				testPart{"files", "a.pdf", "application/pdf", "a"},
				testPart{"files", "b.pdf", "application/pdf", "b"},
				testPart{"files", "c.png", "image/png", "c"},
			)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			var body batchResponse
			decodeBody(t, rr, &body)
			if len(body.Items) != 3 || body.Recorded != tt.recorded || body.Failed != 3-tt.recorded {
				t.Fatalf("unexpected batch body: %+v", body)
			}
			for i, item := range body.Items {
				if item.Index != i {
					t.Fatalf("expected items in input order, got index %d at %d", item.Index, i)
				}
				if !item.Succeeded() && item.Result != nil {
					t.Fatalf("failed item carries a result: %+v", item)
				}
			}
			if names := []string{svc.lastUpload[0].OriginalName, svc.lastUpload[2].OriginalName}; names[0] != "a.pdf" || names[1] != "c.png" {
				t.Fatalf("uploads passed out of order: %v", names)
			}
		})
	}
}

func TestUploadImages_StrictParameter(t *testing.T) {
	tests := []struct {
		query  string
		strict bool
		status int
	}{
		{"", true, http.StatusCreated},
		{"?strict=false", false, http.StatusCreated},
		{"?strict=true", true, http.StatusCreated},
		{"?strict=maybe", false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run("query "+tt.query, func(t *testing.T) {
			svc := &MockArtifactService{images: &domain.IngestResult{DerivedURL: "https://blobs.test/qr-a.pdf", PageCount: 2}}
			router := newTestRouter(svc, nil)

			req := multipartRequest(t, "/api/v1/artifacts/images"+tt.query,
				testPart{"images", "a.png", "image/png", "a"},
				testPart{"images", "b.jpg", "image/jpeg", "b"},
			)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			if tt.status != http.StatusCreated {
				return
			}
			if svc.lastStrict != tt.strict {
				t.Fatalf("expected strict=%v, got %v", tt.strict, svc.lastStrict)
			}
			if len(svc.lastUpload) != 2 || svc.lastUpload[1].OriginalName != "b.jpg" {
				t.Fatalf("unexpected uploads: %+v", svc.lastUpload)
			}
		})
	}
}

func TestUploadImages_Rejected(t *testing.T) {
	svc := &MockArtifactService{imagesErr: &domain.StageError{
		Stage: domain.StageReceived,
		Err:   apperrors.NewUnsupportedMediaTypeError("all files must be non-empty images"),
	}}
	router := newTestRouter(svc, nil)

	req := multipartRequest(t, "/api/v1/artifacts/images", testPart{"images", "notes.txt", "text/plain", "hi"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, rr.Code)
	}
}

func TestGetUpload(t *testing.T) {
	record := &domain.UploadRecord{
		ID:           "rec-1",
		OriginalName: "a.png, b.png",
		DerivedURL:   "https://blobs.test/qr-a.pdf",
		CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	repo := &MockUploadRepository{records: map[string]*domain.UploadRecord{record.ID: record}}
	router := newTestRouter(&MockArtifactService{}, repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/rec-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got domain.UploadRecord
	decodeBody(t, rr, &got)
	if got.OriginalName != record.OriginalName || got.DerivedURL != record.DerivedURL {
		t.Fatalf("unexpected record: %+v", got)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	repo.err = io.ErrUnexpectedEOF
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/rec-1", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
