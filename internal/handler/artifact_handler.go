// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	"github.com/gorilla/mux"
)

const multipartMemory = 32 << 20

// batchResponse is returned by the file batch endpoint
type batchResponse struct {
	Items    []domain.ItemResult `json:"items"`
	Recorded int                 `json:"recorded"`
	Failed   int                 `json:"failed"`
}

// ArtifactHandler handles artifact ingestion HTTP requests
type ArtifactHandler struct {
	artifactService domain.ArtifactService
	uploads         domain.UploadRepository
	logger          domain.Logger
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(artifactService domain.ArtifactService, uploads domain.UploadRepository, logger domain.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		artifactService: artifactService,
		uploads:         uploads,
		logger:          logger,
	}
}

// UploadFile ingests the single multipart field "file"
func (h *ArtifactHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	uploads, ok := h.readUploads(w, r, "file")
	if !ok {
		return
	}
	if len(uploads) != 1 {
		writeError(w, http.StatusBadRequest, "Exactly one file is required")
		return
	}

	result, err := h.artifactService.IngestSingleFile(r.Context(), uploads[0])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// UploadBatch ingests every "files" part independently
func (h *ArtifactHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	uploads, ok := h.readUploads(w, r, "files")
	if !ok {
		return
	}

	items := h.artifactService.IngestFileBatch(r.Context(), uploads)
	resp := batchResponse{Items: items}
	for _, item := range items {
		if item.Succeeded() {
			resp.Recorded++
		} else {
			resp.Failed++
		}
	}

	status := http.StatusMultiStatus
	switch {
	case resp.Failed == 0:
		status = http.StatusCreated
	case resp.Recorded == 0:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// UploadImages composes every "images" part into one PDF. The strict query
// parameter (default true) rejects batches containing non-images.
func (h *ArtifactHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	strict := true
	if raw := r.URL.Query().Get("strict"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "strict must be true or false")
			return
		}
		strict = parsed
	}

	uploads, ok := h.readUploads(w, r, "images")
	if !ok {
		return
	}

	result, err := h.artifactService.IngestImageBatch(r.Context(), uploads, strict)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetUpload returns one upload record by ID
func (h *ArtifactHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "Upload ID is required")
		return
	}

	record, err := h.uploads.FindUpload(r.Context(), id)
	if errors.Is(err, domain.ErrUploadNotFound) {
		writeError(w, http.StatusNotFound, "Upload not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load upload", err, "id", id)
		writeError(w, http.StatusInternalServerError, "Failed to load upload")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// readUploads parses the multipart body and reads every part of field into
// memory. On failure the response has been written and ok is false.
func (h *ArtifactHandler) readUploads(w http.ResponseWriter, r *http.Request, field string) (uploads []domain.RawUpload, ok bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Multipart form data is required")
		return nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		writeAppError(w, apperrors.NewValidationError(fmt.Sprintf("no files in field %q", field)))
		return nil, false
	}

	uploads = make([]domain.RawUpload, 0, len(headers))
	for _, header := range headers {
		upload, err := readPart(header)
		if err != nil {
			h.logger.Error("Failed to read upload part", err, "name", header.Filename)
			writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return nil, false
		}
		uploads = append(uploads, upload)
	}
	return uploads, true
}

func readPart(header *multipart.FileHeader) (domain.RawUpload, error) {
	file, err := header.Open()
	if err != nil {
		return domain.RawUpload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.RawUpload{}, err
	}

	// Strip any path components the client sent
	name := strings.TrimSpace(filepath.Base(header.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	return domain.RawUpload{OriginalName: name, MimeType: mimeType, Bytes: data}, nil
}
