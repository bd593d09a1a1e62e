package handler

import (
	"errors"
	"net/http"
	"os"

	"artifact-stamper/internal/domain"

	"github.com/gorilla/mux"
)

// FileOpener opens stored objects for serving
type FileOpener interface {
	Open(key string) (*os.File, string, error)
}

// FileHandler serves objects of the local blob store at their public URL
type FileHandler struct {
	files  FileOpener
	logger domain.Logger
}

func NewFileHandler(files FileOpener, logger domain.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// ServeFile streams /files/{key}
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	f, contentType, err := h.files.Open(key)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeAppError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("Failed to stat stored file", err, "key", key)
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, key, info.ModTime(), f)
}
