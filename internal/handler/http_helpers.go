package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"
)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error string       `json:"error"`
	Kind  string       `json:"kind,omitempty"`
	Stage domain.Stage `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeAppError maps err to its HTTP status and reports the failure kind and
// pipeline stage when known
func writeAppError(w http.ResponseWriter, err error) {
	body := errorResponse{
		Error: err.Error(),
		Kind:  string(apperrors.TypeOf(err)),
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		body.Stage = stageErr.Stage
	}
	writeJSON(w, apperrors.GetStatusCode(err), body)
}
