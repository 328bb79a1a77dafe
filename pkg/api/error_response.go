package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSONError writes a JSON error response with the given status code and message
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	json.NewEncoder(w).Encode(response)
}

// StatusForError maps engine errors to HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateKey), errors.Is(err, domain.ErrIndexExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidUpdate),
		errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrInvalidPipeline),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
