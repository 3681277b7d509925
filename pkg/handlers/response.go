package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusForError maps service errors onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyLoaded), errors.Is(err, apperrors.ErrLoadInProgress):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err as a JSON error response. Internal errors are
// logged and their message is not exposed to the client.
func WriteServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := StatusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		message = "internal server error"
	}
	if writeErr := ErrorResponse(w, status, apperrors.Code(err), message); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
