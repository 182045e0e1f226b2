package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
)

var errInvalidBody = models.NewValidationError("Invalid request body")

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	WriteJSON(w, status, map[string]string{"error": message}, logger)
}

// WriteDomainError maps err to a status code. Domain errors carry their own
// message; anything else is logged and reported as an internal error.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var de *models.Error
	if !errors.As(err, &de) {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", logger)
		return
	}

	logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "kind", de.Kind.String(), "error", de.Message)
	WriteError(w, statusFor(de.Kind), de.Message, logger)
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindIllegalState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return nil
}
