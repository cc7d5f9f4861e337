// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coursecart/fulfillment/internal/service"
	"github.com/coursecart/fulfillment/internal/validate"
)

// Error codes produced by handlers for failures outside the service layer.
const (
	codeInvalidJSON      = "INVALID_JSON"
	codeValidation       = "VALIDATION_ERROR"
	codeUnauthorized     = "UNAUTHORIZED"
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeInternal         = "INTERNAL_ERROR"
)

const internalMessage = "An internal error occurred"

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// statusForKind maps service failure kinds to HTTP statuses.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindPaymentUnauthorized, service.KindAlreadyOwned,
		service.KindInvalidAmount, service.KindInvalidRequest:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err using its kind. Only the classified
// message reaches the client; causes are logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		logger.ErrorContext(r.Context(), "unclassified error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}

	status := statusForKind(se.Kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("kind", string(se.Kind)),
			slog.String("error", se.Error()),
		)
	}

	message := se.Message
	if message == "" {
		message = internalMessage
	}
	writeError(w, status, string(se.Kind), message)
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// writeValidationError renders a validator failure as 400.
func writeValidationError(w http.ResponseWriter, err error) {
	var ve *validate.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, codeValidation, ve.Error())
		return
	}
	writeError(w, http.StatusBadRequest, codeValidation, "Invalid request")
}
