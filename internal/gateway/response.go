package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorMessage writes {"error": message}
func WriteErrorMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteError maps err onto a status code and public message. Internal
// failures are logged and answered with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, fallback string) {
	status := types.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithContext(r.Context()).WithError(err).Error(fallback)
	}
	WriteErrorMessage(w, status, types.PublicMessage(err, fallback))
}

// DecodeJSON decodes the request body into v
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body")
	}
	return nil
}
