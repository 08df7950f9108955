package api

import (
	"encoding/json"
	"net/http"

	"loan-api/internal/common/errors"
)

// Fixed error bodies.
const (
	msgEndpointNotFound = "Endpoint not found"
	msgInternal         = "Something went wrong!"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{"error": message})
}

// writeStandardError renders a StandardError. Only the validation and
// invalid-status errors carry extra fields; anything unexpected is opaque.
func writeStandardError(w http.ResponseWriter, stdErr *errors.StandardError) {
	status := errors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		Error(w, status, msgInternal)
		return
	}

	body := map[string]interface{}{"error": stdErr.Message}
	switch stdErr.Code {
	case errors.ErrCodeApplicationValidationFailed:
		body["details"] = stdErr.Metadata["details"]
	case errors.ErrCodeInvalidStatus:
		body["validStatuses"] = stdErr.Metadata["validStatuses"]
	}
	JSON(w, status, body)
}
