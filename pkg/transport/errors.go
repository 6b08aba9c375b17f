package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jkoenig/werkbank/pkg/api"
)

// ErrorResponse is the JSON error envelope written to clients.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail carries the error taxonomy fields exposed on the wire.
type ErrorDetail struct {
	Kind    api.ErrorKind `json:"kind"`
	Message string        `json:"message"`
	Hints   []string      `json:"hints,omitempty"`
}

// HTTPStatusFromKind maps an ErrorKind to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromKind(kind api.ErrorKind) int {
	switch kind {
	case api.ErrorKindValidation:
		return http.StatusBadRequest
	case api.ErrorKindNotFound:
		return http.StatusNotFound
	case api.ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case api.ErrorKindProvisioningFatal, api.ErrorKindGenerationExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error envelope with an explicit
// status code.
func WriteErrorResponse(w http.ResponseWriter, detail *ErrorDetail, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

// WriteError writes an error response, deriving the HTTP status and the
// envelope fields from the error's taxonomy kind. Non-pipeline errors
// are written as internal errors without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	var pe *api.PipelineError
	if !errors.As(err, &pe) {
		WriteErrorResponse(w, &ErrorDetail{
			Kind:    api.ErrorKindInternal,
			Message: "internal server error",
		}, http.StatusInternalServerError)
		return
	}

	WriteErrorResponse(w, &ErrorDetail{
		Kind:    pe.Kind,
		Message: pe.Message,
		Hints:   pe.Hints,
	}, HTTPStatusFromKind(pe.Kind))
}
