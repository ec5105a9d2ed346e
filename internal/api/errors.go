package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nfc-command/ncc/internal/nfc"
	"github.com/nfc-command/ncc/internal/session"
)

// APIError is an error that carries its own HTTP status.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates a new API error.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, StatusCode: statusCode}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Transport-level failures.
var (
	ErrBadRequest = errors.New("BAD_REQUEST")
	ErrNotFound   = errors.New("NOT_FOUND")
)

// ToAPIError converts err to an HTTP status and a JSON error envelope.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	switch {
	case errors.Is(err, nfc.ErrInvalidIdentifier):
		return http.StatusBadRequest, marshalErrorResponse("INVALID_IDENTIFIER",
			"Identifier must be 7 bytes in hexadecimal", causeOf(err))
	case errors.Is(err, nfc.ErrInvalidBlock):
		return http.StatusBadRequest, marshalErrorResponse("INVALID_BLOCK",
			"Block must be 16 hexadecimal bytes separated by spaces", causeOf(err))
	case errors.Is(err, nfc.ErrInternal):
		return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", nil)
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Session not found", nil)
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, marshalErrorResponse("SESSION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Resource not found", nil)
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", nil)
}

func causeOf(err error) interface{} {
	var de *nfc.DeriveError
	if errors.As(err, &de) && de.Cause != nil {
		return map[string]string{"reason": de.Cause.Error()}
	}
	return nil
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	body, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		body, _ = json.Marshal(ErrorResponse("INTERNAL", "Failed to marshal error response", nil))
	}
	return body
}
