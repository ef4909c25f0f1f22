package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoCredential is returned before any network I/O when no bearer
// credential is configured. Callers render the no-permission placeholder
// instead of an error state.
var ErrNoCredential = errors.New("no access credential configured")

// APIError carries a backend rejection. Message is user-facing text taken
// verbatim from the response body when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// parseAPIError extracts the backend's error text. The proxy is not
// consistent about the field it uses, so several shapes are tried in
// order: {"detail": {"error": ...}}, {"detail": ...}, {"error":
// {"message": ...}}, {"error": ...}, {"message": ...}.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apiErr
	}

	if msg := messageFrom(envelope.Detail); msg != "" {
		apiErr.Message = msg
		return apiErr
	}
	if msg := messageFrom(envelope.Error); msg != "" {
		apiErr.Message = msg
		return apiErr
	}
	apiErr.Message = envelope.Message
	return apiErr
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var nested struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested.Error != "" {
			return nested.Error
		}
		return nested.Message
	}
	return ""
}
