package calcom

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingID is returned when a successful create response carries no id.
var ErrMissingID = errors.New("provider response has no id")

// APIError is returned when the provider replied with a non-2xx status.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calcom %s: %s (status %d)", e.Operation, e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
}

// parseError normalizes the provider's error payload into an APIError.
func parseError(operation string, status int, body []byte) *APIError {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	apiErr := &APIError{Operation: operation, StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if msg := rawMessage(eb.Error, true); msg != "" {
			apiErr.Message = msg
			return apiErr
		}
		if msg := rawMessage(eb.Message, false); msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 256 && !strings.HasPrefix(text, "{") {
		apiErr.Message = text
		return apiErr
	}

	apiErr.Message = http.StatusText(status)
	if apiErr.Message == "" {
		apiErr.Message = "scheduling provider request failed"
	}
	return apiErr
}

// rawMessage renders a string field as-is and an object either by its own
// message (when preferNested) or as compact JSON.
func rawMessage(raw json.RawMessage, preferNested bool) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	if preferNested {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}

	return string(raw)
}
