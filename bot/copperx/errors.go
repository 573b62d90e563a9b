package copperx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the payout API, with the most useful
// message the response body offered.
type APIError struct {
	Message    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("copperx: %s (status %d)", e.Message, e.StatusCode)
}

// newAPIError extracts a human-readable message from an error response body.
// The API reports failures in several shapes: a "message" string, a
// "message" array of constraint violations, or a bare "error" string.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{
		Message:    fmt.Sprintf("request failed with status %d", status),
		StatusCode: status,
		Body:       string(body),
	}

	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}

	if len(payload.Message) > 0 {
		var single string
		if json.Unmarshal(payload.Message, &single) == nil && single != "" {
			e.Message = single
			return e
		}
		var many []string
		if json.Unmarshal(payload.Message, &many) == nil && len(many) > 0 {
			e.Message = strings.Join(many, "; ")
			return e
		}
	}
	if payload.Error != "" {
		e.Message = payload.Error
	}
	return e
}
