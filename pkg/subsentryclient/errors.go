package subsentryclient

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrUnauthorized is returned after the backend answers 401 and the session token was cleared.
var ErrUnauthorized = errors.New("session expired, please sign in again")

// ErrTransport matches, via errors.Is, every failure to reach the backend or read its reply.
var ErrTransport = errors.New("backend unreachable")

// fallbackMessage is shown when the error body carries no usable message.
const fallbackMessage = "Request failed"

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{Status: status, Message: messageFrom(body), Body: body}
}

// messageFrom extracts a human-readable message: message, then error, then data.message.
func messageFrom(body []byte) string {
	if !gjson.ValidBytes(body) {
		return fallbackMessage
	}
	for _, path := range []string{"message", "error", "data.message"} {
		res := gjson.GetBytes(body, path)
		if res.Type == gjson.String && res.String() != "" {
			return res.String()
		}
	}
	return fallbackMessage
}

// Message returns the user-facing text of err, with the generic fallback for unknown errors.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// MessageOr returns the backend's message for err when it sent one, otherwise fallback.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != fallbackMessage {
		return apiErr.Message
	}
	return fallback
}
