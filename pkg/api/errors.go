package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

const fallbackMessage = "An unexpected error occurred"

// Error is the only failure kind the facade returns. Status is 0 when no HTTP response was
// received; Data is the decoded error body when the server sent a JSON object.
type Error struct {
	Message string
	Status  int
	Code    string
	Data    *ErrorEnvelope
	Body    []byte

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HasStatus reports whether the failure carries an HTTP status.
func (e *Error) HasStatus() bool {
	return e != nil && e.Status != 0
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// normalizeError maps any failure onto *Error. Transport failures keep status, code and
// body; anything else keeps only its message.
func normalizeError(err error) *Error {
	if err == nil {
		return &Error{Message: fallbackMessage}
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var herr *httpclient.Error
	if errors.As(err, &herr) {
		body := decodeErrorBody(herr.Body())

		out := &Error{
			Message: firstNonEmpty(fieldOf(body, func(b *ErrorEnvelope) string { return b.Message }), herr.Error(), fallbackMessage),
			Status:  herr.StatusCode(),
			Code:    firstNonEmpty(fieldOf(body, func(b *ErrorEnvelope) string { return b.Error }), herr.Code),
			Data:    body,
			Body:    herr.Body(),
			cause:   err,
		}
		return out
	}

	msg := err.Error()
	if msg == "" {
		msg = fallbackMessage
	}
	return &Error{Message: msg, cause: err}
}

// recovered maps a panic value raised while building or decoding a call.
func recovered(r any) *Error {
	if err, ok := r.(error); ok {
		return normalizeError(err)
	}
	return &Error{Message: fallbackMessage, cause: fmt.Errorf("panic: %v", r)}
}

func decodeErrorBody(body []byte) *ErrorEnvelope {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return &env
}

func fieldOf(env *ErrorEnvelope, get func(*ErrorEnvelope) string) string {
	if env == nil {
		return ""
	}
	return get(env)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
