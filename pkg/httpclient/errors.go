package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Failure codes attached to *Error.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeBadResponse = "ERR_BAD_RESPONSE"
	CodeTimeout     = "ECONNABORTED"
	CodeCanceled    = "ERR_CANCELED"
	CodeNetwork     = "ERR_NETWORK"
	CodeInterceptor = "ERR_INTERCEPTOR"
)

// Error is the transport's native failure. Response is nil when no response was received.
type Error struct {
	Code     string
	Message  string
	Request  *Request
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request failed"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusCode returns the HTTP status of the failed response, or 0 without a response.
func (e *Error) StatusCode() int {
	if e == nil || e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// Body returns the raw response body, or nil without a response.
func (e *Error) Body() []byte {
	if e == nil || e.Response == nil {
		return nil
	}
	return e.Response.Body
}

// HasResponse reports whether the server answered.
func (e *Error) HasResponse() bool {
	return e != nil && e.Response != nil
}

func newStatusError(req *Request, resp *Response) *Error {
	code := CodeBadRequest
	if resp.StatusCode >= http.StatusInternalServerError {
		code = CodeBadResponse
	}
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf("request failed with status code %d", resp.StatusCode),
		Request:  req,
		Response: resp,
	}
}

func newInterceptorError(req *Request, resp *Response, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Request == nil {
			existing.Request = req
		}
		if existing.Response == nil {
			existing.Response = resp
		}
		return existing
	}
	return &Error{
		Code:     CodeInterceptor,
		Message:  err.Error(),
		Request:  req,
		Response: resp,
		Err:      err,
	}
}

// newSendError classifies a failure that produced no response. parent is the caller's
// context; a deadline that only fired on the derived context is the transport timeout.
func newSendError(parent context.Context, req *Request, timeout time.Duration, err error) *Error {
	e := &Error{Request: req, Err: err}

	switch {
	case errors.Is(parent.Err(), context.Canceled):
		e.Code = CodeCanceled
		e.Message = "canceled"
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		e.Code = CodeTimeout
		e.Message = fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds())
	case errors.Is(err, context.Canceled):
		e.Code = CodeCanceled
		e.Message = "canceled"
	default:
		e.Code = CodeNetwork
		e.Message = fmt.Sprintf("network error: %v", err)
	}
	return e
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
