package httpclient

import "context"

// Client abstracts request execution so callers can inject mocks or different transports.
// *Transport is the production implementation.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// RequestInterceptor runs before a request is sent. It may mutate req; a non-nil error
// aborts the call.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs on every 2xx response. A non-nil error turns the call into a failure.
type ResponseInterceptor func(ctx context.Context, resp *Response) error

// ErrorInterceptor observes a failed call. It cannot recover it: the error is always
// returned to the caller after every interceptor ran.
type ErrorInterceptor func(ctx context.Context, err *Error)

// Logger defines the logging surface the transport relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
