package httpclient

import (
	"net/http"
	"strings"
	"time"
)

// ResponseType tells the transport how the caller intends to read the body.
type ResponseType string

const (
	ResponseJSON   ResponseType = "json"
	ResponseBinary ResponseType = "binary"
)

// ProgressFunc receives upload progress. total is 0 when the payload size is unknown.
// Progress is measured while the multipart body is read into resty's request buffer, so the
// final event fires before the body is written to the network.
type ProgressFunc func(loaded, total int64)

// Request is the in-flight configuration of a single call. Interceptors receive the same
// pointer, so mutations made by one stage are visible to the next.
type Request struct {
	Method       string
	Path         string
	Query        Query
	Header       http.Header
	Body         any
	Form         *FormData
	ResponseType ResponseType
	// Timeout overrides the transport timeout for this call when positive.
	Timeout          time.Duration
	OnUploadProgress ProgressFunc
	// Retried is set by the 401 guard so a later refresh flow can retry at most once.
	Retried bool

	startedAt time.Time
}

// NewRequest builds a request and applies the per-call options in order.
func NewRequest(method, path string, opts ...RequestOption) *Request {
	req := &Request{
		Method:       strings.ToUpper(strings.TrimSpace(method)),
		Path:         path,
		Header:       make(http.Header),
		ResponseType: ResponseJSON,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	return req
}

// URL returns the path with the encoded query appended.
func (r *Request) URL() string {
	if r == nil {
		return ""
	}
	qs := r.Query.Encode()
	if qs == "" {
		return r.Path
	}
	sep := "?"
	if strings.Contains(r.Path, "?") {
		sep = "&"
	}
	return r.Path + sep + qs
}

// RequestOption overrides part of a request's configuration for one call.
type RequestOption func(*Request)

// WithHeader sets a single header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.Header.Set(key, value)
	}
}

// WithHeaders sets several headers, skipping blank keys.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		for k, v := range headers {
			if strings.TrimSpace(k) == "" {
				continue
			}
			r.Header.Set(k, v)
		}
	}
}

// WithQuery sets one query parameter, replacing an existing value for key.
func WithQuery(key string, value any) RequestOption {
	return func(r *Request) {
		r.Query = r.Query.Set(key, value)
	}
}

// WithParams merges q into the request query; later pairs win.
func WithParams(q Query) RequestOption {
	return func(r *Request) {
		r.Query = r.Query.Merge(q)
	}
}

// WithTimeout overrides the transport timeout for a single call.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

// WithResponseType declares how the body will be consumed.
func WithResponseType(rt ResponseType) RequestOption {
	return func(r *Request) {
		r.ResponseType = rt
	}
}

// WithUploadProgress registers a progress callback for multipart bodies.
func WithUploadProgress(fn ProgressFunc) RequestOption {
	return func(r *Request) {
		r.OnUploadProgress = fn
	}
}

// Response is a fully buffered HTTP response.
type Response struct {
	Request    *Request
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}
