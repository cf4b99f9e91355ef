package httpclient

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultContentType = "application/json"
	defaultAccept      = "application/json"
	octetStream        = "application/octet-stream"
)

// Options configures a Transport.
type Options struct {
	// BaseURL is prefixed to every relative request path. It is not validated.
	BaseURL string
	// Timeout bounds each call unless the request overrides it. Defaults to 10s.
	Timeout time.Duration
	// Headers are sent with every request on top of the JSON defaults.
	Headers map[string]string
	// WithCredentials keeps a cookie jar so session cookies round-trip.
	WithCredentials bool
	// Dev enables request/response traffic logging.
	Dev     bool
	Metrics *Metrics
}

// Transport is the long-lived HTTP client shared by every facade call. It runs an ordered
// interceptor pipeline around a resty client.
type Transport struct {
	client  *resty.Client
	timeout time.Duration
	log     Logger
	metrics *Metrics

	mu          sync.RWMutex
	onRequest   []RequestInterceptor
	onResponse  []ResponseInterceptor
	onError     []ErrorInterceptor
	credentials bool
}

// New creates a Transport with the default interceptors installed: request id, status
// observer and, for development builds, traffic logging.
func New(opts Options, log Logger) *Transport {
	opts = normalizeOptions(opts)
	log = ensureLogger(log)

	t := &Transport{
		client:      newRestyBaseClient(opts, log),
		timeout:     opts.Timeout,
		log:         log,
		metrics:     opts.Metrics,
		credentials: opts.WithCredentials,
	}

	t.UseRequest(RequestID())
	if opts.Dev {
		t.UseRequest(LogRequests(log))
		t.UseResponse(LogResponses(log))
	}
	t.UseError(ObserveStatus(log, opts.Dev))
	return t
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)
	return opts
}

// newRestyBaseClient creates the underlying resty.Client. Timeouts are applied per call
// through the request context, so the client itself has none.
func newRestyBaseClient(opts Options, log Logger) *resty.Client {
	c := resty.New()
	c.SetLogger(restyLogger{log: log})
	if opts.BaseURL != "" {
		c.SetBaseURL(opts.BaseURL)
	}
	c.SetHeader("Content-Type", defaultContentType)
	c.SetHeader("Accept", defaultAccept)
	if len(opts.Headers) > 0 {
		c.SetHeaders(opts.Headers)
	}
	if !opts.WithCredentials {
		c.SetCookieJar(nil)
	}
	return c
}

// UseRequest appends request interceptors. Registration is meant for startup.
func (t *Transport) UseRequest(fns ...RequestInterceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := make([]RequestInterceptor, 0, len(t.onRequest)+len(fns))
	next = append(next, t.onRequest...)
	for _, fn := range fns {
		if fn != nil {
			next = append(next, fn)
		}
	}
	t.onRequest = next
}

// UseResponse appends success-path response interceptors.
func (t *Transport) UseResponse(fns ...ResponseInterceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := make([]ResponseInterceptor, 0, len(t.onResponse)+len(fns))
	next = append(next, t.onResponse...)
	for _, fn := range fns {
		if fn != nil {
			next = append(next, fn)
		}
	}
	t.onResponse = next
}

// UseError appends failure observers.
func (t *Transport) UseError(fns ...ErrorInterceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := make([]ErrorInterceptor, 0, len(t.onError)+len(fns))
	next = append(next, t.onError...)
	for _, fn := range fns {
		if fn != nil {
			next = append(next, fn)
		}
	}
	t.onError = next
}

// SendsCredentials reports whether cookies are kept between calls.
func (t *Transport) SendsCredentials() bool { return t.credentials }

// Timeout is the default per-call timeout.
func (t *Transport) Timeout() time.Duration { return t.timeout }

func (t *Transport) pipeline() ([]RequestInterceptor, []ResponseInterceptor, []ErrorInterceptor) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onRequest, t.onResponse, t.onError
}

// Do runs req through the interceptor pipeline and sends it. Non-2xx responses (including
// unfollowed 3xx),
// interceptor errors and send failures are all returned as *Error after the error
// interceptors observed them.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if req == nil {
		return nil, fmt.Errorf("request must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.startedAt = time.Now()

	onRequest, onResponse, onError := t.pipeline()

	for _, fn := range onRequest {
		if err := fn(ctx, req); err != nil {
			return nil, t.fail(ctx, onError, newInterceptorError(req, nil, err))
		}
	}

	resp, sendErr := t.send(ctx, req)
	if sendErr != nil {
		return nil, t.fail(ctx, onError, sendErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, t.fail(ctx, onError, newStatusError(req, resp))
	}

	for _, fn := range onResponse {
		if err := fn(ctx, resp); err != nil {
			return nil, t.fail(ctx, onError, newInterceptorError(req, resp, err))
		}
	}

	t.metrics.observe(req.Method, strconv.Itoa(resp.StatusCode), time.Since(req.startedAt))
	return resp, nil
}

func (t *Transport) send(parent context.Context, req *Request) (*Response, *Error) {
	timeout := t.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	r := t.client.R().SetContext(ctx)
	if len(req.Header) > 0 {
		r.SetHeaderMultiValues(req.Header)
	}

	if req.Form != nil {
		applyForm(r, req.Form.withProgress(req.OnUploadProgress))
	} else if req.Body != nil {
		r.SetBody(req.Body)
	}

	raw, err := r.Execute(req.Method, req.URL())
	if err != nil {
		return nil, newSendError(parent, req, timeout, err)
	}

	return &Response{
		Request:    req,
		StatusCode: raw.StatusCode(),
		Header:     raw.Header(),
		Body:       raw.Body(),
		Duration:   raw.Time(),
	}, nil
}

func applyForm(r *resty.Request, form *FormData) {
	if len(form.Fields) > 0 {
		values := make(url.Values, len(form.Fields))
		for _, f := range form.Fields {
			values.Add(f.Name, f.Value)
		}
		r.SetFormDataFromValues(values)
	}

	fields := make([]*resty.MultipartField, 0, len(form.Files))
	for _, f := range form.Files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(f.FileName))
		}
		if contentType == "" {
			contentType = octetStream
		}
		fields = append(fields, &resty.MultipartField{
			Param:       f.Field,
			FileName:    f.FileName,
			ContentType: contentType,
			Reader:      f.Reader,
		})
	}
	r.SetMultipartFields(fields...)
}

func (t *Transport) fail(ctx context.Context, observers []ErrorInterceptor, err *Error) error {
	for _, fn := range observers {
		fn(ctx, err)
	}
	code := err.Code
	if err.Response != nil {
		code = strconv.Itoa(err.Response.StatusCode)
	}
	method := ""
	var started time.Time
	if err.Request != nil {
		method = err.Request.Method
		started = err.Request.startedAt
	}
	t.metrics.observe(method, code, time.Since(started))
	return err
}

// Get issues a GET request.
func (t *Transport) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return t.Do(ctx, NewRequest(http.MethodGet, path, opts...))
}

// Post issues a POST request with body.
func (t *Transport) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	req := NewRequest(http.MethodPost, path, opts...)
	req.Body = body
	return t.Do(ctx, req)
}

// Put issues a PUT request with body.
func (t *Transport) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	req := NewRequest(http.MethodPut, path, opts...)
	req.Body = body
	return t.Do(ctx, req)
}

// Patch issues a PATCH request with body.
func (t *Transport) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	req := NewRequest(http.MethodPatch, path, opts...)
	req.Body = body
	return t.Do(ctx, req)
}

// Delete issues a DELETE request.
func (t *Transport) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return t.Do(ctx, NewRequest(http.MethodDelete, path, opts...))
}

// restyLogger routes resty's internal warnings to the structured logger.
type restyLogger struct {
	log Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.ErrorObj(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.WarnObj(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.DebugObj(fmt.Sprintf(format, v...), "component", "resty")
}
