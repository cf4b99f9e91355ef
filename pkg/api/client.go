// Package api is the typed request facade over the shared HTTP transport. Every call
// returns either a decoded envelope or an *Error; nothing else escapes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

// Doer sends a prepared request. *httpclient.Transport satisfies it.
type Doer interface {
	Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error)
}

// Client binds the facade to one transport.
type Client struct {
	doer     Doer
	validate *validator.Validate
}

// NewClient returns a facade client sending through d.
func NewClient(d Doer) *Client {
	return &Client{
		doer:     d,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

var errNotInitialized = errors.New("api client is not initialized")

// Get fetches path and decodes the success envelope.
func Get[T any](ctx context.Context, c *Client, path string, opts ...httpclient.RequestOption) (*Envelope[T], error) {
	return call[Envelope[T]](ctx, c, func() (*httpclient.Request, error) {
		return httpclient.NewRequest(http.MethodGet, path, opts...), nil
	})
}

// Post sends data as the JSON body.
func Post[T, D any](ctx context.Context, c *Client, path string, data D, opts ...httpclient.RequestOption) (*Envelope[T], error) {
	return call[Envelope[T]](ctx, c, withBody(http.MethodPost, path, data, opts))
}

// Put sends data as the JSON body.
func Put[T, D any](ctx context.Context, c *Client, path string, data D, opts ...httpclient.RequestOption) (*Envelope[T], error) {
	return call[Envelope[T]](ctx, c, withBody(http.MethodPut, path, data, opts))
}

// Patch sends data as the JSON body.
func Patch[T, D any](ctx context.Context, c *Client, path string, data D, opts ...httpclient.RequestOption) (*Envelope[T], error) {
	return call[Envelope[T]](ctx, c, withBody(http.MethodPatch, path, data, opts))
}

// Delete removes path and decodes the success envelope.
func Delete[T any](ctx context.Context, c *Client, path string, opts ...httpclient.RequestOption) (*Envelope[T], error) {
	return call[Envelope[T]](ctx, c, func() (*httpclient.Request, error) {
		return httpclient.NewRequest(http.MethodDelete, path, opts...), nil
	})
}

// GetPaginated fetches one page of path. page defaults to 1 and pageSize to 10; every
// other parameter in q is forwarded, and q wins over query set through opts.
func GetPaginated[T any](ctx context.Context, c *Client, path string, q PaginationQuery, opts ...httpclient.RequestOption) (*PaginatedEnvelope[T], error) {
	return call[PaginatedEnvelope[T]](ctx, c, func() (*httpclient.Request, error) {
		if err := c.validate.Struct(q); err != nil {
			return nil, fmt.Errorf("invalid pagination query: %w", err)
		}
		req := httpclient.NewRequest(http.MethodGet, path, opts...)
		req.Query = req.Query.Merge(q.Params())
		return req, nil
	})
}

// Params renders q in wire order with defaults applied.
func (q PaginationQuery) Params() Query {
	page, size := q.Page, q.PageSize
	if page <= 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	out := Query{{Key: "page", Value: page}, {Key: "pageSize", Value: size}}
	if q.Search != "" {
		out = out.Set("search", q.Search)
	}
	if q.SortBy != "" {
		out = out.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		out = out.Set("sortOrder", string(q.SortOrder))
	}
	return out.Merge(q.Extra)
}

// Upload POSTs form as multipart/form-data; the transport sets the boundary. onProgress
// may be nil. It reports staging of the body, not bytes on the wire.
func Upload[T any](ctx context.Context, c *Client, path string, form *FormData, onProgress httpclient.ProgressFunc, opts ...httpclient.RequestOption) (*Envelope[T], error) {
	return call[Envelope[T]](ctx, c, func() (*httpclient.Request, error) {
		if form == nil {
			form = httpclient.NewFormData()
		}
		req := httpclient.NewRequest(http.MethodPost, path, opts...)
		req.Form = form
		if onProgress != nil {
			req.OnUploadProgress = onProgress
		}
		return req, nil
	})
}

// Download GETs path as raw bytes. The file name comes from Content-Disposition, then
// filename, then "download".
func (c *Client) Download(ctx context.Context, path, filename string, opts ...httpclient.RequestOption) (file *File, err error) {
	defer guard(&err)

	opts = append(opts[:len(opts):len(opts)], httpclient.WithResponseType(httpclient.ResponseBinary))
	resp, err := c.send(ctx, httpclient.NewRequest(http.MethodGet, path, opts...))
	if err != nil {
		return nil, err
	}
	return &File{
		Filename:    resolveFilename(resp.Header.Get("Content-Disposition"), filename),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        resp.Body,
	}, nil
}

// BuildQueryString renders q with a leading "?", or "" when nothing survives encoding.
func BuildQueryString(q Query) string {
	if s := q.Encode(); s != "" {
		return "?" + s
	}
	return ""
}

func withBody[D any](method, path string, data D, opts []httpclient.RequestOption) func() (*httpclient.Request, error) {
	return func() (*httpclient.Request, error) {
		req := httpclient.NewRequest(method, path, opts...)
		if !isNil(data) {
			req.Body = data
		}
		return req, nil
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func call[E any](ctx context.Context, c *Client, build func() (*httpclient.Request, error)) (out *E, err error) {
	defer guard(&err)

	if c == nil || c.doer == nil {
		return nil, normalizeError(errNotInitialized)
	}
	req, err := build()
	if err != nil {
		return nil, normalizeError(err)
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	var env E
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return nil, normalizeError(fmt.Errorf("decode response: %w", err))
		}
	}
	return &env, nil
}

func (c *Client) send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	if c == nil || c.doer == nil {
		return nil, normalizeError(errNotInitialized)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, normalizeError(err)
	}
	if resp == nil {
		return nil, normalizeError(errors.New("empty response"))
	}
	return resp, nil
}

// guard turns a panic in the call path into an *Error.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = recovered(r)
	}
}
