package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"

	maxLoggedBodyBytes = 2048
)

// RequestID tags every request with an X-Request-Id header unless the caller set one.
func RequestID() RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}
		return nil
	}
}

// LogRequests logs the outgoing method, url, params and payload.
func LogRequests(log Logger) RequestInterceptor {
	log = ensureLogger(log)
	return func(_ context.Context, req *Request) error {
		meta := map[string]any{
			"method":     req.Method,
			"url":        req.URL(),
			"params":     queryMap(req.Query),
			"request_id": req.Header.Get(RequestIDHeader),
		}
		if req.Form != nil {
			meta["form_fields"] = len(req.Form.Fields)
			meta["form_files"] = len(req.Form.Files)
		} else if req.Body != nil {
			meta["data"] = req.Body
		}
		log.InfoObj("[API Request] "+req.Method+" "+req.Path, "api_request", meta)
		return nil
	}
}

// LogResponses logs status and body of every successful response.
func LogResponses(log Logger) ResponseInterceptor {
	log = ensureLogger(log)
	return func(_ context.Context, resp *Response) error {
		method, path := "", ""
		if resp.Request != nil {
			method, path = resp.Request.Method, resp.Request.Path
		}
		log.InfoObj("[API Response] "+method+" "+path, "api_response", map[string]any{
			"status":      resp.StatusCode,
			"data":        bodyForLog(resp),
			"duration_ms": resp.Duration.Milliseconds(),
		})
		return nil
	}
}

// ObserveStatus performs the status-keyed side effects of a failed call. They are purely
// observational; the failure is always propagated.
//
// A 401 marks the originating request as retried. No refresh or retry happens here.
func ObserveStatus(log Logger, dev bool) ErrorInterceptor {
	log = ensureLogger(log)
	return func(_ context.Context, err *Error) {
		status := err.StatusCode()
		meta := statusMeta(err)

		switch status {
		case http.StatusUnauthorized:
			if err.Request != nil && !err.Request.Retried {
				err.Request.Retried = true
			}
			log.WarnObj("[API] Unauthorized - authentication required", "api_status", meta)
		case http.StatusForbidden:
			log.WarnObj("[API] Access forbidden - insufficient permissions", "api_status", meta)
		case http.StatusNotFound:
			log.WarnObj("[API] Resource not found", "api_status", meta)
		case http.StatusInternalServerError:
			log.ErrorObj("[API] Server error - please try again later", "api_status", meta)
		}

		if dev {
			var data any
			if err.Response != nil {
				data = bodyForLog(err.Response)
			}
			log.ErrorObj("[API Response Error]", "api_error", map[string]any{
				"status":  status,
				"data":    data,
				"message": err.Error(),
				"code":    err.Code,
			})
		}
	}
}

func statusMeta(err *Error) map[string]any {
	meta := map[string]any{"status": err.StatusCode()}
	if err.Request != nil {
		meta["method"] = err.Request.Method
		meta["url"] = err.Request.URL()
		meta["request_id"] = err.Request.Header.Get(RequestIDHeader)
	}
	return meta
}

func queryMap(q Query) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for _, p := range q {
		if v, ok := FormatValue(p.Value); ok {
			out[p.Key] = v
		}
	}
	return out
}

// bodyForLog decodes JSON bodies for structured logging and truncates everything else.
func bodyForLog(resp *Response) any {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}
	if resp.Request != nil && resp.Request.ResponseType == ResponseBinary {
		return map[string]any{"bytes": len(resp.Body)}
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var decoded any
		if err := json.Unmarshal(resp.Body, &decoded); err == nil {
			return decoded
		}
	}
	return bodySnippet(resp.Body)
}

func bodySnippet(body []byte) string {
	if len(body) > maxLoggedBodyBytes {
		body = body[:maxLoggedBodyBytes]
	}
	return strings.TrimSpace(string(body))
}
