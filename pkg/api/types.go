package api

import (
	"sort"

	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

// Envelope is the standard success wrapper returned by the backend.
type Envelope[T any] struct {
	Data    T      `json:"data" yaml:"data"`
	Message string `json:"message" yaml:"message"`
	Status  string `json:"status" yaml:"status"`
}

// PaginatedEnvelope wraps one page of a list endpoint. Page and PageSize echo the
// effective request parameters.
type PaginatedEnvelope[T any] struct {
	Data     []T    `json:"data" yaml:"data"`
	Total    int64  `json:"total" yaml:"total"`
	Page     int    `json:"page" yaml:"page"`
	PageSize int    `json:"pageSize" yaml:"pageSize"`
	Message  string `json:"message" yaml:"message"`
	Status   string `json:"status" yaml:"status"`
}

// ErrorEnvelope is the structured failure body. Details maps fields to validation messages.
type ErrorEnvelope struct {
	Error   string              `json:"error" yaml:"error"`
	Message string              `json:"message" yaml:"message"`
	Status  string              `json:"status" yaml:"status"`
	Details map[string][]string `json:"details,omitempty" yaml:"details,omitempty"`
}

// SortOrder is the direction of a paginated sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// PaginationQuery holds list parameters. Zero values mean "not set"; Extra carries any
// additional filters and wins over the named fields on key conflicts.
type PaginationQuery struct {
	Page      int       `validate:"gte=0"`
	PageSize  int       `validate:"gte=0"`
	Search    string    `validate:"-"`
	SortBy    string    `validate:"-"`
	SortOrder SortOrder `validate:"omitempty,oneof=asc desc"`
	Extra     Query     `validate:"-"`
}

// IDParam is the common route parameter for single-resource endpoints.
type IDParam struct {
	ID string `json:"id" yaml:"id"`
}

// Timestamps are the audit fields shared by backend entities.
type Timestamps struct {
	CreatedAt string  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt string  `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt *string `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

// FileUploadResponse is the payload of a successful upload.
type FileUploadResponse struct {
	URL      string `json:"url" yaml:"url"`
	Filename string `json:"filename" yaml:"filename"`
	Size     int64  `json:"size" yaml:"size"`
	MimeType string `json:"mimeType" yaml:"mimeType"`
}

// File is a downloaded body plus the name it should be saved under.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

type (
	Query    = httpclient.Query
	Param    = httpclient.Param
	FormData = httpclient.FormData
)

// NewFormData returns an empty multipart payload.
func NewFormData() *FormData { return httpclient.NewFormData() }

// QueryFromMap converts m into a Query ordered by key.
func QueryFromMap(m map[string]any) Query {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := make(Query, 0, len(keys))
	for _, k := range keys {
		q = append(q, Param{Key: k, Value: m[k]})
	}
	return q
}
