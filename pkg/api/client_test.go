package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fakeDoer struct {
	mu   sync.Mutex
	reqs []*httpclient.Request
	resp *httpclient.Response
	err  error
	fn   func(*httpclient.Request) (*httpclient.Response, error)
}

func (f *fakeDoer) Do(_ context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req)
	}
	return f.resp, f.err
}

func (f *fakeDoer) last() *httpclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return nil
	}
	return f.reqs[len(f.reqs)-1]
}

func okJSON(body string) *httpclient.Response {
	return &httpclient.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}
}

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tr := httpclient.New(httpclient.Options{BaseURL: srv.URL, WithCredentials: true, Timeout: 2 * time.Second}, nil)
	return NewClient(tr)
}

func TestGetDecodesEnvelope(t *testing.T) {
	doer := &fakeDoer{resp: okJSON(`{"data":{"id":"1","name":"Ada"},"message":"ok","status":"success"}`)}
	c := NewClient(doer)

	env, err := Get[user](context.Background(), c, "/users/1", httpclient.WithHeader("X-Trace", "t1"))
	require.NoError(t, err)
	assert.Equal(t, user{ID: "1", Name: "Ada"}, env.Data)
	assert.Equal(t, "ok", env.Message)
	assert.Equal(t, "success", env.Status)

	req := doer.last()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/users/1", req.Path)
	assert.Equal(t, "t1", req.Header.Get("X-Trace"))
	assert.Nil(t, req.Body)
}

func TestBodyVerbsForwardData(t *testing.T) {
	doer := &fakeDoer{resp: okJSON(`{"data":{"id":"9"},"message":"","status":"success"}`)}
	c := NewClient(doer)
	ctx := context.Background()
	in := map[string]any{"name": "Grace"}

	_, err := Post[user](ctx, c, "/users", in)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, doer.last().Method)
	assert.Equal(t, in, doer.last().Body)

	_, err = Put[user](ctx, c, "/users/9", in)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, doer.last().Method)

	_, err = Patch[user](ctx, c, "/users/9", in)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, doer.last().Method)

	var none map[string]any
	_, err = Post[user](ctx, c, "/users", none)
	require.NoError(t, err)
	assert.Nil(t, doer.last().Body, "nil data sends no body")

	_, err = Post[user](ctx, c, "/users", (*user)(nil))
	require.NoError(t, err)
	assert.Nil(t, doer.last().Body, "typed nil pointer sends no body")

	var noBytes []byte
	_, err = Put[user](ctx, c, "/users/9", noBytes)
	require.NoError(t, err)
	assert.Nil(t, doer.last().Body, "nil slice sends no body")

	_, err = Delete[struct{}](ctx, c, "/users/9")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, doer.last().Method)
}

func TestEmptyBodyYieldsZeroEnvelope(t *testing.T) {
	doer := &fakeDoer{resp: &httpclient.Response{StatusCode: http.StatusNoContent, Header: http.Header{}}}
	env, err := Delete[user](context.Background(), NewClient(doer), "/users/1")
	require.NoError(t, err)
	assert.Equal(t, Envelope[user]{}, *env)
}

func TestGetPaginatedDefaultsAndOverrides(t *testing.T) {
	doer := &fakeDoer{resp: okJSON(`{"data":[{"id":"1"}],"total":31,"page":1,"pageSize":10,"message":"","status":"success"}`)}
	c := NewClient(doer)

	env, err := GetPaginated[user](context.Background(), c, "/users", PaginationQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(31), env.Total)
	assert.Equal(t, 10, env.PageSize)
	assert.Len(t, env.Data, 1)
	assert.Equal(t, "page=1&pageSize=10", doer.last().Query.Encode())

	_, err = GetPaginated[user](context.Background(), c, "/users",
		PaginationQuery{
			Page:      3,
			PageSize:  25,
			Search:    "jo",
			SortBy:    "name",
			SortOrder: SortDesc,
			Extra:     Query{{Key: "role", Value: "admin"}},
		},
		httpclient.WithQuery("page", 7),
	)
	require.NoError(t, err)
	assert.Equal(t, "page=3&pageSize=25&search=jo&sortBy=name&sortOrder=desc&role=admin", doer.last().Query.Encode())
}

func TestGetPaginatedFillsPageSize(t *testing.T) {
	doer := &fakeDoer{resp: okJSON(`{"data":[],"total":0,"page":3,"pageSize":10,"message":"","status":"success"}`)}

	_, err := GetPaginated[user](context.Background(), NewClient(doer), "/users", PaginationQuery{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, "page=3&pageSize=10", doer.last().Query.Encode())
}

func TestGetPaginatedRejectsInvalidQuery(t *testing.T) {
	doer := &fakeDoer{resp: okJSON(`{}`)}
	_, err := GetPaginated[user](context.Background(), NewClient(doer), "/users", PaginationQuery{SortOrder: "sideways"})

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Contains(t, apiErr.Message, "invalid pagination query")
	assert.Zero(t, apiErr.Status)
	assert.Nil(t, doer.last(), "no request is sent")
}

func TestStatusErrorUsesServerEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"VALIDATION","message":"Email is invalid","status":"error","details":{"email":["must be an email"]}}`)
	})

	_, err := Post[user](context.Background(), c, "/users", map[string]string{"email": "x"})
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Email is invalid", apiErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	require.NotNil(t, apiErr.Data)
	assert.Equal(t, []string{"must be an email"}, apiErr.Data.Details["email"])

	var herr *httpclient.Error
	assert.True(t, errors.As(err, &herr), "transport error stays in the chain")
}

func TestRedirectStatusIsAnError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})

	env, err := Get[user](context.Background(), c, "/users/1")
	assert.Nil(t, env)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotModified, apiErr.Status)
	assert.Equal(t, httpclient.CodeBadRequest, apiErr.Code)
	assert.Equal(t, "request failed with status code 304", apiErr.Message)
}

func TestStatusErrorWithoutEnvelopeKeepsTransportFields(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})

	_, err := Get[user](context.Background(), c, "/users")
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "request failed with status code 502", apiErr.Message)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, httpclient.CodeBadResponse, apiErr.Code)
	assert.Nil(t, apiErr.Data)
	assert.Equal(t, "upstream down", string(apiErr.Body))
}

func TestNetworkErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(httpclient.New(httpclient.Options{BaseURL: url}, nil))
	_, err := Get[user](context.Background(), c, "/users")

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.False(t, apiErr.HasStatus())
	assert.Equal(t, httpclient.CodeNetwork, apiErr.Code)
	assert.NotEmpty(t, apiErr.Message)
}

func TestTimeoutNormalized(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	_, err := Get[user](context.Background(), c, "/slow", httpclient.WithTimeout(30*time.Millisecond))
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpclient.CodeTimeout, apiErr.Code)
	assert.Equal(t, "timeout of 30ms exceeded", apiErr.Message)
	assert.Zero(t, apiErr.Status)
}

func TestDecodeFailureIsAPIError(t *testing.T) {
	doer := &fakeDoer{resp: okJSON(`{"data":`)}
	_, err := Get[user](context.Background(), NewClient(doer), "/users/1")

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(apiErr.Message, "decode response:"), apiErr.Message)
	assert.Zero(t, apiErr.Status)
}

func TestPlainErrorKeepsMessage(t *testing.T) {
	doer := &fakeDoer{err: errors.New("boom")}
	_, err := Get[user](context.Background(), NewClient(doer), "/x")

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Empty(t, apiErr.Code)
	assert.Nil(t, apiErr.Data)
}

func TestPanicsBecomeAPIErrors(t *testing.T) {
	withErr := &fakeDoer{fn: func(*httpclient.Request) (*httpclient.Response, error) {
		panic(errors.New("exploded"))
	}}
	_, err := Get[user](context.Background(), NewClient(withErr), "/x")
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "exploded", apiErr.Message)

	withValue := &fakeDoer{fn: func(*httpclient.Request) (*httpclient.Response, error) {
		panic(42)
	}}
	_, err = NewClient(withValue).Download(context.Background(), "/f", "")
	apiErr, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, fallbackMessage, apiErr.Message)
}

func TestNilClient(t *testing.T) {
	var c *Client
	_, err := Get[user](context.Background(), c, "/x")
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, errNotInitialized.Error(), apiErr.Message)
}

func TestUploadSendsMultipartWithProgress(t *testing.T) {
	payload := strings.Repeat("z", 64*1024)
	var (
		gotField string
		gotFile  string
	)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotField = r.FormValue("folder")
		f, _, err := r.FormFile("file")
		if err == nil {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
		}
		_ = json.NewEncoder(w).Encode(Envelope[FileUploadResponse]{
			Data:   FileUploadResponse{URL: "/files/a.txt", Filename: "a.txt", Size: int64(len(gotFile))},
			Status: "success",
		})
	})

	form := NewFormData().Append("folder", "docs").AppendFile("file", "a.txt", strings.NewReader(payload))

	var (
		mu     sync.Mutex
		events [][2]int64
	)
	env, err := Upload[FileUploadResponse](context.Background(), c, "/upload", form, func(loaded, total int64) {
		mu.Lock()
		events = append(events, [2]int64{loaded, total})
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, "docs", gotField)
	assert.Equal(t, payload, gotFile)
	assert.Equal(t, int64(len(payload)), env.Data.Size)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.LessOrEqual(t, ev[0], ev[1])
	}
	assert.Equal(t, int64(len(payload)), events[len(events)-1][0])
}

func TestDownloadResolvesFilename(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/named" {
			w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte{0x25, 0x50, 0x44, 0x46})
	})
	ctx := context.Background()

	f, err := c.Download(ctx, "/named", "ignored.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", f.Filename)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, []byte("%PDF"), f.Data)

	f, err = c.Download(ctx, "/plain", "fallback.pdf")
	require.NoError(t, err)
	assert.Equal(t, "fallback.pdf", f.Filename)

	f, err = c.Download(ctx, "/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "download", f.Filename)
}

func TestResolveFilename(t *testing.T) {
	cases := []struct {
		name        string
		disposition string
		fallback    string
		want        string
	}{
		{"quoted", `attachment; filename="a.csv"`, "", "a.csv"},
		{"token", `attachment; filename=a.csv`, "", "a.csv"},
		{"extended", `attachment; filename*=UTF-8''r%C3%A9sum%C3%A9.pdf`, "", "résumé.pdf"},
		{"lenient", `attachment; filename=my report.pdf`, "", "my report.pdf"},
		{"strips dirs", `attachment; filename="../../etc/passwd"`, "", "passwd"},
		{"windows dirs", `attachment; filename=C:\tmp\x.txt`, "", "x.txt"},
		{"no filename param", `inline`, "keep.txt", "keep.txt"},
		{"fallback dirs", "", "/tmp/out/y.bin", "y.bin"},
		{"default", "", "", "download"},
		{"dot fallback", "", "..", "download"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveFilename(tc.disposition, tc.fallback))
		})
	}
}

func TestBuildQueryString(t *testing.T) {
	cases := []struct {
		name string
		in   Query
		want string
	}{
		{"nil", nil, ""},
		{"empty", Query{}, ""},
		{"all nil values", Query{{Key: "a", Value: nil}}, ""},
		{"ordered", Query{{Key: "page", Value: 1}, {Key: "search", Value: "test"}}, "?page=1&search=test"},
		{"nil value skipped", Query{{Key: "a", Value: nil}, {Key: "b", Value: 2}}, "?b=2"},
		{"escaped", Query{{Key: "b", Value: 2}, {Key: "a", Value: "x y"}}, "?b=2&a=x+y"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildQueryString(tc.in))
			assert.Equal(t, tc.want, BuildQueryString(tc.in), "repeat call yields the same string")
		})
	}
}

func TestQueryFromMapSortsKeys(t *testing.T) {
	q := QueryFromMap(map[string]any{"z": 1, "a": "b"})
	assert.Equal(t, "a=b&z=1", q.Encode())
	assert.Nil(t, QueryFromMap(nil))
}

func TestConcurrentCallsShareTransport(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope[string]{Data: r.URL.Query().Get("n"), Status: "success"})
	})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env, err := Get[string](context.Background(), c, "/echo", httpclient.WithQuery("n", i))
			if err != nil {
				errs <- err
				return
			}
			if env.Data != strconv.Itoa(i) {
				errs <- errors.New("mismatched response " + env.Data)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
