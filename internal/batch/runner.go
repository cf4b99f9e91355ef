package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-api-client/internal/logger"
	"github.com/samvad-hq/samvad-api-client/pkg/api"
	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

// Result is the outcome of one call. Exactly one of Envelope and Err is set.
type Result struct {
	ID       string             `json:"id" yaml:"id"`
	Method   string             `json:"method" yaml:"method"`
	Path     string             `json:"path" yaml:"path"`
	Envelope *api.Envelope[any] `json:"envelope,omitempty" yaml:"envelope,omitempty"`
	Err      *api.Error         `json:"-" yaml:"-"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
	Status   int                `json:"status,omitempty" yaml:"status,omitempty"`
}

// Runner executes plans sequentially against one facade client.
type Runner struct {
	client *api.Client
	log    logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRunner returns a runner sending through client. A nil log discards output.
func NewRunner(client *api.Client, log logger.Logger) *Runner {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Runner{client: client, log: log, sleep: sleepCtx}
}

// Run sends every call in order. A failed call does not stop the run; failures are
// joined into the returned error. Cancellation stops before the next call.
func (r *Runner) Run(ctx context.Context, plan Plan) ([]Result, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("batch runner is not initialized")
	}
	if len(plan.Calls) == 0 {
		return nil, fmt.Errorf("no calls to run")
	}

	results := make([]Result, 0, len(plan.Calls))
	var errs []error
	for _, call := range plan.Calls {
		if d := call.Delay(); d > 0 {
			if err := r.sleep(ctx, d); err != nil {
				errs = append(errs, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := r.runCall(ctx, call)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", call.ID, res.Err))
			r.log.ErrorObj("batch call failed", "call_error", map[string]any{
				"id":     call.ID,
				"status": res.Status,
				"error":  res.Error,
			})
			continue
		}
		r.log.InfoObj("batch call completed", "call_result", map[string]any{
			"id":     call.ID,
			"method": call.Method,
			"path":   call.Path,
		})
	}

	return results, errors.Join(errs...)
}

func (r *Runner) runCall(ctx context.Context, call Call) Result {
	opts := []httpclient.RequestOption{
		httpclient.WithParams(api.QueryFromMap(call.Query)),
		httpclient.WithHeaders(call.Headers),
	}

	var (
		env *api.Envelope[any]
		err error
	)
	switch call.Method {
	case http.MethodGet:
		env, err = api.Get[any](ctx, r.client, call.Path, opts...)
	case http.MethodDelete:
		env, err = api.Delete[any](ctx, r.client, call.Path, opts...)
	case http.MethodPost:
		env, err = api.Post[any](ctx, r.client, call.Path, call.Body, opts...)
	case http.MethodPut:
		env, err = api.Put[any](ctx, r.client, call.Path, call.Body, opts...)
	case http.MethodPatch:
		env, err = api.Patch[any](ctx, r.client, call.Path, call.Body, opts...)
	default:
		err = fmt.Errorf("unsupported method %q", call.Method)
	}

	res := Result{ID: call.ID, Method: call.Method, Path: call.Path}
	if err != nil {
		apiErr, ok := api.AsError(err)
		if !ok {
			apiErr = &api.Error{Message: err.Error()}
		}
		res.Err = apiErr
		res.Error = apiErr.Message
		res.Status = apiErr.Status
		return res
	}
	res.Envelope = env
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
