package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-api-client/internal/app"
	"github.com/samvad-hq/samvad-api-client/internal/config"
	"github.com/samvad-hq/samvad-api-client/internal/logger"
	"github.com/samvad-hq/samvad-api-client/pkg/api"
	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

type options struct {
	baseURL string
	output  string
	headers []string
	query   []string
	timeout time.Duration
	metrics bool
}

type cli struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
	root   *cobra.Command

	client *app.Client
	query  api.Query
}

func newCLI(stdout, stderr io.Writer) *cli {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "apiclient",
		Short:         "Typed client for the Samvad REST API",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.opts.baseURL, "base-url", "", "API base URL (overrides API_BASE_URL)")
	pf.StringVarP(&c.opts.output, "output", "o", "", "Output format: json or yaml (overrides OUTPUT_FORMAT)")
	pf.StringArrayVarP(&c.opts.headers, "header", "H", nil, "Extra header as KEY=VALUE (repeatable)")
	pf.StringArrayVarP(&c.opts.query, "query", "q", nil, "Query parameter as KEY=VALUE (repeatable)")
	pf.DurationVar(&c.opts.timeout, "timeout", 0, "Per-call timeout (overrides API_TIMEOUT_SECONDS)")
	pf.BoolVar(&c.opts.metrics, "metrics", false, "Print transport metrics to stderr on exit")

	root.AddCommand(
		c.newGetCmd(),
		c.newDeleteCmd(),
		c.newBodyCmd("post"),
		c.newBodyCmd("put"),
		c.newBodyCmd("patch"),
		c.newListCmd(),
		c.newUploadCmd(),
		c.newDownloadCmd(),
		c.newRunCmd(),
	)

	c.root = root
	return c
}

func (c *cli) execute(ctx context.Context, args []string) error {
	c.root.SetArgs(args)
	err := c.root.ExecuteContext(ctx)
	if err != nil {
		c.report(err)
	}
	if c.opts.metrics && c.client != nil {
		if merr := c.dumpMetrics(); merr != nil {
			fmt.Fprintf(c.stderr, "apiclient: dump metrics: %v\n", merr)
		}
	}
	return err
}

func (c *cli) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if out := strings.ToLower(strings.TrimSpace(c.opts.output)); out != "" {
		if out != config.OutputJSON && out != config.OutputYAML {
			return fmt.Errorf("invalid --output %q (expected json or yaml)", c.opts.output)
		}
		cfg.OutputFormat = out
	}
	if c.opts.timeout < 0 {
		return fmt.Errorf("invalid --timeout %s", c.opts.timeout)
	}

	headers, err := parsePairs(c.opts.headers, "--header")
	if err != nil {
		return err
	}
	query, err := parsePairs(c.opts.query, "--query")
	if err != nil {
		return err
	}
	c.query = queryFromPairs(query)

	sugar, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	headerMap := make(map[string]string, len(headers))
	for _, p := range headers {
		headerMap[p.key] = p.value
	}

	client, err := app.NewClient(cfg, logger.NewZap(sugar), app.Overrides{
		BaseURL: c.opts.baseURL,
		Timeout: c.opts.timeout,
		Headers: headerMap,
	})
	if err != nil {
		return fmt.Errorf("build api client: %w", err)
	}
	c.client = client
	return nil
}

// callOpts are the request options every command applies.
func (c *cli) callOpts() []httpclient.RequestOption {
	if len(c.query) == 0 {
		return nil
	}
	return []httpclient.RequestOption{httpclient.WithParams(c.query)}
}

func (c *cli) api() *api.Client { return c.client.API() }

func (c *cli) log() logger.Logger { return c.client.Logger() }

func (c *cli) format() string {
	if c.client == nil {
		return config.OutputJSON
	}
	return c.client.Config().OutputFormat
}

type errorView struct {
	Status  int                 `json:"status,omitempty" yaml:"status,omitempty"`
	Code    string              `json:"code,omitempty" yaml:"code,omitempty"`
	Message string              `json:"message" yaml:"message"`
	Details map[string][]string `json:"details,omitempty" yaml:"details,omitempty"`
}

func (c *cli) report(err error) {
	apiErr, ok := api.AsError(err)
	if !ok {
		fmt.Fprintf(c.stderr, "apiclient: %v\n", err)
		return
	}

	view := errorView{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
	if apiErr.Data != nil {
		view.Details = apiErr.Data.Details
	}
	if rerr := render(c.stderr, c.format(), view); rerr != nil {
		fmt.Fprintf(c.stderr, "apiclient: %v\n", err)
	}
}

func (c *cli) dumpMetrics() error {
	families, err := c.client.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	return writeMetrics(c.stderr, families)
}

func writeMetrics(w io.Writer, families []*dto.MetricFamily) error {
	var errs []error
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
