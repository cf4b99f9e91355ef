package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samvad-hq/samvad-api-client/internal/config"
	"github.com/samvad-hq/samvad-api-client/internal/logger"
	"github.com/samvad-hq/samvad-api-client/pkg/api"
	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

// Overrides are per-invocation settings that take precedence over config.
type Overrides struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// Client wires config, logging, metrics and the shared transport into a facade client.
type Client struct {
	cfg       *config.Config
	transport *httpclient.Transport
	api       *api.Client
	registry  *prometheus.Registry
	log       logger.Logger
}

// NewClient builds the runtime from config. The transport is owned by the returned Client.
func NewClient(cfg *config.Config, log logger.Logger, ov Overrides) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	baseURL := cfg.APIBaseURL
	if s := strings.TrimSpace(ov.BaseURL); s != "" {
		baseURL = s
	}
	timeout := cfg.APITimeout
	if ov.Timeout > 0 {
		timeout = ov.Timeout
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	reg := prometheus.NewRegistry()
	transport := httpclient.New(httpclient.Options{
		BaseURL:         baseURL,
		Timeout:         timeout,
		Headers:         ov.Headers,
		WithCredentials: cfg.APIWithCredentials,
		Dev:             cfg.IsDevelopment(),
		Metrics:         httpclient.NewMetrics(reg),
	}, log)

	log.DebugObj("api client ready", "transport", map[string]any{
		"base_url":         baseURL,
		"timeout_ms":       timeout.Milliseconds(),
		"with_credentials": cfg.APIWithCredentials,
		"dev":              cfg.IsDevelopment(),
	})

	return &Client{
		cfg:       cfg,
		transport: transport,
		api:       api.NewClient(transport),
		registry:  reg,
		log:       log,
	}, nil
}

func (c *Client) API() *api.Client                  { return c.api }
func (c *Client) Transport() *httpclient.Transport { return c.transport }
func (c *Client) Config() *config.Config           { return c.cfg }
func (c *Client) Logger() logger.Logger            { return c.log }

// Registry holds the transport metrics.
func (c *Client) Registry() *prometheus.Registry { return c.registry }
