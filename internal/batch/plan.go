// Package batch loads call plans from YAML/JSON files and runs them through the facade.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Call is one request in a plan.
type Call struct {
	ID      string            `json:"id" yaml:"id"`
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Query   map[string]any    `json:"query" yaml:"query"`
	Headers map[string]string `json:"headers" yaml:"headers"`
	Body    any               `json:"body" yaml:"body"`
	DelayMs int               `json:"delay_ms" yaml:"delay_ms"`
}

// Delay is the pause before the call is sent.
func (c Call) Delay() time.Duration {
	if c.DelayMs <= 0 {
		return 0
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Plan is an ordered list of calls.
type Plan struct {
	Calls []Call `json:"calls" yaml:"calls"`
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// LoadPlan reads and validates a plan file. The extension picks the decoder; unknown
// extensions try YAML then JSON.
func LoadPlan(path string) (Plan, error) {
	raw, err := readFile(path, "plan")
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	if err := decode(raw, filepath.Ext(path), &plan); err != nil {
		return Plan{}, fmt.Errorf("plan file: %w", err)
	}
	if len(plan.Calls) == 0 {
		return Plan{}, errors.New("plan file contains no calls")
	}

	seen := make(map[string]struct{}, len(plan.Calls))
	for i := range plan.Calls {
		c := sanitizeCall(plan.Calls[i], i)
		if err := validateCall(c); err != nil {
			return Plan{}, fmt.Errorf("call[%d]: %w", i, err)
		}
		if _, dup := seen[c.ID]; dup {
			return Plan{}, fmt.Errorf("duplicate call id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		plan.Calls[i] = c
	}
	return plan, nil
}

// LoadBody decodes a request body file into a generic value.
func LoadBody(path string) (any, error) {
	raw, err := readFile(path, "body")
	if err != nil {
		return nil, err
	}
	var body any
	if err := decode(raw, filepath.Ext(path), &body); err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	return body, nil
}

func readFile(path, what string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%s file path is empty", what)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", what, err)
	}
	return raw, nil
}

type unmarshalFn func([]byte, any) error

func decode(data []byte, ext string, out any) error {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	known := false
	for _, d := range decoders {
		if ext == d.ext {
			known = true
			break
		}
	}

	var errs []error
	for _, d := range decoders {
		if known && ext != d.ext {
			continue
		}
		if err := d.fn(data, out); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", d.name, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

func sanitizeCall(c Call, idx int) Call {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = fmt.Sprintf("call-%d", idx+1)
	}
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	c.Path = strings.TrimSpace(c.Path)
	return c
}

func validateCall(c Call) error {
	if c.Path == "" {
		return fmt.Errorf("path is required for call %q", c.ID)
	}
	if !allowedMethods[c.Method] {
		return fmt.Errorf("unsupported method %q for call %q", c.Method, c.ID)
	}
	if c.Body != nil && (c.Method == http.MethodGet || c.Method == http.MethodDelete) {
		return fmt.Errorf("call %q: %s does not take a body", c.ID, c.Method)
	}
	return nil
}
