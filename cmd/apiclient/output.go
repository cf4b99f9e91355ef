package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/samvad-api-client/internal/config"
	"github.com/samvad-hq/samvad-api-client/pkg/api"
)

func render(w io.Writer, format string, v any) error {
	switch format {
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

type pair struct {
	key   string
	value string
}

// parsePairs splits KEY=VALUE arguments. Every malformed entry is reported.
func parsePairs(raw []string, flag string) ([]pair, error) {
	out := make([]pair, 0, len(raw))
	var errs []error
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			errs = append(errs, fmt.Errorf("%s %q: expected KEY=VALUE", flag, item))
			continue
		}
		out = append(out, pair{key: key, value: value})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// queryFromPairs keeps argument order; repeated keys collapse into the last value.
func queryFromPairs(pairs []pair) api.Query {
	var q api.Query
	for _, p := range pairs {
		q = q.Set(p.key, p.value)
	}
	return q
}
