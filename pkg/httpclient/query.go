package httpclient

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Param is a single query key/value pair. A nil Value (or nil pointer) is omitted on encode.
type Param struct {
	Key   string
	Value any
}

// Query is an ordered list of query parameters. Encoding keeps insertion order.
type Query []Param

// Set returns a copy of q with key set to value, replacing the first existing entry in place.
func (q Query) Set(key string, value any) Query {
	out := make(Query, len(q), len(q)+1)
	copy(out, q)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Param{Key: key, Value: value})
}

// Merge overlays other onto q; keys present in both take other's value.
func (q Query) Merge(other Query) Query {
	out := q
	if len(other) == 0 {
		out = make(Query, len(q))
		copy(out, q)
		return out
	}
	for _, p := range other {
		out = out.Set(p.Key, p.Value)
	}
	return out
}

// Get returns the value stored for key.
func (q Query) Get(key string) (any, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Encode renders q as `k=v&k2=v2` without a leading '?'. Pairs with nil values are skipped.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range q {
		val, ok := FormatValue(p.Value)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(val))
	}
	return b.String()
}

// FormatValue stringifies a query value. It reports false for nil values and nil pointers.
// Slices are joined with commas.
func FormatValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", false
		}
		return t.String(), true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), true
		}
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s, ok := FormatValue(rv.Index(i).Interface()); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	case reflect.Map, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return "", false
		}
	}
	return fmt.Sprint(rv.Interface()), true
}
