package dispatch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Args are the decoded arguments of one command, as they arrive from a JSON
// transport: numbers are float64, lists are []interface{}.
type Args map[string]interface{}

// String returns the named argument as a string, or def when absent.
func (a Args) String(name, def string) string {
	v, ok := a[name]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// Bool returns the named argument as a bool. Strings "true"/"false" are
// accepted.
func (a Args) Bool(name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return def, fmt.Errorf("%s must be a boolean, got %q", name, t)
		}
		return b, nil
	}
	return def, fmt.Errorf("%s must be a boolean, got %T", name, v)
}

// OptionalBool returns nil when the argument is absent.
func (a Args) OptionalBool(name string) (*bool, error) {
	if v, ok := a[name]; !ok || v == nil {
		return nil, nil
	}
	b, err := a.Bool(name, false)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Number returns the named argument as a float64.
func (a Args) Number(name string, def float64) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def, fmt.Errorf("%s must be a number, got %q", name, t)
		}
		n = f
	default:
		return def, fmt.Errorf("%s must be a number, got %T", name, v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return def, fmt.Errorf("%s must be a finite number", name)
	}
	return n, nil
}

// Strings returns the named argument as a string slice. A single string is
// treated as a one-element list.
func (a Args) Strings(name string) ([]string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %T", name, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s must be a list of strings, got %T", name, v)
}

// Millis reads a millisecond count as a duration. Negative values are
// rejected.
func (a Args) Millis(name string, def time.Duration) (time.Duration, error) {
	n, err := a.Number(name, float64(def.Milliseconds()))
	if err != nil {
		return def, err
	}
	if n < 0 {
		return def, fmt.Errorf("%s must not be negative", name)
	}
	if n*float64(time.Millisecond) >= math.MaxInt64 {
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(n * float64(time.Millisecond)), nil
}
