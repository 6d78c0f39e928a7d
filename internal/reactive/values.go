package reactive

import (
	"fmt"
	"strconv"
	"strings"
)

// Values maps node names to their current values. Widget values arrive from
// JSON, so numbers may be float64 or strings and lists may be []any.
type Values map[string]any

func (v Values) String(name string) string {
	switch x := v[name].(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Float reads a numeric value; ok is false when the value is absent or blank.
func (v Values) Float(name string) (f float64, ok bool, err error) {
	switch x := v[name].(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %q is not a number", name, s)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s: unexpected %T", name, x)
	}
}

// Int reads an integer value, defaulting when absent.
func (v Values) Int(name string, def int) int {
	f, ok, err := v.Float(name)
	if !ok || err != nil {
		return def
	}
	return int(f)
}

// Strings accepts a single string or a list; blanks are dropped.
func (v Values) Strings(name string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch x := v[name].(type) {
	case string:
		add(x)
	case []string:
		for _, s := range x {
			add(s)
		}
	case []any:
		for _, e := range x {
			switch s := e.(type) {
			case string:
				add(s)
			case float64:
				add(strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
	}
	return out
}

// Ints is Strings parsed as integers; unparsable entries are an error.
func (v Values) Ints(name string) ([]int, error) {
	var out []int
	for _, s := range v.Strings(name) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", name, s)
		}
		out = append(out, n)
	}
	return out, nil
}
