package realtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadFilter = errors.New("filter must look like column=eq.value")

// Filter narrows a subscription to rows where Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "column=eq.value". An empty string means no filter.
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return nil, ErrBadFilter
	}
	val, ok := strings.CutPrefix(rest, "eq.")
	if !ok || val == "" {
		return nil, ErrBadFilter
	}
	return &Filter{Column: col, Value: val}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Match reports whether row satisfies the filter. A nil filter matches all.
func (f *Filter) Match(row map[string]interface{}) bool {
	if f == nil {
		return true
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == f.Value
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64) == f.Value
	case bool:
		return strconv.FormatBool(t) == f.Value
	default:
		return fmt.Sprint(t) == f.Value
	}
}
