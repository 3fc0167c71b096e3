package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Filter is a compiled jq expression applied to each raw transaction.
// A nil Filter accepts everything.
type Filter struct {
	expr string
	code *gojq.Code
}

// NewFilter compiles expr. An empty expression yields a nil Filter.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, code: code}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match runs the filter against raw and reports whether its first result is truthy.
// A filter that yields nothing or errors does not match.
func (f *Filter) Match(ctx context.Context, raw json.RawMessage) (bool, error) {
	if f == nil {
		return true, nil
	}

	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return false, fmt.Errorf("failed to decode transaction for jq: %w", err)
	}

	iter := f.code.RunWithContext(ctx, input)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("jq filter %q: %w", f.expr, err)
	}
	return isTruthy(v), nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
