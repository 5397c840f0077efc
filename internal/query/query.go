// Package query selects parts of an extracted payload with JSONPath.
package query

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Match is one value selected by a query.
type Match struct {
	value any
}

// Value returns the raw matched value.
func (m Match) Value() any {
	return m.value
}

// Select evaluates a JSONPath selector against root.
func Select(root any, selector string) ([]Match, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	results := x.Get(root)
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{value: r}
	}
	return matches, nil
}
