package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FilterOperator combines sub-filters.
type FilterOperator string

const (
	FilterOperatorAnd FilterOperator = "AND"
	FilterOperatorOr  FilterOperator = "OR"
	FilterOperatorNot FilterOperator = "NOT"
)

// Filter is a closed tagged-variant tree: either the distinguished "none"
// variant (zero value), an operator node wrapping sub-trees, or a leaf
// condition. Leaf conditions are kept as raw JSON here; each queryable
// collection decodes them against its own closed condition type, rejecting
// unknown predicate keys.
type Filter struct {
	Operator   FilterOperator
	Conditions []Filter
	Condition  json.RawMessage
}

// IsNone reports whether the filter is the distinguished "match everything"
// variant.
func (f Filter) IsNone() bool {
	return f.Operator == "" && len(f.Condition) == 0
}

type filterOperatorJSON struct {
	Operator   FilterOperator `json:"operator"`
	Conditions []Filter       `json:"conditions"`
}

func (f *Filter) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = Filter{}
		return nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return fmt.Errorf("filter must be a JSON object: %w", err)
	}
	if len(keys) == 0 {
		*f = Filter{}
		return nil
	}

	if _, isOperator := keys["operator"]; !isOperator {
		*f = Filter{Condition: json.RawMessage(trimmed)}
		return nil
	}

	var node filterOperatorJSON
	if err := json.Unmarshal(trimmed, &node); err != nil {
		return fmt.Errorf("decoding filter operator node: %w", err)
	}
	switch node.Operator {
	case FilterOperatorAnd, FilterOperatorOr, FilterOperatorNot:
	default:
		return fmt.Errorf("unknown filter operator %q", node.Operator)
	}
	if len(keys) != 2 {
		return fmt.Errorf("filter operator node must have exactly the keys \"operator\" and \"conditions\"")
	}
	if len(node.Conditions) == 0 {
		return fmt.Errorf("filter operator %q requires at least one condition", node.Operator)
	}

	*f = Filter{Operator: node.Operator, Conditions: node.Conditions}
	return nil
}

func (f Filter) MarshalJSON() ([]byte, error) {
	if f.IsNone() {
		return []byte("null"), nil
	}
	if f.Operator != "" {
		//nolint:wrapcheck // plain json marshal of a local struct
		return json.Marshal(filterOperatorJSON{Operator: f.Operator, Conditions: f.Conditions})
	}
	return f.Condition, nil
}

// WalkLeaves calls fn for every leaf condition in the tree.
func (f Filter) WalkLeaves(fn func(raw json.RawMessage) error) error {
	if f.IsNone() {
		return nil
	}
	if f.Operator != "" {
		for _, sub := range f.Conditions {
			if err := sub.WalkLeaves(fn); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(f.Condition)
}
