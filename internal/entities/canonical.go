package entities

import (
	"encoding/json"
	"fmt"
)

// CanonicalJSON returns a stable serialization of v: object keys sorted
// recursively (encoding/json sorts map keys on marshal) and null members
// dropped, so that structural equality can be decided by string comparison.
func CanonicalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling value for canonicalization: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return "", fmt.Errorf("unmarshaling value for canonicalization: %w", err)
	}
	out, err := json.Marshal(dropNulls(generic))
	if err != nil {
		return "", fmt.Errorf("marshaling canonical value: %w", err)
	}
	return string(out), nil
}

func dropNulls(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		for k, member := range value {
			if member == nil {
				delete(value, k)
				continue
			}
			value[k] = dropNulls(member)
		}
		return value
	case []interface{}:
		for i, member := range value {
			value[i] = dropNulls(member)
		}
		return value
	default:
		return v
	}
}

// CanonicalFilter serializes a filter for storage and equality comparison.
func CanonicalFilter(f Filter) (string, error) {
	return CanonicalJSON(f)
}

// CanonicalSort serializes a sort spec for storage and equality comparison.
func CanonicalSort(sort []SortComparator) (string, error) {
	if len(sort) == 0 {
		return "[]", nil
	}
	return CanonicalJSON(sort)
}

// FiltersEqual reports structural equality of two filters via their canonical
// serializations.
func FiltersEqual(a, b Filter) (bool, error) {
	ca, err := CanonicalFilter(a)
	if err != nil {
		return false, err
	}
	cb, err := CanonicalFilter(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}
