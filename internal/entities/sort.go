package entities

import (
	"encoding/json"
	"fmt"
)

// SortComparator orders a query result on one property. isAscending defaults
// to true when the client omits it.
type SortComparator struct {
	Property    string `json:"property"`
	IsAscending bool   `json:"isAscending"`
}

func (s *SortComparator) UnmarshalJSON(b []byte) error {
	aux := struct {
		Property    string `json:"property"`
		IsAscending *bool  `json:"isAscending"`
	}{}
	if err := json.Unmarshal(b, &aux); err != nil {
		return fmt.Errorf("decoding sort comparator: %w", err)
	}
	if aux.Property == "" {
		return fmt.Errorf("sort comparator requires a property")
	}
	s.Property = aux.Property
	s.IsAscending = true
	if aux.IsAscending != nil {
		s.IsAscending = *aux.IsAscending
	}
	return nil
}
