package types

import (
	"encoding/json"
	"fmt"
)

// InvoicedState is the already-invoiced tri-state of a ledger row.
type InvoicedState int

const (
	InvoicedNo InvoicedState = iota
	InvoicedPartial
	InvoicedYes
)

var invoicedNames = map[InvoicedState]string{
	InvoicedNo:      "no",
	InvoicedPartial: "partial",
	InvoicedYes:     "yes",
}

func (s InvoicedState) String() string {
	if name, ok := invoicedNames[s]; ok {
		return name
	}
	return fmt.Sprintf("InvoicedState(%d)", int(s))
}

// MarshalJSON encodes the state by name.
func (s InvoicedState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes "no", "partial" or "yes". Unknown names are an error.
func (s *InvoicedState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("invoiced state must be a string: %w", err)
	}
	for state, n := range invoicedNames {
		if n == name {
			*s = state
			return nil
		}
	}
	if name == "" {
		*s = InvoicedNo
		return nil
	}
	return fmt.Errorf("unknown invoiced state %q", name)
}
