package core

import (
	"encoding/json"
	"math"
)

// Margin is a percentage that may be undefined, as happens when a record
// has no sales to divide by.
type Margin struct {
	value   float64
	defined bool
}

// NewMargin returns a defined margin. NaN and infinities are undefined.
func NewMargin(v float64) Margin {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Margin{}
	}
	return Margin{value: v, defined: true}
}

// UndefinedMargin returns the margin of a zero-sales record.
func UndefinedMargin() Margin {
	return Margin{}
}

// Value returns the percentage and whether it is defined.
func (m Margin) Value() (float64, bool) {
	return m.value, m.defined
}

// Defined reports whether the margin carries a value.
func (m Margin) Defined() bool {
	return m.defined
}

// Float64 returns the value, or NaN when undefined.
func (m Margin) Float64() float64 {
	if !m.defined {
		return math.NaN()
	}
	return m.value
}

// MarshalJSON encodes an undefined margin as null.
func (m Margin) MarshalJSON() ([]byte, error) {
	if !m.defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}
