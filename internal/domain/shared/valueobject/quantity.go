package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a value object representing a stock quantity (ordered, received, picked up, dispatched).
// It supports decimal quantities for items sold by weight/volume.
// It is immutable and never negative - all operations return new Quantity instances.
type Quantity struct {
	value decimal.Decimal
}

// NewQuantity creates a new Quantity with the specified value
func NewQuantity(value decimal.Decimal) (Quantity, error) {
	if value.IsNegative() {
		return Quantity{}, errors.New("quantity cannot be negative")
	}
	return Quantity{value: value}, nil
}

// NewQuantityFromInt creates Quantity from an int64 value
func NewQuantityFromInt(value int64) (Quantity, error) {
	return NewQuantity(decimal.NewFromInt(value))
}

// MustNewQuantityFromInt creates a Quantity from int64 and panics on error
func MustNewQuantityFromInt(value int64) Quantity {
	q, err := NewQuantityFromInt(value)
	if err != nil {
		panic(err)
	}
	return q
}

// FloorQuantity converts an arbitrary decimal into a Quantity, flooring negatives at zero.
// Used for figures that come from outside the process and must never go below zero.
func FloorQuantity(value decimal.Decimal) Quantity {
	if value.IsNegative() {
		return ZeroQuantity()
	}
	return Quantity{value: value}
}

// ParseQuantityInput is the single point where user-entered quantity text becomes a Quantity.
// Empty, malformed and negative input all coerce to zero; it never fails.
func ParseQuantityInput(raw string) Quantity {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ZeroQuantity()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroQuantity()
	}
	return FloorQuantity(d)
}

// ZeroQuantity returns a zero quantity
func ZeroQuantity() Quantity {
	return Quantity{value: decimal.Zero}
}

// Decimal returns the decimal value
func (q Quantity) Decimal() decimal.Decimal {
	return q.value
}

// IsZero returns true if the quantity is zero
func (q Quantity) IsZero() bool {
	return q.value.IsZero()
}

// IsPositive returns true if the quantity is positive
func (q Quantity) IsPositive() bool {
	return q.value.IsPositive()
}

// Add returns a new Quantity with the sum of both quantities
func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{value: q.value.Add(other.value)}
}

// SubtractFloor returns q - other, clamped at zero
func (q Quantity) SubtractFloor(other Quantity) Quantity {
	return FloorQuantity(q.value.Sub(other.value))
}

// Exceeds returns true if this quantity is strictly greater than the bound
func (q Quantity) Exceeds(bound Quantity) bool {
	return q.value.GreaterThan(bound.value)
}

// Times multiplies the quantity by a rate and returns the resulting amount
func (q Quantity) Times(rate decimal.Decimal) decimal.Decimal {
	return q.value.Mul(rate)
}

// Equals returns true if both quantities are numerically equal
func (q Quantity) Equals(other Quantity) bool {
	return q.value.Equal(other.value)
}

// String returns a string representation of the Quantity
func (q Quantity) String() string {
	return q.value.String()
}

// StringFixed returns the value as a string with fixed decimal places
func (q Quantity) StringFixed(places int32) string {
	return q.value.StringFixed(places)
}

// MarshalJSON encodes the quantity as a plain JSON number
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.value.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
// Null decodes to zero; negative values are rejected so the invariant holds after decoding.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		q.value = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("invalid quantity: %w", err)
	}
	if d.IsNegative() {
		return errors.New("quantity cannot be negative")
	}
	q.value = d
	return nil
}
