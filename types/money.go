// Package types provides common types used across the tariff market.
package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CentPlaces is the number of decimal places kept when a Money value is
// displayed or persisted.
const CentPlaces = 2

// Money is an amount in the simulation currency.
//
// Charges are computed as float64 by the rate engine. Money holds them as
// exact decimals once they are posted, so that running balances built from
// thousands of small transactions do not drift.
//
// Sign convention: positive amounts are credits to the broker, negative
// amounts are debits.
type Money struct {
	Amount decimal.Decimal `json:"amount"`
}

// NewMoney converts a float64 charge into Money.
func NewMoney(amount float64) Money {
	return Money{Amount: decimal.NewFromFloat(amount)}
}

// Zero returns a zero Money value.
func Zero() Money { return Money{Amount: decimal.Zero} }

// Arithmetic operations

// Add adds two Money values.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

// Subtract subtracts another Money value.
func (m Money) Subtract(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount)}
}

// Scale multiplies the Money by a quantity, such as a customer count.
func (m Money) Scale(qty float64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromFloat(qty))}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: m.Amount.Neg()}
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs()}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Equal returns true if both Money values hold the same amount.
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

// LessThan returns true if this Money is less than other.
func (m Money) LessThan(other Money) bool {
	return m.Amount.LessThan(other.Amount)
}

// Conversions

// Float64 returns the amount as a float64. The conversion may be inexact.
func (m Money) Float64() float64 {
	return m.Amount.InexactFloat64()
}

// Round returns the amount rounded half-away-from-zero to whole cents.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(CentPlaces)}
}

// String returns the amount with two decimal places, e.g. "-166.00".
func (m Money) String() string {
	return m.Amount.StringFixed(CentPlaces)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount  decimal.Decimal `json:"amount"`
		Display string          `json:"display"`
	}{
		Amount:  m.Amount,
		Display: m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts the object written
// by MarshalJSON and ignores the display field.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	return nil
}

// Sum calculates the sum of multiple Money values.
func Sum(values ...Money) Money {
	result := Zero()
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
