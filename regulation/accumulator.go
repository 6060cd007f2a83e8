// Package regulation holds regulation capacity totals.
package regulation

import "fmt"

// Accumulator is an amount of up- and down-regulation capacity in kWh.
// Up is never negative and Down is never positive.
type Accumulator struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// New returns an accumulator, clamping values with the wrong sign to zero.
func New(up, down float64) Accumulator {
	return Accumulator{Up: max(up, 0), Down: min(down, 0)}
}

// Add returns the sum of a and b.
func (a Accumulator) Add(b Accumulator) Accumulator {
	return New(a.Up+b.Up, a.Down+b.Down)
}

// Scale returns a with both sides multiplied by ratio.
func (a Accumulator) Scale(ratio float64) Accumulator {
	return New(a.Up*ratio, a.Down*ratio)
}

// SetUp replaces the up side, clamping at zero.
func (a *Accumulator) SetUp(v float64) { a.Up = max(v, 0) }

// SetDown replaces the down side, clamping at zero.
func (a *Accumulator) SetDown(v float64) { a.Down = min(v, 0) }

// IsZero reports whether there is no capacity in either direction.
func (a Accumulator) IsZero() bool { return a.Up == 0 && a.Down == 0 }

func (a Accumulator) String() string {
	return fmt.Sprintf("(%g, %g)", a.Up, a.Down)
}
