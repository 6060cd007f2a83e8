// Package rate evaluates the price components of a tariff.
//
// A Rate is one priced component scoped by day of week, hour of day and
// usage tier. Fixed rates carry a constant value. Variable rates carry a
// history of hourly charges announced by the broker ahead of time.
package rate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xraph/tariffmarket/id"
)

// NoTime marks an unset applicability bound.
const NoTime = -1

// Applicability bounds. Days follow ISO numbering, Monday is 1.
const (
	MinHour = 0
	MaxHour = 23
	MinDay  = 1
	MaxDay  = 7
)

var (
	ErrInvalidRate       = errors.New("rate: invalid rate")
	ErrFixedRate         = errors.New("rate: fixed rate cannot be updated")
	ErrNoticeViolation   = errors.New("rate: charge announced inside notice interval")
	ErrChargeOutOfBounds = errors.New("rate: charge outside rate bounds")
)

// PowerKind is the part of a power type that rate validation depends on.
type PowerKind interface {
	IsConsumption() bool
}

// HourlyCharge is a variable-rate price announced for one hour.
type HourlyCharge struct {
	AtTime time.Time `json:"at_time"`
	Value  float64   `json:"value"`
}

// Rate is one priced component of a tariff. Values are per kWh from the
// customer's point of view, so consumption charges are negative.
type Rate struct {
	ID             id.RateID `json:"id"`
	Fixed          bool      `json:"fixed"`
	MinValue       float64   `json:"min_value"`
	MaxValue       float64   `json:"max_value"`
	ExpectedMean   float64   `json:"expected_mean"`
	TierThreshold  float64   `json:"tier_threshold"`
	WeeklyBegin    int       `json:"weekly_begin"`
	WeeklyEnd      int       `json:"weekly_end"`
	DailyBegin     int       `json:"daily_begin"`
	DailyEnd       int       `json:"daily_end"`
	NoticeInterval int       `json:"notice_interval"`
	MaxCurtailment float64   `json:"max_curtailment"`

	history []HourlyCharge
}

// NewFixed returns a fixed rate that applies at all times.
func NewFixed(value float64) *Rate {
	return &Rate{
		ID:          id.NewRateID(),
		Fixed:       true,
		MinValue:    value,
		MaxValue:    value,
		WeeklyBegin: NoTime,
		WeeklyEnd:   NoTime,
		DailyBegin:  NoTime,
		DailyEnd:    NoTime,
	}
}

// NewVariable returns a variable rate bounded by minValue and maxValue,
// priced at expectedMean until hourly charges are announced.
func NewVariable(minValue, maxValue, expectedMean float64, noticeHours int) *Rate {
	r := NewFixed(minValue)
	r.Fixed = false
	r.MaxValue = maxValue
	r.ExpectedMean = expectedMean
	r.NoticeInterval = noticeHours
	return r
}

// WithDaily restricts the rate to the hours begin..end inclusive.
func (r *Rate) WithDaily(begin, end int) *Rate {
	r.DailyBegin, r.DailyEnd = begin, end
	return r
}

// WithWeekly restricts the rate to the days begin..end inclusive.
func (r *Rate) WithWeekly(begin, end int) *Rate {
	r.WeeklyBegin, r.WeeklyEnd = begin, end
	return r
}

// WithTier makes the rate apply only once daily usage reaches threshold.
func (r *Rate) WithTier(threshold float64) *Rate {
	r.TierThreshold = threshold
	return r
}

// WithMaxCurtailment sets the share of usage the broker may curtail.
func (r *Rate) WithMaxCurtailment(ratio float64) *Rate {
	r.MaxCurtailment = ratio
	return r
}

// IsTimeOfUse reports whether the rate is limited to a daily or weekly window.
func (r *Rate) IsTimeOfUse() bool {
	return r.DailyBegin >= 0 || r.WeeklyBegin >= 0
}

// Applies reports whether t falls inside the rate's weekly and daily windows.
func (r *Rate) Applies(t time.Time) bool {
	t = t.UTC()
	return inWindow(isoWeekday(t), r.WeeklyBegin, r.WeeklyEnd) &&
		inWindow(t.Hour(), r.DailyBegin, r.DailyEnd)
}

// AppliesTier is Applies restricted to usage at or above the tier threshold.
func (r *Rate) AppliesTier(t time.Time, usage float64) bool {
	return usage >= r.TierThreshold && r.Applies(t)
}

// Value returns the price per kWh at t. A variable rate without a charge
// announced for that hour falls back to its expected mean.
func (r *Rate) Value(t time.Time) float64 {
	if r.Fixed {
		return r.MinValue
	}
	at := t.UTC().Truncate(time.Hour)
	i := r.search(at)
	if i < len(r.history) && r.history[i].AtTime.Equal(at) {
		return r.history[i].Value
	}
	return r.ExpectedMean
}

// History returns the announced hourly charges ordered by time.
func (r *Rate) History() []HourlyCharge {
	out := make([]HourlyCharge, len(r.history))
	copy(out, r.history)
	return out
}

// AddHourlyCharge records a charge announced at now. The charge replaces
// any earlier announcement for the same hour.
func (r *Rate) AddHourlyCharge(c HourlyCharge, now time.Time) error {
	if r.Fixed {
		return ErrFixedRate
	}
	c.AtTime = c.AtTime.UTC().Truncate(time.Hour)
	if c.AtTime.Sub(now) < time.Duration(r.NoticeInterval)*time.Hour {
		return fmt.Errorf("%w: %s at %s", ErrNoticeViolation, c.AtTime.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	sgn := sign(r.MaxValue)
	if sgn*c.Value > sgn*r.MaxValue || sgn*c.Value < sgn*r.MinValue {
		return fmt.Errorf("%w: %g not in [%g, %g]", ErrChargeOutOfBounds, c.Value, r.MinValue, r.MaxValue)
	}

	i := r.search(c.AtTime)
	if i < len(r.history) && r.history[i].AtTime.Equal(c.AtTime) {
		r.history[i] = c
		return nil
	}
	r.history = append(r.history, HourlyCharge{})
	copy(r.history[i+1:], r.history[i:])
	r.history[i] = c
	return nil
}

// Validate checks the rate against the power type of its tariff.
func (r *Rate) Validate(kind PowerKind) error {
	for name, v := range map[string]float64{
		"min_value":     r.MinValue,
		"max_value":     r.MaxValue,
		"expected_mean": r.ExpectedMean,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidRate, name)
		}
	}
	if math.IsNaN(r.MaxCurtailment) || r.MaxCurtailment < 0 || r.MaxCurtailment > 1 {
		return fmt.Errorf("%w: curtailment ratio %g out of range", ErrInvalidRate, r.MaxCurtailment)
	}
	if !inRange(r.DailyBegin, MinHour, MaxHour) || !inRange(r.DailyEnd, MinHour, MaxHour) {
		return fmt.Errorf("%w: daily window %d..%d out of range", ErrInvalidRate, r.DailyBegin, r.DailyEnd)
	}
	if !inRange(r.WeeklyBegin, MinDay, MaxDay) || !inRange(r.WeeklyEnd, MinDay, MaxDay) {
		return fmt.Errorf("%w: weekly window %d..%d out of range", ErrInvalidRate, r.WeeklyBegin, r.WeeklyEnd)
	}
	if (r.DailyBegin == NoTime) != (r.DailyEnd == NoTime) {
		return fmt.Errorf("%w: daily begin and end must be set together", ErrInvalidRate)
	}
	if (r.WeeklyBegin == NoTime) != (r.WeeklyEnd == NoTime) {
		return fmt.Errorf("%w: weekly begin and end must be set together", ErrInvalidRate)
	}
	if r.Fixed {
		return nil
	}

	sgn := 1.0
	if kind.IsConsumption() {
		sgn = -1.0
	}
	if sgn*r.MaxValue < sgn*r.MinValue {
		return fmt.Errorf("%w: max value %g below min value %g", ErrInvalidRate, r.MaxValue, r.MinValue)
	}
	if sgn*r.ExpectedMean < sgn*r.MinValue || sgn*r.ExpectedMean > sgn*r.MaxValue {
		return fmt.Errorf("%w: expected mean %g out of range", ErrInvalidRate, r.ExpectedMean)
	}
	if r.NoticeInterval < 0 {
		return fmt.Errorf("%w: negative notice interval", ErrInvalidRate)
	}
	return nil
}

func (r *Rate) search(at time.Time) int {
	return sort.Search(len(r.history), func(i int) bool {
		return !r.history[i].AtTime.Before(at)
	})
}

// inWindow treats begin > end as a window that wraps and begin == end as a
// single slot.
func inWindow(v, begin, end int) bool {
	if begin == NoTime || end == NoTime {
		return true
	}
	if end >= begin {
		return v >= begin && v <= end
	}
	return v >= begin || v <= end
}

func inRange(v, lo, hi int) bool {
	return v == NoTime || (v >= lo && v <= hi)
}

func isoWeekday(t time.Time) int {
	if d := int(t.Weekday()); d != 0 {
		return d
	}
	return 7
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
