// Package publication decides when the market publishes tariff changes and
// carries the batch it broadcasts.
package publication

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/types"
)

// MaxInterval is the longest allowed publication interval in hours.
const MaxInterval = 24

var ErrInvalidSchedule = errors.New("publication: invalid schedule")

// Scheduler fires every Interval hours at Offset, and always on its first
// activation.
type Scheduler struct {
	Interval int
	Offset   int

	started bool
}

// NewScheduler validates interval and offset.
func NewScheduler(interval, offset int) (*Scheduler, error) {
	if interval < 1 || interval > MaxInterval {
		return nil, fmt.Errorf("%w: interval %d not in 1..%d", ErrInvalidSchedule, interval, MaxInterval)
	}
	if offset < 0 || offset >= interval {
		return nil, fmt.Errorf("%w: offset %d not in 0..%d", ErrInvalidSchedule, offset, interval-1)
	}
	return &Scheduler{Interval: interval, Offset: offset}, nil
}

// Due reports whether an activation at t is a publication boundary. It
// records the activation, so the first call is always due.
func (s *Scheduler) Due(t time.Time) bool {
	if !s.started {
		s.started = true
		return true
	}
	return types.HoursSinceEpoch(t)%int64(s.Interval) == int64(s.Offset)
}

// Batch is everything published at one boundary.
type Batch struct {
	ID          id.MessageID                `json:"id"`
	Timeslot    int                         `json:"timeslot"`
	PublishedAt time.Time                   `json:"published_at"`
	Tariffs     []*tariff.Specification     `json:"tariffs"`
	RateUpdates []tariff.VariableRateUpdate `json:"rate_updates"`
}

// NewBatch returns an empty batch.
func NewBatch(timeslot int, at time.Time) *Batch {
	return &Batch{ID: id.NewMessageID(), Timeslot: timeslot, PublishedAt: at}
}

// AddTariff appends a newly offered tariff.
func (b *Batch) AddTariff(t *tariff.Tariff) {
	b.Tariffs = append(b.Tariffs, t.Spec)
}

// AddRateUpdate appends a variable rate update.
func (b *Batch) AddRateUpdate(u tariff.VariableRateUpdate) {
	b.RateUpdates = append(b.RateUpdates, u)
}

// Len returns the number of tariffs and updates in the batch.
func (b *Batch) Len() int { return len(b.Tariffs) + len(b.RateUpdates) }

// IsEmpty reports whether the batch carries nothing.
func (b *Batch) IsEmpty() bool { return b.Len() == 0 }
