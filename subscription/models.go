package subscription

import (
	"time"

	"github.com/xraph/tariffmarket/accounting"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/regulation"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/types"
)

// LockRecord counts customers who may not leave without penalty before
// Horizon.
type LockRecord struct {
	Horizon time.Time `json:"horizon"`
	Count   int       `json:"count"`
}

// Subscription is the commitment of one customer population to one tariff.
type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID      `json:"id"`
	CustomerID         string                 `json:"customer_id"`
	TariffID           id.TariffID            `json:"tariff_id"`
	CustomersCommitted int                    `json:"customers_committed"`
	Locks              []LockRecord           `json:"locks"`
	TotalUsage         float64                `json:"total_usage"`
	UsageDay           time.Time              `json:"usage_day"`
	PendingUnsubscribe int                    `json:"pending_unsubscribe"`
	PendingRatio       float64                `json:"pending_ratio"`
	Capacity           regulation.Accumulator `json:"capacity"`
	RegulationKWh      float64                `json:"regulation_kwh"`

	tariff *tariff.Tariff
	ledger accounting.Ledger
	clock  types.Clock
}

// New creates an empty subscription of customer to t. Postings go to
// ledger and time is read from clock.
func New(customerID string, t *tariff.Tariff, ledger accounting.Ledger, clock types.Clock) *Subscription {
	return &Subscription{
		Entity:     types.NewEntity(clock.Now()),
		ID:         id.NewSubscriptionID(),
		CustomerID: customerID,
		TariffID:   t.ID,
		tariff:     t,
		ledger:     ledger,
		clock:      clock,
	}
}

// Attach supplies the collaborators of a subscription loaded from a store.
func (s *Subscription) Attach(t *tariff.Tariff, ledger accounting.Ledger, clock types.Clock) {
	s.tariff, s.ledger, s.clock = t, ledger, clock
}

// Tariff returns the subscribed tariff.
func (s *Subscription) Tariff() *tariff.Tariff { return s.tariff }

// LockedCount returns the sum of all lock records.
func (s *Subscription) LockedCount() int {
	n := 0
	for _, l := range s.Locks {
		n += l.Count
	}
	return n
}

// ExpiredCount returns how many customers may leave at now without penalty.
func (s *Subscription) ExpiredCount(now time.Time) int {
	n := 0
	for _, l := range s.Locks {
		if !l.Horizon.After(now) {
			n += l.Count
		}
	}
	return n
}
