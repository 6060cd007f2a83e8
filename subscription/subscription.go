// Package subscription tracks customer commitments to tariffs and bills
// their usage.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

var (
	ErrNotRevoked  = errors.New("subscription: tariff is not revoked")
	ErrNoSuccessor = errors.New("subscription: no tariff to migrate to")
)

// Market is what a subscription needs from the market to migrate off a
// revoked tariff.
type Market interface {
	// Successor returns the tariff replacing t, or nil.
	Successor(t *tariff.Tariff) *tariff.Tariff
	// Migrate moves n customers of customer from one tariff to another and
	// returns the subscription on the destination tariff.
	Migrate(ctx context.Context, from, to *tariff.Tariff, customer string, n int) (*Subscription, error)
}

// Subscribe adds n customers. They are locked in until the start of today
// plus the tariff's minimum duration.
func (s *Subscription) Subscribe(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	now := s.clock.Now()
	s.CustomersCommitted += n

	horizon := types.StartOfDay(now).Add(s.tariff.Spec.MinDuration)
	if last := len(s.Locks) - 1; last >= 0 && s.Locks[last].Horizon.Equal(horizon) {
		s.Locks[last].Count += n
	} else {
		s.Locks = append(s.Locks, LockRecord{Horizon: horizon, Count: n})
	}
	s.Touch(now)

	// A signup bonus is a debit for the broker.
	charge := float64(n) * -s.tariff.Spec.SignupPayment
	return s.ledger.PostTransaction(ctx, transaction.KindSignup, s.tariff, s.CustomerID, n, 0, charge)
}

// MarkPendingUnsubscribe records n customers queued to leave at the next
// flush. Pending leavers no longer count toward regulation capacity.
func (s *Subscription) MarkPendingUnsubscribe(n int) {
	s.PendingUnsubscribe += n
}

// Unsubscribe removes n customers, oldest locks first. Customers whose lock
// is still running pay the early-withdraw penalty unless the tariff has
// been revoked.
func (s *Subscription) Unsubscribe(ctx context.Context, n int) error {
	n = min(n, s.CustomersCommitted)
	if n <= 0 {
		return nil
	}
	s.PendingUnsubscribe = max(s.PendingUnsubscribe-n, 0)
	now := s.clock.Now()
	penalized := max(n-s.ExpiredCount(now), 0)

	remaining := n
	for remaining > 0 && len(s.Locks) > 0 {
		if s.Locks[0].Count <= remaining {
			remaining -= s.Locks[0].Count
			s.Locks = s.Locks[1:]
			continue
		}
		s.Locks[0].Count -= remaining
		remaining = 0
	}
	s.CustomersCommitted -= n
	if s.CustomersCommitted == 0 {
		s.Capacity.SetUp(0)
		s.Capacity.SetDown(0)
	}
	s.Touch(now)

	var errs []error
	withdraw := -s.tariff.Spec.EarlyWithdrawPayment
	if s.tariff.IsRevoked() {
		withdraw = 0
	}
	if withdraw != 0 && penalized > 0 {
		errs = append(errs, s.ledger.PostTransaction(ctx, transaction.KindWithdraw, s.tariff, s.CustomerID, n, 0, float64(penalized)*withdraw))
	}
	if s.tariff.Spec.SignupPayment < 0 {
		errs = append(errs, s.ledger.PostTransaction(ctx, transaction.KindRefund, s.tariff, s.CustomerID, n, 0, float64(n)*s.tariff.Spec.SignupPayment))
	}
	return errors.Join(errs...)
}

// UsePower bills kwh used by the whole population in the current
// timeslot. Negative kwh is production.
func (s *Subscription) UsePower(ctx context.Context, kwh float64) error {
	if s.CustomersCommitted == 0 {
		return nil
	}
	now := s.clock.Now()
	actual := kwh - s.economicRegulation(kwh)

	kind := transaction.KindConsume
	if actual < 0 {
		kind = transaction.KindProduce
	}
	committed := float64(s.CustomersCommitted)
	perCustomer := actual / committed
	charge := s.tariff.UsageCharge(now, perCustomer, s.TotalUsage, true)

	var errs []error
	errs = append(errs, s.ledger.PostTransaction(ctx, kind, s.tariff, s.CustomerID, s.CustomersCommitted, -actual, committed*-charge))

	// The first hour of a day is priced against the previous day's total.
	if day := types.StartOfDay(now); !day.Equal(s.UsageDay) {
		s.UsageDay = day
		s.TotalUsage = 0
	}
	s.TotalUsage += perCustomer
	if p := s.tariff.Spec.PeriodicPayment; p != 0 {
		errs = append(errs, s.ledger.PostTransaction(ctx, transaction.KindPeriodic, s.tariff, s.CustomerID, s.CustomersCommitted, 0, committed*-p/24))
	}
	return errors.Join(errs...)
}

// HandleRevokedTariff moves the whole population off a revoked tariff and
// returns the subscription it landed in.
func (s *Subscription) HandleRevokedTariff(ctx context.Context, m Market) (*Subscription, error) {
	if !s.tariff.IsRevoked() {
		return s, ErrNotRevoked
	}
	if s.CustomersCommitted == 0 {
		return nil, nil
	}
	next := m.Successor(s.tariff)
	if next == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuccessor, s.tariff.PowerType())
	}
	return m.Migrate(ctx, s.tariff, next, s.CustomerID, s.CustomersCommitted)
}
