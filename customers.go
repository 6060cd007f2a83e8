package tariffmarket

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/regulation"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
)

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// Subscribe commits n customers of customer to a tariff. A customer's
// first subscription takes effect at once; later ones wait for the next
// publication boundary.
func (m *Market) Subscribe(ctx context.Context, customer string, tariffID id.TariffID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 {
		return ValidationError{Field: "count", Message: "must be positive"}
	}
	t, err := m.store.GetTariff(ctx, tariffID)
	if err != nil {
		return err
	}
	if !t.IsSubscribable(m.clock.Now()) {
		return fmt.Errorf("%w: %s", ErrTariffNotSubscribable, tariffID)
	}

	existing, err := m.store.ListSubscriptions(ctx, subscription.ListOpts{CustomerID: customer, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		_, err := m.applySubscribe(ctx, customer, t, n)
		return err
	}
	m.pendingSubs = append(m.pendingSubs, subscriptionEvent{customer: customer, tariffID: tariffID, count: n})
	return nil
}

// Unsubscribe queues n customers to leave a tariff at the next publication
// boundary. They stop counting toward regulation capacity right away.
func (m *Market) Unsubscribe(ctx context.Context, customer string, tariffID id.TariffID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 {
		return ValidationError{Field: "count", Message: "must be positive"}
	}
	sub, err := m.findSubscription(ctx, customer, tariffID)
	if err != nil {
		return err
	}
	sub.MarkPendingUnsubscribe(n)
	if err := m.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	m.pendingSubs = append(m.pendingSubs, subscriptionEvent{customer: customer, tariffID: tariffID, count: -n})
	return nil
}

// UsePower bills kwh used by customer's population on a tariff in the
// current timeslot. Negative kwh is production.
func (m *Market) UsePower(ctx context.Context, customer string, tariffID id.TariffID, kwh float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.findSubscription(ctx, customer, tariffID)
	if err != nil {
		return err
	}
	errs := &MultiError{}
	errs.Add(sub.UsePower(ctx, kwh))
	errs.Add(m.store.UpdateSubscription(ctx, sub))
	return errs.ErrOrNil()
}

// SetRegulationCapacity records the flexibility customer's population
// reports for the current timeslot.
func (m *Market) SetRegulationCapacity(ctx context.Context, customer string, tariffID id.TariffID, c regulation.Accumulator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.findSubscription(ctx, customer, tariffID)
	if err != nil {
		return err
	}
	sub.SetRegulationCapacity(c)
	return m.store.UpdateSubscription(ctx, sub)
}

// FindSubscription returns customer's subscription to a tariff.
func (m *Market) FindSubscription(ctx context.Context, customer string, tariffID id.TariffID) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findSubscription(ctx, customer, tariffID)
}

// Subscriptions lists customer's subscriptions, including empty ones.
func (m *Market) Subscriptions(ctx context.Context, customer string) ([]*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, err := m.store.ListSubscriptions(ctx, subscription.ListOpts{CustomerID: customer})
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if err := m.attach(ctx, s); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (m *Market) findSubscription(ctx context.Context, customer string, tariffID id.TariffID) (*subscription.Subscription, error) {
	sub, err := m.store.FindSubscription(ctx, customer, tariffID)
	if err != nil {
		return nil, err
	}
	if err := m.attach(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// attach supplies collaborators to a subscription loaded from the store.
func (m *Market) attach(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Tariff() != nil {
		return nil
	}
	t, err := m.store.GetTariff(ctx, sub.TariffID)
	if err != nil {
		return err
	}
	sub.Attach(t, m.ledger, m.clock)
	return nil
}

// applySubscribe adds n customers to customer's subscription to t,
// creating it if needed.
func (m *Market) applySubscribe(ctx context.Context, customer string, t *tariff.Tariff, n int) (*subscription.Subscription, error) {
	sub, err := m.findSubscription(ctx, customer, t.ID)
	switch {
	case IsNotFound(err):
		sub = subscription.New(customer, t, m.ledger, m.clock)
		if err := m.store.CreateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	errs := &MultiError{}
	errs.Add(sub.Subscribe(ctx, n))
	errs.Add(m.store.UpdateSubscription(ctx, sub))
	m.plugins.EmitSubscriptionChanged(ctx, sub, n)
	return sub, errs.ErrOrNil()
}

func (m *Market) applyUnsubscribe(ctx context.Context, sub *subscription.Subscription, n int) error {
	errs := &MultiError{}
	errs.Add(sub.Unsubscribe(ctx, n))
	errs.Add(m.store.UpdateSubscription(ctx, sub))
	m.plugins.EmitSubscriptionChanged(ctx, sub, -n)
	return errs.ErrOrNil()
}

// processSubscriptionEvents applies queued subscription changes in arrival
// order.
func (m *Market) processSubscriptionEvents(ctx context.Context) error {
	events := m.pendingSubs
	m.pendingSubs = nil

	errs := &MultiError{}
	now := m.clock.Now()
	for _, ev := range events {
		if ev.count < 0 {
			sub, err := m.findSubscription(ctx, ev.customer, ev.tariffID)
			if err != nil {
				errs.Add(err)
				continue
			}
			errs.Add(m.applyUnsubscribe(ctx, sub, -ev.count))
			continue
		}
		t, err := m.store.GetTariff(ctx, ev.tariffID)
		if err != nil {
			errs.Add(err)
			continue
		}
		if !t.IsSubscribable(now) {
			m.logger.Warn("dropping subscription to unavailable tariff",
				"tariff_id", t.ID.String(),
				"customer", ev.customer,
			)
			continue
		}
		_, err = m.applySubscribe(ctx, ev.customer, t, ev.count)
		errs.Add(err)
	}
	return errs.ErrOrNil()
}

// ──────────────────────────────────────────────────
// Default tariffs and revocation
// ──────────────────────────────────────────────────

// SetDefaultTariff installs spec as the tariff customers of its power type
// fall back to. It is offered at once and pays no publication fee.
func (m *Market) SetDefaultTariff(ctx context.Context, spec *tariff.Specification) (*tariff.Tariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spec.ID.IsNil() {
		spec.ID = id.NewTariffID()
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	now := m.clock.Now()
	t := tariff.New(spec, now)
	if err := t.Transition(tariff.StateOffered, now); err != nil {
		return nil, err
	}
	if err := m.store.CreateTariff(ctx, t); err != nil {
		return nil, err
	}
	m.defaults[t.PowerType()] = t.ID
	m.logger.Info("default tariff set", "tariff_id", t.ID.String(), "power_type", t.PowerType().String())
	m.plugins.EmitTariffCreated(ctx, t)
	m.plugins.EmitTariffPublished(ctx, t)
	return t, nil
}

// DefaultTariff returns the default tariff for pt, falling back to the
// default of its generic type.
func (m *Market) DefaultTariff(ctx context.Context, pt tariff.PowerType) *tariff.Tariff {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultFor(ctx, pt)
}

func (m *Market) defaultFor(ctx context.Context, pt tariff.PowerType) *tariff.Tariff {
	for _, p := range []tariff.PowerType{pt, pt.Generic()} {
		tid, ok := m.defaults[p]
		if !ok {
			continue
		}
		t, err := m.store.GetTariff(ctx, tid)
		if err == nil && !t.IsRevoked() {
			return t
		}
	}
	return nil
}

// migrator lets subscriptions move customers while the market lock is
// held.
type migrator struct {
	m   *Market
	ctx context.Context
}

func (g migrator) Successor(t *tariff.Tariff) *tariff.Tariff {
	if !t.SupersededBy.IsNil() {
		next, err := g.m.store.GetTariff(g.ctx, t.SupersededBy)
		if err == nil && next.IsSubscribable(g.m.clock.Now()) {
			return next
		}
	}
	return g.m.defaultFor(g.ctx, t.PowerType())
}

func (g migrator) Migrate(ctx context.Context, from, to *tariff.Tariff, customer string, n int) (*subscription.Subscription, error) {
	old, err := g.m.findSubscription(ctx, customer, from.ID)
	if err != nil {
		return nil, err
	}
	if err := g.m.applyUnsubscribe(ctx, old, n); err != nil {
		return nil, err
	}
	return g.m.applySubscribe(ctx, customer, to, n)
}

// MigrateRevokedSubscriptions moves every customer still on a revoked
// tariff to its successor and returns the destination subscriptions.
func (m *Market) MigrateRevokedSubscriptions(ctx context.Context) ([]*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	killed, err := m.store.ListTariffs(ctx, tariff.ListOpts{State: tariff.StateKilled})
	if err != nil {
		return nil, err
	}
	g := migrator{m: m, ctx: ctx}
	errs := &MultiError{}
	var moved []*subscription.Subscription
	for _, t := range killed {
		subs, err := m.store.ListSubscriptions(ctx, subscription.ListOpts{TariffID: t.ID, ActiveOnly: true})
		if err != nil {
			errs.Add(err)
			continue
		}
		for _, s := range subs {
			if err := m.attach(ctx, s); err != nil {
				errs.Add(err)
				continue
			}
			next, err := s.HandleRevokedTariff(ctx, g)
			if errors.Is(err, subscription.ErrNoSuccessor) {
				err = fmt.Errorf("%w: %w", ErrNoDefaultTariff, err)
			}
			errs.Add(err)
			if next != nil {
				moved = append(moved, next)
			}
		}
	}
	return moved, errs.ErrOrNil()
}

// RemoveRevokedTariffs deletes revoked tariffs that no customer uses any
// more, together with their empty subscriptions and balancing orders.
func (m *Market) RemoveRevokedTariffs(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	killed, err := m.store.ListTariffs(ctx, tariff.ListOpts{State: tariff.StateKilled})
	if err != nil {
		return 0, err
	}
	removed := 0
	errs := &MultiError{}
	for _, t := range killed {
		subs, err := m.store.ListSubscriptions(ctx, subscription.ListOpts{TariffID: t.ID})
		if err != nil {
			errs.Add(err)
			continue
		}
		inUse := false
		for _, s := range subs {
			if s.CustomersCommitted > 0 {
				inUse = true
				break
			}
		}
		if inUse {
			continue
		}
		for _, s := range subs {
			errs.Add(m.store.DeleteSubscription(ctx, s.ID))
		}
		errs.Add(m.store.DeleteOrders(ctx, t.ID))
		errs.Add(m.store.DeleteTariff(ctx, t.ID))
		if d, ok := m.defaults[t.PowerType()]; ok && d.Equal(t.ID) {
			delete(m.defaults, t.PowerType())
		}
		removed++
	}
	return removed, errs.ErrOrNil()
}

// ──────────────────────────────────────────────────
// Tariff queries
// ──────────────────────────────────────────────────

// GetTariff returns a tariff by ID.
func (m *Market) GetTariff(ctx context.Context, tariffID id.TariffID) (*tariff.Tariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.GetTariff(ctx, tariffID)
}

// ActiveTariffs returns the offered, unexpired tariffs a customer of power
// type pt may subscribe to, oldest first.
func (m *Market) ActiveTariffs(ctx context.Context, pt tariff.PowerType) ([]*tariff.Tariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTariffs(ctx, pt)
}

// RecentActiveTariffs returns at most n active tariffs for pt, newest
// first.
func (m *Market) RecentActiveTariffs(ctx context.Context, n int, pt tariff.PowerType) ([]*tariff.Tariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.activeTariffs(ctx, pt)
	if err != nil {
		return nil, err
	}
	out := make([]*tariff.Tariff, 0, min(n, len(active)))
	for i := len(active) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, active[i])
	}
	return out, nil
}

func (m *Market) activeTariffs(ctx context.Context, pt tariff.PowerType) ([]*tariff.Tariff, error) {
	offered, err := m.store.ListTariffs(ctx, tariff.ListOpts{State: tariff.StateOffered})
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	var out []*tariff.Tariff
	for _, t := range offered {
		if t.IsActive(now) && pt.CanUse(t.PowerType()) {
			out = append(out, t)
		}
	}
	return out, nil
}
