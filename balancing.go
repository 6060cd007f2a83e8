package tariffmarket

import (
	"context"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/regulation"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
)

// source feeds the balancing controller from the store. The controller is
// only driven from inside market methods, so source never locks.
type source struct{ m *Market }

func (s *source) LookupTariff(ctx context.Context, tariffID id.TariffID) (*tariff.Tariff, error) {
	return s.m.store.GetTariff(ctx, tariffID)
}

func (s *source) TariffSubscriptions(ctx context.Context, tariffID id.TariffID) ([]*subscription.Subscription, error) {
	subs, err := s.m.store.ListSubscriptions(ctx, subscription.ListOpts{TariffID: tariffID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if err := s.m.attach(ctx, sub); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (s *source) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return s.m.store.UpdateSubscription(ctx, sub)
}

// BalancingOrders returns the balancing orders standing for a tariff.
func (m *Market) BalancingOrders(ctx context.Context, tariffID id.TariffID) ([]*balancing.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.ListOrders(ctx, tariffID)
}

// RegulationCapacity returns the capacity currently available to a
// balancing order.
func (m *Market) RegulationCapacity(ctx context.Context, orderID id.OrderID) (regulation.Accumulator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return regulation.Accumulator{}, err
	}
	return m.controller.RegulationCapacity(ctx, order)
}

// Exercise settles kwh of regulation against a balancing order, paying
// payment to its broker.
func (m *Market) Exercise(ctx context.Context, orderID id.OrderID, kwh, payment float64) (*balancing.ControlEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrMarketStopped
	}

	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return m.controller.Exercise(ctx, order, kwh, payment)
}
