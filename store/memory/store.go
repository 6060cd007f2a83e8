// Package memory is an in-process Store. Lists return entities in
// insertion order, which keeps simulations deterministic.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/tariffmarket"
	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Tariff storage
	tariffs     map[string]*tariff.Tariff
	tariffOrder []string

	// Subscription storage
	subscriptions map[string]*subscription.Subscription
	subOrder      []string

	// Balancing orders, in insertion order
	orders []*balancing.Order

	// Journal
	transactions []*transaction.Transaction
	controls     []*transaction.BalancingControl

	closed bool
}

func New() *Store {
	return &Store{
		tariffs:       make(map[string]*tariff.Tariff),
		subscriptions: make(map[string]*subscription.Subscription),
	}
}

// Tariff Store implementation
func (s *Store) CreateTariff(_ context.Context, t *tariff.Tariff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := t.ID.String()
	if _, exists := s.tariffs[key]; exists {
		return tariffmarket.ErrAlreadyExists
	}
	s.tariffs[key] = t
	s.tariffOrder = append(s.tariffOrder, key)
	return nil
}

func (s *Store) GetTariff(_ context.Context, tariffID id.TariffID) (*tariff.Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tariffs[tariffID.String()]; ok {
		return t, nil
	}
	return nil, tariffmarket.ErrTariffNotFound
}

func (s *Store) UpdateTariff(_ context.Context, t *tariff.Tariff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tariffs[t.ID.String()]; !exists {
		return tariffmarket.ErrTariffNotFound
	}
	s.tariffs[t.ID.String()] = t
	return nil
}

func (s *Store) ListTariffs(_ context.Context, opts tariff.ListOpts) ([]*tariff.Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tariff.Tariff, 0)
	for _, key := range s.tariffOrder {
		t := s.tariffs[key]
		if opts.BrokerID != "" && t.BrokerID() != opts.BrokerID {
			continue
		}
		if opts.State != "" && t.State != opts.State {
			continue
		}
		result = append(result, t)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) DeleteTariff(_ context.Context, tariffID id.TariffID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tariffID.String()
	delete(s.tariffs, key)
	s.tariffOrder = without(s.tariffOrder, key)
	return nil
}

// Subscription Store implementation
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sub.ID.String()
	if _, exists := s.subscriptions[key]; exists {
		return tariffmarket.ErrAlreadyExists
	}
	s.subscriptions[key] = sub
	s.subOrder = append(s.subOrder, key)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return sub, nil
	}
	return nil, tariffmarket.ErrSubscriptionNotFound
}

func (s *Store) FindSubscription(_ context.Context, customerID string, tariffID id.TariffID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tid := tariffID.String()
	for _, key := range s.subOrder {
		sub := s.subscriptions[key]
		if sub.CustomerID == customerID && sub.TariffID.String() == tid {
			return sub, nil
		}
	}
	return nil, tariffmarket.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, key := range s.subOrder {
		sub := s.subscriptions[key]
		if opts.CustomerID != "" && sub.CustomerID != opts.CustomerID {
			continue
		}
		if !opts.TariffID.IsNil() && !sub.TariffID.Equal(opts.TariffID) {
			continue
		}
		if opts.ActiveOnly && sub.CustomersCommitted == 0 {
			continue
		}
		result = append(result, sub)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; !exists {
		return tariffmarket.ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subID.String()
	delete(s.subscriptions, key)
	s.subOrder = without(s.subOrder, key)
	return nil
}

// Balancing Store implementation
func (s *Store) SaveOrder(_ context.Context, o *balancing.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.orders {
		if existing.TariffID.Equal(o.TariffID) && existing.IsUp() == o.IsUp() {
			s.orders[i] = o
			return nil
		}
	}
	s.orders = append(s.orders, o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*balancing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID.Equal(orderID) {
			return o, nil
		}
	}
	return nil, tariffmarket.ErrOrderNotFound
}

func (s *Store) ListOrders(_ context.Context, tariffID id.TariffID) ([]*balancing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*balancing.Order, 0)
	for _, o := range s.orders {
		if tariffID.IsNil() || o.TariffID.Equal(tariffID) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *Store) DeleteOrders(_ context.Context, tariffID id.TariffID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.orders[:0]
	for _, o := range s.orders {
		if !o.TariffID.Equal(tariffID) {
			kept = append(kept, o)
		}
	}
	s.orders = kept
	return nil
}

// Journal implementation
func (s *Store) AppendTransactions(_ context.Context, txs []*transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tariffmarket.ErrStoreClosed
	}
	for _, tx := range txs {
		cp := *tx
		s.transactions = append(s.transactions, &cp)
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transaction.Transaction, 0)
	for _, tx := range s.transactions {
		if opts.Matches(tx) {
			result = append(result, tx)
		}
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) AppendBalancingControl(_ context.Context, c *transaction.BalancingControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tariffmarket.ErrStoreClosed
	}
	cp := *c
	s.controls = append(s.controls, &cp)
	return nil
}

func (s *Store) ListBalancingControls(_ context.Context, opts transaction.ListOpts) ([]*transaction.BalancingControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transaction.BalancingControl, 0)
	for _, c := range s.controls {
		if opts.MatchesControl(c) {
			result = append(result, c)
		}
	}
	return page(result, opts.Offset, opts.Limit), nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tariffmarket.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Helper functions
func page[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

func without(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
