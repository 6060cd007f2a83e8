// Package store defines the storage interfaces the market persists to.
package store

import (
	"context"
	"errors"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Journal is an append-only transaction journal with lifecycle methods.
// Every backend implements it.
type Journal interface {
	transaction.Store

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Store is the unified storage interface for all market entities. Method
// names are qualified by entity so the sub-interfaces embed without
// conflict.
type Store interface {
	tariff.Store
	subscription.Store
	balancing.Store
	Journal
}

// WithJournal returns a Store that keeps entities in s and routes the
// journal to j. Lifecycle calls reach both.
func WithJournal(s Store, j Journal) Store {
	return &split{Store: s, journal: j}
}

type split struct {
	Store
	journal Journal
}

func (s *split) AppendTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	return s.journal.AppendTransactions(ctx, txs)
}

func (s *split) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return s.journal.ListTransactions(ctx, opts)
}

func (s *split) AppendBalancingControl(ctx context.Context, c *transaction.BalancingControl) error {
	return s.journal.AppendBalancingControl(ctx, c)
}

func (s *split) ListBalancingControls(ctx context.Context, opts transaction.ListOpts) ([]*transaction.BalancingControl, error) {
	return s.journal.ListBalancingControls(ctx, opts)
}

func (s *split) Migrate(ctx context.Context) error {
	if err := s.Store.Migrate(ctx); err != nil {
		return err
	}
	return s.journal.Migrate(ctx)
}

func (s *split) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	return s.journal.Ping(ctx)
}

func (s *split) Close() error {
	return errors.Join(s.journal.Close(), s.Store.Close())
}
