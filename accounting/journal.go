package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

// Journal is a Ledger that buffers transactions and writes them to a
// transaction.Store in batches. It keeps a running cash balance per broker.
type Journal struct {
	store  transaction.Store
	clock  types.Clock
	logger *slog.Logger

	batchSize int
	listeners []func(context.Context, *transaction.Transaction)

	mu       sync.Mutex
	pending  []*transaction.Transaction
	balances map[string]types.Money
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) JournalOption {
	return func(j *Journal) { j.logger = logger }
}

// WithBatchSize sets how many transactions are buffered before a write.
// A size of 1 writes every transaction immediately.
func WithBatchSize(n int) JournalOption {
	return func(j *Journal) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

// WithListener registers a callback invoked for each posted transaction.
func WithListener(fn func(context.Context, *transaction.Transaction)) JournalOption {
	return func(j *Journal) { j.listeners = append(j.listeners, fn) }
}

// NewJournal creates a Journal writing to store.
func NewJournal(store transaction.Store, clock types.Clock, opts ...JournalOption) *Journal {
	j := &Journal{
		store:     store,
		clock:     clock,
		logger:    slog.Default(),
		batchSize: 100,
		balances:  make(map[string]types.Money),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// PostTransaction implements Ledger.
func (j *Journal) PostTransaction(ctx context.Context, kind transaction.Kind, t *tariff.Tariff, customer string, count int, kwh, charge float64) error {
	return j.post(ctx, &transaction.Transaction{
		Kind:          kind,
		BrokerID:      t.BrokerID(),
		TariffID:      t.ID,
		CustomerID:    customer,
		CustomerCount: count,
		KWh:           kwh,
		Charge:        types.NewMoney(charge),
	})
}

// PostRegulationTransaction implements Ledger. The kind follows the
// direction of the energy: positive kwh is produced for the broker.
func (j *Journal) PostRegulationTransaction(ctx context.Context, t *tariff.Tariff, customer string, count int, kwh, charge float64) error {
	kind := transaction.KindConsume
	if kwh > 0 {
		kind = transaction.KindProduce
	}
	return j.post(ctx, &transaction.Transaction{
		Kind:          kind,
		BrokerID:      t.BrokerID(),
		TariffID:      t.ID,
		CustomerID:    customer,
		CustomerCount: count,
		KWh:           kwh,
		Charge:        types.NewMoney(charge),
		Regulation:    true,
	})
}

// PostBalancingControl implements Ledger. Controls are written through
// immediately.
func (j *Journal) PostBalancingControl(ctx context.Context, ev transaction.BalancingControl) error {
	if ev.ID.IsNil() {
		ev.ID = id.NewControlID()
	}
	if ev.PostedAt.IsZero() {
		ev.PostedAt = j.clock.Now()
	}
	if err := j.store.AppendBalancingControl(ctx, &ev); err != nil {
		j.logger.Error("failed to record balancing control",
			"broker", ev.BrokerID,
			"tariff_id", ev.TariffID.String(),
			"error", err,
		)
		return fmt.Errorf("accounting: balancing control: %w", err)
	}
	return nil
}

func (j *Journal) post(ctx context.Context, tx *transaction.Transaction) error {
	tx.ID = id.NewTransactionID()
	tx.PostedAt = j.clock.Now()
	tx.Timeslot = j.clock.CurrentTimeslot()

	j.mu.Lock()
	j.balances[tx.BrokerID] = j.balance(tx.BrokerID).Add(tx.Charge)
	j.pending = append(j.pending, tx)
	full := len(j.pending) >= j.batchSize
	j.mu.Unlock()

	for _, fn := range j.listeners {
		fn(ctx, tx)
	}

	if full {
		return j.Flush(ctx)
	}
	return nil
}

// Flush writes buffered transactions to the store. On failure the batch
// stays buffered for the next attempt.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.pending) == 0 {
		return nil
	}
	start := time.Now()
	if err := j.store.AppendTransactions(ctx, j.pending); err != nil {
		j.logger.Error("failed to flush journal batch",
			"batch_size", len(j.pending),
			"error", err,
		)
		return fmt.Errorf("accounting: flush journal: %w", err)
	}

	j.logger.Debug("flushed journal batch",
		"batch_size", len(j.pending),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	j.pending = j.pending[:0]
	return nil
}

// Pending returns the number of buffered transactions.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Balance returns the net of every charge posted for broker.
func (j *Journal) Balance(brokerID string) types.Money {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.balance(brokerID)
}

func (j *Journal) balance(brokerID string) types.Money {
	if b, ok := j.balances[brokerID]; ok {
		return b
	}
	return types.Zero()
}
