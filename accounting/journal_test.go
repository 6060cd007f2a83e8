package accounting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/accounting"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/store/memory"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func offered(broker string) *tariff.Tariff {
	spec := tariff.NewSpecification(broker, tariff.Consumption).AddRate(rate.NewFixed(-0.1))
	return tariff.New(spec, start)
}

type flakyStore struct {
	*memory.Store
	fail bool
}

func (f *flakyStore) AppendTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.AppendTransactions(ctx, txs)
}

func TestJournalBatches(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	j := accounting.NewJournal(st, types.NewSimClock(start), accounting.WithBatchSize(3))
	tr := offered("b1")

	for i := range 2 {
		if err := j.PostTransaction(ctx, transaction.KindConsume, tr, "town", 1, -10, 1.0); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	if got, _ := st.ListTransactions(ctx, transaction.ListOpts{}); len(got) != 0 {
		t.Errorf("store has %d transactions before the batch filled", len(got))
	}
	if j.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", j.Pending())
	}

	_ = j.PostTransaction(ctx, transaction.KindConsume, tr, "town", 1, -10, 1.0)
	if got, _ := st.ListTransactions(ctx, transaction.ListOpts{}); len(got) != 3 {
		t.Errorf("store has %d transactions, want 3 after batch", len(got))
	}
	if j.Pending() != 0 {
		t.Errorf("Pending() = %d after batch, want 0", j.Pending())
	}
}

func TestJournalKeepsBatchOnFailure(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Store: memory.New(), fail: true}
	j := accounting.NewJournal(st, types.NewSimClock(start))
	tr := offered("b1")

	_ = j.PostTransaction(ctx, transaction.KindSignup, tr, "town", 2, 0, -4)
	if err := j.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if j.Pending() != 1 {
		t.Fatalf("Pending() = %d, want batch retained", j.Pending())
	}

	st.fail = false
	if err := j.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := st.ListTransactions(ctx, transaction.ListOpts{}); len(got) != 1 {
		t.Errorf("store has %d transactions, want 1", len(got))
	}
}

func TestJournalBalanceAndListeners(t *testing.T) {
	ctx := context.Background()
	var heard []transaction.Kind
	j := accounting.NewJournal(memory.New(), types.NewSimClock(start),
		accounting.WithListener(func(_ context.Context, tx *transaction.Transaction) {
			heard = append(heard, tx.Kind)
		}),
	)
	b1, b2 := offered("b1"), offered("b2")

	// Ten tenths must sum to exactly one.
	for range 10 {
		_ = j.PostTransaction(ctx, transaction.KindConsume, b1, "town", 1, -1, 0.1)
	}
	_ = j.PostTransaction(ctx, transaction.KindPublish, b2, "", 0, 0, -250)
	_ = j.PostRegulationTransaction(ctx, b1, "town", 1, 40, 4.4)

	if got := j.Balance("b1"); !got.Equal(types.NewMoney(5.4)) {
		t.Errorf("b1 balance = %s, want 5.40", got)
	}
	if got := j.Balance("b2"); !got.Equal(types.NewMoney(-250)) {
		t.Errorf("b2 balance = %s, want -250.00", got)
	}
	if !j.Balance("nobody").IsZero() {
		t.Error("unknown broker should have zero balance")
	}
	if len(heard) != 12 || heard[11] != transaction.KindProduce {
		t.Errorf("listener heard %v", heard)
	}
}

func TestStatement(t *testing.T) {
	ctx := context.Background()
	clock := types.NewSimClock(start)
	j := accounting.NewJournal(memory.New(), clock)
	tr := offered("b1")

	_ = j.PostTransaction(ctx, transaction.KindSignup, tr, "town", 5, 0, -166)
	clock.Advance(time.Hour)
	_ = j.PostTransaction(ctx, transaction.KindConsume, tr, "town", 5, -100, 10)
	_ = j.PostTransaction(ctx, transaction.KindConsume, tr, "town", 5, -50, 5)
	_ = j.PostRegulationTransaction(ctx, tr, "town", 5, 40, 4.4)
	_ = j.PostBalancingControl(ctx, transaction.BalancingControl{BrokerID: "b1", TariffID: tr.ID, KWh: 40, Payment: 11})

	st, err := j.Statement(ctx, "b1", start)
	if err != nil {
		t.Fatal(err)
	}
	consume := st.Line(transaction.KindConsume)
	if consume.Count != 2 || consume.KWh != -150 || !consume.Amount.Equal(types.NewMoney(15)) {
		t.Errorf("consume line = %+v", consume)
	}
	if !st.Total.Equal(types.NewMoney(-146.6)) {
		t.Errorf("total = %s, want -146.60", st.Total)
	}
	if st.Balancing != 11 {
		t.Errorf("balancing = %g, want 11", st.Balancing)
	}

	later, _ := j.Statement(ctx, "b1", start.Add(time.Hour))
	if later.Line(transaction.KindSignup).Count != 0 {
		t.Error("statement since should exclude earlier signups")
	}
}
