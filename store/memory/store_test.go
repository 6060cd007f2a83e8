package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tariffmarket"
	"github.com/xraph/tariffmarket/accounting"
	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/store/memory"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTariff(broker string) *tariff.Tariff {
	spec := tariff.NewSpecification(broker, tariff.Consumption).AddRate(rate.NewFixed(-0.1))
	return tariff.New(spec, start)
}

func TestTariffsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	var want []string
	for _, broker := range []string{"b1", "b2", "b1", "b3", "b1"} {
		tr := newTariff(broker)
		if err := s.CreateTariff(ctx, tr); err != nil {
			t.Fatal(err)
		}
		if broker == "b1" {
			want = append(want, tr.ID.String())
		}
	}

	got, err := s.ListTariffs(ctx, tariff.ListOpts{BrokerID: "b1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tariffs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID.String() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want[i])
		}
	}

	paged, _ := s.ListTariffs(ctx, tariff.ListOpts{BrokerID: "b1", Offset: 1, Limit: 1})
	if len(paged) != 1 || paged[0].ID.String() != want[1] {
		t.Errorf("paged = %v", paged)
	}
}

func TestTariffCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tr := newTariff("b1")

	if err := s.CreateTariff(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateTariff(ctx, tr); !errors.Is(err, tariffmarket.ErrAlreadyExists) {
		t.Errorf("duplicate create: got %v", err)
	}
	if _, err := s.GetTariff(ctx, id.NewTariffID()); !tariffmarket.IsNotFound(err) {
		t.Errorf("missing tariff: got %v", err)
	}
	if err := s.DeleteTariff(ctx, tr.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTariff(ctx, tr); !errors.Is(err, tariffmarket.ErrTariffNotFound) {
		t.Errorf("update deleted: got %v", err)
	}
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tr := newTariff("b1")
	clock := types.NewSimClock(start)
	ledger := accounting.NewRecorder()

	active := subscription.New("town", tr, ledger, clock)
	_ = active.Subscribe(ctx, 3)
	empty := subscription.New("village", tr, ledger, clock)
	for _, sub := range []*subscription.Subscription{active, empty} {
		if err := s.CreateSubscription(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}

	found, err := s.FindSubscription(ctx, "village", tr.ID)
	if err != nil || found.ID.String() != empty.ID.String() {
		t.Errorf("FindSubscription = %v, %v", found, err)
	}
	if _, err := s.FindSubscription(ctx, "city", tr.ID); !tariffmarket.IsNotFound(err) {
		t.Errorf("missing pair: got %v", err)
	}

	all, _ := s.ListSubscriptions(ctx, subscription.ListOpts{TariffID: tr.ID})
	live, _ := s.ListSubscriptions(ctx, subscription.ListOpts{TariffID: tr.ID, ActiveOnly: true})
	if len(all) != 2 || len(live) != 1 || live[0].CustomerID != "town" {
		t.Errorf("all = %d, live = %v", len(all), live)
	}
}

func TestSaveOrderReplacesSameDirection(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tid := id.NewTariffID()

	_ = s.SaveOrder(ctx, balancing.NewOrder("b1", tid, 1, 0.1))
	_ = s.SaveOrder(ctx, balancing.NewOrder("b1", tid, -1, 0.05))
	replacement := balancing.NewOrder("b1", tid, 0.5, 0.2)
	_ = s.SaveOrder(ctx, replacement)
	_ = s.SaveOrder(ctx, balancing.NewOrder("b1", id.NewTariffID(), 1, 0.1))

	orders, _ := s.ListOrders(ctx, tid)
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].ID.String() != replacement.ID.String() {
		t.Error("up order should have been replaced in place")
	}
	if all, _ := s.ListOrders(ctx, id.Nil); len(all) != 3 {
		t.Errorf("got %d orders overall, want 3", len(all))
	}

	_ = s.DeleteOrders(ctx, tid)
	if _, err := s.GetOrder(ctx, replacement.ID); !tariffmarket.IsNotFound(err) {
		t.Errorf("deleted order: got %v", err)
	}
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tid := id.NewTariffID()

	txs := []*transaction.Transaction{
		{ID: id.NewTransactionID(), Kind: transaction.KindSignup, BrokerID: "b1", TariffID: tid, PostedAt: start},
		{ID: id.NewTransactionID(), Kind: transaction.KindConsume, BrokerID: "b1", TariffID: tid, PostedAt: start.Add(time.Hour)},
		{ID: id.NewTransactionID(), Kind: transaction.KindConsume, BrokerID: "b2", PostedAt: start.Add(time.Hour)},
	}
	if err := s.AppendTransactions(ctx, txs); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts transaction.ListOpts
		want int
	}{
		{"all", transaction.ListOpts{}, 3},
		{"broker", transaction.ListOpts{BrokerID: "b1"}, 2},
		{"kind", transaction.ListOpts{Kind: transaction.KindConsume}, 2},
		{"since", transaction.ListOpts{Since: start.Add(time.Hour)}, 2},
		{"tariff", transaction.ListOpts{TariffID: tid}, 2},
		{"limit", transaction.ListOpts{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d transactions, want %d", len(got), tt.want)
			}
		})
	}

	_ = s.Close()
	if err := s.AppendTransactions(ctx, txs); !errors.Is(err, tariffmarket.ErrStoreClosed) {
		t.Errorf("append after close: got %v", err)
	}
	if err := s.Ping(ctx); !tariffmarket.IsStoreError(err) {
		t.Errorf("ping after close: got %v", err)
	}
}
