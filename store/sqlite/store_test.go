package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/store/sqlite"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// A second run must be a no-op.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	return s
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	tid := id.NewTariffID()

	txs := []*transaction.Transaction{
		{ID: id.NewTransactionID(), Kind: transaction.KindSignup, BrokerID: "b1", TariffID: tid, CustomerID: "town", CustomerCount: 5, Charge: types.NewMoney(-166), PostedAt: start},
		{ID: id.NewTransactionID(), Kind: transaction.KindConsume, BrokerID: "b1", TariffID: tid, CustomerID: "town", CustomerCount: 5, KWh: -100, Charge: types.NewMoney(10.05), Timeslot: 1, PostedAt: start.Add(time.Hour)},
		{ID: id.NewTransactionID(), Kind: transaction.KindProduce, BrokerID: "b2", KWh: 40, Charge: types.NewMoney(4.4), Regulation: true, Timeslot: 1, PostedAt: start.Add(time.Hour)},
	}
	if err := s.AppendTransactions(ctx, txs); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListTransactions(ctx, transaction.ListOpts{BrokerID: "b1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	second := got[1]
	if second.ID.String() != txs[1].ID.String() || second.TariffID.String() != tid.String() {
		t.Errorf("ids did not round-trip: %+v", second)
	}
	if !second.Charge.Equal(types.NewMoney(10.05)) || second.KWh != -100 || !second.PostedAt.Equal(txs[1].PostedAt) {
		t.Errorf("values did not round-trip: %+v", second)
	}

	tests := []struct {
		name string
		opts transaction.ListOpts
		want int
	}{
		{"kind", transaction.ListOpts{Kind: transaction.KindProduce}, 1},
		{"since", transaction.ListOpts{Since: start.Add(time.Hour)}, 2},
		{"tariff", transaction.ListOpts{TariffID: tid}, 2},
		{"limit", transaction.ListOpts{Limit: 2, Offset: 2}, 1},
		{"offset only", transaction.ListOpts{Offset: 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d, want %d", len(got), tt.want)
			}
		})
	}

	regulated, _ := s.ListTransactions(ctx, transaction.ListOpts{BrokerID: "b2"})
	if len(regulated) != 1 || !regulated[0].Regulation || !regulated[0].TariffID.IsNil() {
		t.Errorf("regulation row = %+v", regulated)
	}
}

func TestBalancingControls(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	c := &transaction.BalancingControl{ID: id.NewControlID(), BrokerID: "b1", TariffID: id.NewTariffID(), KWh: 100, Payment: 11, Timeslot: 7, PostedAt: start}
	if err := s.AppendBalancingControl(ctx, c); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListBalancingControls(ctx, transaction.ListOpts{BrokerID: "b1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Payment != 11 || got[0].Timeslot != 7 || got[0].ID.String() != c.ID.String() {
		t.Errorf("controls = %+v", got)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
