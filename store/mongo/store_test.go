package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

func TestTxModelKeepsExactCharge(t *testing.T) {
	in := &transaction.Transaction{
		ID:       id.NewTransactionID(),
		Kind:     transaction.KindConsume,
		BrokerID: "b1",
		TariffID: id.NewTariffID(),
		KWh:      -100,
		Charge:   types.Sum(types.NewMoney(0.1), types.NewMoney(0.2)),
		PostedAt: time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC),
	}
	m, err := toTxModel(in)
	if err != nil {
		t.Fatal(err)
	}
	if m.Charge.String() != "0.3" {
		t.Errorf("stored charge = %s, want 0.3", m.Charge)
	}
	out, err := fromTxModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Charge.Equal(types.NewMoney(0.3)) || out.TariffID.String() != in.TariffID.String() {
		t.Errorf("got %+v", out)
	}
}

func TestFilter(t *testing.T) {
	since := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f := filter(transaction.ListOpts{BrokerID: "b1", Since: since})
	want := bson.D{
		{Key: "broker_id", Value: "b1"},
		{Key: "posted_at", Value: bson.D{{Key: "$gte", Value: since}}},
	}
	if len(f) != len(want) || f[0].Key != want[0].Key || f[1].Key != want[1].Key {
		t.Errorf("filter = %v, want %v", f, want)
	}
	if len(filter(transaction.ListOpts{})) != 0 {
		t.Error("empty options should match everything")
	}
}

// TestJournalIntegration runs against TARIFFMARKET_MONGO_URI when set.
func TestJournalIntegration(t *testing.T) {
	uri := os.Getenv("TARIFFMARKET_MONGO_URI")
	if uri == "" {
		t.Skip("TARIFFMARKET_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Connect(uri, "tariffmarket_test")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	c := &transaction.BalancingControl{ID: id.NewControlID(), BrokerID: "it-" + id.NewMessageID().String(), TariffID: id.NewTariffID(), KWh: 100, Payment: 11, PostedAt: time.Now()}
	if err := s.AppendBalancingControl(ctx, c); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListBalancingControls(ctx, transaction.ListOpts{BrokerID: c.BrokerID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Payment != 11 {
		t.Errorf("got %+v", got)
	}
}
