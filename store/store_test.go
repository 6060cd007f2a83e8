package store_test

import (
	"context"
	"testing"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/store/memory"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

func TestWithJournalRoutesTransactions(t *testing.T) {
	ctx := context.Background()
	entities, journal := memory.New(), memory.New()
	s := store.WithJournal(entities, journal)
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	tx := &transaction.Transaction{
		ID:       id.NewTransactionID(),
		Kind:     transaction.KindPublish,
		BrokerID: "broker-1",
		Charge:   types.NewMoney(-100),
	}
	if err := s.AppendTransactions(ctx, []*transaction.Transaction{tx}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  transaction.Store
		want int
	}{
		{"journal", journal, 1},
		{"entities", entities, 0},
		{"combined", s, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.ListTransactions(ctx, transaction.ListOpts{})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("transactions = %d, want %d", len(got), tt.want)
			}
		})
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
