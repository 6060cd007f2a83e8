// Package accounting posts the financial consequences of market activity.
//
// The market core talks to accounting only through the Ledger interface.
// Journal is the production implementation; Recorder is an in-memory fake
// for tests and dry runs.
package accounting

import (
	"context"

	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Ledger receives every transaction the market posts. Charges are from the
// broker's point of view.
type Ledger interface {
	PostTransaction(ctx context.Context, kind transaction.Kind, t *tariff.Tariff, customer string, count int, kwh, charge float64) error
	PostRegulationTransaction(ctx context.Context, t *tariff.Tariff, customer string, count int, kwh, charge float64) error
	PostBalancingControl(ctx context.Context, ev transaction.BalancingControl) error
}

// Flusher is implemented by ledgers that buffer postings.
type Flusher interface {
	Flush(ctx context.Context) error
}
