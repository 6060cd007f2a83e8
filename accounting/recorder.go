package accounting

import (
	"context"
	"sync"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Posting is one call recorded by Recorder.
type Posting struct {
	Kind       transaction.Kind
	TariffID   id.TariffID
	BrokerID   string
	Customer   string
	Count      int
	KWh        float64
	Charge     float64
	Regulation bool
}

// Recorder is a Ledger that keeps every posting in memory.
type Recorder struct {
	mu       sync.Mutex
	postings []Posting
	controls []transaction.BalancingControl

	// Err, when set, is returned by every call after recording it.
	Err error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// PostTransaction implements Ledger.
func (r *Recorder) PostTransaction(_ context.Context, kind transaction.Kind, t *tariff.Tariff, customer string, count int, kwh, charge float64) error {
	r.record(Posting{Kind: kind, TariffID: t.ID, BrokerID: t.BrokerID(), Customer: customer, Count: count, KWh: kwh, Charge: charge})
	return r.Err
}

// PostRegulationTransaction implements Ledger.
func (r *Recorder) PostRegulationTransaction(_ context.Context, t *tariff.Tariff, customer string, count int, kwh, charge float64) error {
	kind := transaction.KindConsume
	if kwh > 0 {
		kind = transaction.KindProduce
	}
	r.record(Posting{Kind: kind, TariffID: t.ID, BrokerID: t.BrokerID(), Customer: customer, Count: count, KWh: kwh, Charge: charge, Regulation: true})
	return r.Err
}

// PostBalancingControl implements Ledger.
func (r *Recorder) PostBalancingControl(_ context.Context, ev transaction.BalancingControl) error {
	r.mu.Lock()
	r.controls = append(r.controls, ev)
	r.mu.Unlock()
	return r.Err
}

func (r *Recorder) record(p Posting) {
	r.mu.Lock()
	r.postings = append(r.postings, p)
	r.mu.Unlock()
}

// Postings returns the recorded tariff postings, optionally filtered by
// kind. Regulation postings are excluded.
func (r *Recorder) Postings(kinds ...transaction.Kind) []Posting {
	return r.filter(false, kinds)
}

// RegulationPostings returns postings made through PostRegulationTransaction.
func (r *Recorder) RegulationPostings() []Posting {
	return r.filter(true, nil)
}

func (r *Recorder) filter(regulation bool, kinds []transaction.Kind) []Posting {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Posting
	for _, p := range r.postings {
		if p.Regulation != regulation {
			continue
		}
		if len(kinds) == 0 || containsKind(kinds, p.Kind) {
			out = append(out, p)
		}
	}
	return out
}

// Controls returns the recorded balancing controls.
func (r *Recorder) Controls() []transaction.BalancingControl {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transaction.BalancingControl, len(r.controls))
	copy(out, r.controls)
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.postings = nil
	r.controls = nil
	r.mu.Unlock()
}

func containsKind(kinds []transaction.Kind, k transaction.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
