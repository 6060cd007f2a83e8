package accounting

import (
	"context"
	"time"

	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

// Statement summarizes a broker's journal since a point in time.
type Statement struct {
	BrokerID  string      `json:"broker_id"`
	Since     time.Time   `json:"since"`
	Until     time.Time   `json:"until"`
	Lines     []Line      `json:"lines"`
	Total     types.Money `json:"total"`
	Balancing float64     `json:"balancing_payment"`
}

// Line totals the transactions of one kind.
type Line struct {
	Kind       transaction.Kind `json:"kind"`
	Regulation bool             `json:"regulation"`
	Count      int              `json:"count"`
	KWh        float64          `json:"kwh"`
	Amount     types.Money      `json:"amount"`
}

// Statement flushes pending postings and builds the broker's statement
// from the store.
func (j *Journal) Statement(ctx context.Context, brokerID string, since time.Time) (*Statement, error) {
	if err := j.Flush(ctx); err != nil {
		return nil, err
	}

	opts := transaction.ListOpts{BrokerID: brokerID, Since: since}
	txs, err := j.store.ListTransactions(ctx, opts)
	if err != nil {
		return nil, err
	}
	controls, err := j.store.ListBalancingControls(ctx, opts)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		BrokerID: brokerID,
		Since:    since,
		Until:    j.clock.Now(),
		Total:    types.Zero(),
	}

	type key struct {
		kind       transaction.Kind
		regulation bool
	}
	index := make(map[key]int)
	for _, tx := range txs {
		k := key{tx.Kind, tx.Regulation}
		i, ok := index[k]
		if !ok {
			i = len(st.Lines)
			index[k] = i
			st.Lines = append(st.Lines, Line{Kind: tx.Kind, Regulation: tx.Regulation, Amount: types.Zero()})
		}
		st.Lines[i].Count++
		st.Lines[i].KWh += tx.KWh
		st.Lines[i].Amount = st.Lines[i].Amount.Add(tx.Charge)
		st.Total = st.Total.Add(tx.Charge)
	}
	for _, c := range controls {
		st.Balancing += c.Payment
	}
	return st, nil
}

// Line returns the line for kind, or a zero line.
func (s *Statement) Line(kind transaction.Kind) Line {
	for _, l := range s.Lines {
		if l.Kind == kind && !l.Regulation {
			return l
		}
	}
	return Line{Kind: kind, Amount: types.Zero()}
}
