package transaction

import (
	"context"
	"time"

	"github.com/xraph/tariffmarket/id"
)

// Store is an append-only journal. Lists return entries in posting order.
type Store interface {
	AppendTransactions(ctx context.Context, txs []*Transaction) error
	ListTransactions(ctx context.Context, opts ListOpts) ([]*Transaction, error)
	AppendBalancingControl(ctx context.Context, c *BalancingControl) error
	ListBalancingControls(ctx context.Context, opts ListOpts) ([]*BalancingControl, error)
}

// ListOpts filters journal queries. Zero fields match everything. Kind is
// ignored for balancing controls.
type ListOpts struct {
	BrokerID string
	TariffID id.TariffID
	Kind     Kind
	Since    time.Time
	Limit    int
	Offset   int
}

// Matches reports whether tx passes the filter.
func (o ListOpts) Matches(tx *Transaction) bool {
	return o.match(tx.BrokerID, tx.TariffID, tx.PostedAt) && (o.Kind == "" || tx.Kind == o.Kind)
}

// MatchesControl reports whether c passes the filter.
func (o ListOpts) MatchesControl(c *BalancingControl) bool {
	return o.match(c.BrokerID, c.TariffID, c.PostedAt)
}

func (o ListOpts) match(broker string, tariffID id.TariffID, at time.Time) bool {
	if o.BrokerID != "" && broker != o.BrokerID {
		return false
	}
	if !o.TariffID.IsNil() && !tariffID.Equal(o.TariffID) {
		return false
	}
	return o.Since.IsZero() || !at.Before(o.Since)
}
