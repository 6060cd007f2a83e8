// Package balancing aggregates regulation capacity across subscriptions
// and settles balancing actions against it.
package balancing

import (
	"context"
	"errors"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/transaction"
)

var ErrPastTimeslot = errors.New("balancing: control targets a past timeslot")

// Order offers a tariff's regulation capacity to the balancing market.
// A positive ExerciseRatio is up-regulation, a negative one down-regulation.
type Order struct {
	ID            id.OrderID  `json:"id"`
	BrokerID      string      `json:"broker_id"`
	TariffID      id.TariffID `json:"tariff_id"`
	ExerciseRatio float64     `json:"exercise_ratio"`
	Price         float64     `json:"price"`
}

// NewOrder returns an order with a fresh ID.
func NewOrder(brokerID string, tariffID id.TariffID, ratio, price float64) *Order {
	return &Order{
		ID:            id.NewOrderID(),
		BrokerID:      brokerID,
		TariffID:      tariffID,
		ExerciseRatio: ratio,
		Price:         price,
	}
}

// IsUp reports whether the order offers up-regulation.
func (o *Order) IsUp() bool { return o.ExerciseRatio > 0 }

// EconomicControl asks every subscription of a tariff to curtail a share of
// its usage in one timeslot.
type EconomicControl struct {
	ID               id.ControlID `json:"id"`
	BrokerID         string       `json:"broker_id"`
	TariffID         id.TariffID  `json:"tariff_id"`
	CurtailmentRatio float64      `json:"curtailment_ratio"`
	Timeslot         int          `json:"timeslot"`
}

// ControlEvent reports an exercised balancing order to its broker.
type ControlEvent = transaction.BalancingControl

// Store persists balancing orders.
type Store interface {
	// SaveOrder stores o, replacing any order for the same tariff and
	// direction.
	SaveOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	// ListOrders returns the orders of tariffID, or every order when
	// tariffID is nil.
	ListOrders(ctx context.Context, tariffID id.TariffID) ([]*Order, error)
	DeleteOrders(ctx context.Context, tariffID id.TariffID) error
}
