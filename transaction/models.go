// Package transaction defines the journal of money and energy movements
// the market posts for brokers.
package transaction

import (
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/types"
)

// Kind is the reason a transaction was posted.
type Kind string

const (
	KindPublish  Kind = "PUBLISH"
	KindProduce  Kind = "PRODUCE"
	KindConsume  Kind = "CONSUME"
	KindPeriodic Kind = "PERIODIC"
	KindSignup   Kind = "SIGNUP"
	KindWithdraw Kind = "WITHDRAW"
	KindRevoke   Kind = "REVOKE"
	KindRefund   Kind = "REFUND"
)

// Kinds lists every transaction kind.
func Kinds() []Kind {
	return []Kind{KindPublish, KindProduce, KindConsume, KindPeriodic, KindSignup, KindWithdraw, KindRevoke, KindRefund}
}

// Transaction is one journal entry. Charge is from the broker's point of
// view: positive amounts are paid to the broker.
type Transaction struct {
	ID            id.TransactionID `json:"id"`
	Kind          Kind             `json:"kind"`
	BrokerID      string           `json:"broker_id"`
	TariffID      id.TariffID      `json:"tariff_id"`
	CustomerID    string           `json:"customer_id,omitempty"`
	CustomerCount int              `json:"customer_count"`
	KWh           float64          `json:"kwh"`
	Charge        types.Money      `json:"charge"`
	Regulation    bool             `json:"regulation"`
	Timeslot      int              `json:"timeslot"`
	PostedAt      time.Time        `json:"posted_at"`
}

// BalancingControl records a balancing action exercised against one tariff.
type BalancingControl struct {
	ID       id.ControlID `json:"id"`
	BrokerID string       `json:"broker_id"`
	TariffID id.TariffID  `json:"tariff_id"`
	KWh      float64      `json:"kwh"`
	Payment  float64      `json:"payment"`
	Timeslot int          `json:"timeslot"`
	PostedAt time.Time    `json:"posted_at"`
}
