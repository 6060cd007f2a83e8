package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

type txModel struct {
	ID            string          `bson:"_id"`
	Kind          string          `bson:"kind"`
	BrokerID      string          `bson:"broker_id"`
	TariffID      string          `bson:"tariff_id"`
	CustomerID    string          `bson:"customer_id,omitempty"`
	CustomerCount int             `bson:"customer_count"`
	KWh           float64         `bson:"kwh"`
	Charge        bson.Decimal128 `bson:"charge"`
	Regulation    bool            `bson:"regulation"`
	Timeslot      int             `bson:"timeslot"`
	PostedAt      time.Time       `bson:"posted_at"`
}

func toTxModel(t *transaction.Transaction) (*txModel, error) {
	charge, err := bson.ParseDecimal128(t.Charge.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: encode charge: %w", err)
	}
	return &txModel{
		ID:            t.ID.String(),
		Kind:          string(t.Kind),
		BrokerID:      t.BrokerID,
		TariffID:      t.TariffID.String(),
		CustomerID:    t.CustomerID,
		CustomerCount: t.CustomerCount,
		KWh:           t.KWh,
		Charge:        charge,
		Regulation:    t.Regulation,
		Timeslot:      t.Timeslot,
		PostedAt:      t.PostedAt.UTC(),
	}, nil
}

func fromTxModel(m *txModel) (*transaction.Transaction, error) {
	t := &transaction.Transaction{
		Kind:          transaction.Kind(m.Kind),
		BrokerID:      m.BrokerID,
		CustomerID:    m.CustomerID,
		CustomerCount: m.CustomerCount,
		KWh:           m.KWh,
		Regulation:    m.Regulation,
		Timeslot:      m.Timeslot,
		PostedAt:      m.PostedAt.UTC(),
	}
	if err := t.ID.UnmarshalText([]byte(m.ID)); err != nil {
		return nil, err
	}
	if err := t.TariffID.UnmarshalText([]byte(m.TariffID)); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(m.Charge.String())
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: decode charge: %w", err)
	}
	t.Charge = types.Money{Amount: amount}
	return t, nil
}

type controlModel struct {
	ID       string    `bson:"_id"`
	BrokerID string    `bson:"broker_id"`
	TariffID string    `bson:"tariff_id"`
	KWh      float64   `bson:"kwh"`
	Payment  float64   `bson:"payment"`
	Timeslot int       `bson:"timeslot"`
	PostedAt time.Time `bson:"posted_at"`
}

func toControlModel(c *transaction.BalancingControl) *controlModel {
	return &controlModel{
		ID:       c.ID.String(),
		BrokerID: c.BrokerID,
		TariffID: c.TariffID.String(),
		KWh:      c.KWh,
		Payment:  c.Payment,
		Timeslot: c.Timeslot,
		PostedAt: c.PostedAt.UTC(),
	}
}

func fromControlModel(m *controlModel) (*transaction.BalancingControl, error) {
	c := &transaction.BalancingControl{
		BrokerID: m.BrokerID,
		KWh:      m.KWh,
		Payment:  m.Payment,
		Timeslot: m.Timeslot,
		PostedAt: m.PostedAt.UTC(),
	}
	if err := c.ID.UnmarshalText([]byte(m.ID)); err != nil {
		return nil, err
	}
	if err := c.TariffID.UnmarshalText([]byte(m.TariffID)); err != nil {
		return nil, err
	}
	return c, nil
}
