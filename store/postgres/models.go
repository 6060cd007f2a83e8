package postgres

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

var (
	txColumns      = []string{"id", "kind", "broker_id", "tariff_id", "customer_id", "customer_count", "kwh", "charge", "regulation", "timeslot", "posted_at"}
	controlColumns = []string{"id", "broker_id", "tariff_id", "kwh", "payment", "timeslot", "posted_at"}
)

// txModel is the row shape of tariffmarket_transactions. Charge travels as
// text so NUMERIC keeps its exact value.
type txModel struct {
	ID            string
	Kind          string
	BrokerID      string
	TariffID      string
	CustomerID    string
	CustomerCount int
	KWh           float64
	Charge        string
	Regulation    bool
	Timeslot      int
	PostedAt      time.Time
}

func toTxModel(t *transaction.Transaction) txModel {
	return txModel{
		ID:            t.ID.String(),
		Kind:          string(t.Kind),
		BrokerID:      t.BrokerID,
		TariffID:      t.TariffID.String(),
		CustomerID:    t.CustomerID,
		CustomerCount: t.CustomerCount,
		KWh:           t.KWh,
		Charge:        t.Charge.Amount.String(),
		Regulation:    t.Regulation,
		Timeslot:      t.Timeslot,
		PostedAt:      t.PostedAt.UTC(),
	}
}

func (m txModel) values() []any {
	return []any{m.ID, m.Kind, m.BrokerID, m.TariffID, m.CustomerID, m.CustomerCount, m.KWh, m.Charge, m.Regulation, m.Timeslot, m.PostedAt}
}

func (m *txModel) targets() []any {
	return []any{&m.ID, &m.Kind, &m.BrokerID, &m.TariffID, &m.CustomerID, &m.CustomerCount, &m.KWh, &m.Charge, &m.Regulation, &m.Timeslot, &m.PostedAt}
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
	amount, err := decimal.NewFromString(m.Charge)
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/postgres: parse charge: %w", err)
	}
	t.Charge = types.Money{Amount: amount}
	return t, nil
}

// controlModel is the row shape of tariffmarket_balancing_controls.
type controlModel struct {
	ID       string
	BrokerID string
	TariffID string
	KWh      float64
	Payment  float64
	Timeslot int
	PostedAt time.Time
}

func toControlModel(c *transaction.BalancingControl) controlModel {
	return controlModel{
		ID:       c.ID.String(),
		BrokerID: c.BrokerID,
		TariffID: c.TariffID.String(),
		KWh:      c.KWh,
		Payment:  c.Payment,
		Timeslot: c.Timeslot,
		PostedAt: c.PostedAt.UTC(),
	}
}

func (m controlModel) values() []any {
	return []any{m.ID, m.BrokerID, m.TariffID, m.KWh, m.Payment, m.Timeslot, m.PostedAt}
}

func (m *controlModel) targets() []any {
	return []any{&m.ID, &m.BrokerID, &m.TariffID, &m.KWh, &m.Payment, &m.Timeslot, &m.PostedAt}
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
