package tariff

import (
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
)

// StatusCode is the outcome of a broker request.
type StatusCode string

const (
	StatusSuccess       StatusCode = "success"
	StatusNoSuchTariff  StatusCode = "noSuchTariff"
	StatusInvalidUpdate StatusCode = "invalidUpdate"
	StatusInvalidTariff StatusCode = "invalidTariff"
	StatusUnsupported   StatusCode = "unsupported"
)

// Status answers exactly one broker request.
type Status struct {
	ID       id.MessageID `json:"id"`
	BrokerID string       `json:"broker_id"`
	TariffID id.TariffID  `json:"tariff_id"`
	UpdateID id.ID        `json:"update_id"`
	Code     StatusCode   `json:"status"`
	Message  string       `json:"message,omitempty"`
}

// NewStatus builds the answer to the request updateID.
func NewStatus(brokerID string, tariffID id.TariffID, updateID id.ID, code StatusCode, msg string) Status {
	return Status{
		ID:       id.NewMessageID(),
		BrokerID: brokerID,
		TariffID: tariffID,
		UpdateID: updateID,
		Code:     code,
		Message:  msg,
	}
}

// OK reports whether the request succeeded.
func (s Status) OK() bool { return s.Code == StatusSuccess }

// Expire asks the market to move a tariff's expiration earlier.
type Expire struct {
	ID            id.MessageID `json:"id"`
	BrokerID      string       `json:"broker_id"`
	TariffID      id.TariffID  `json:"tariff_id"`
	NewExpiration time.Time    `json:"new_expiration"`
}

// Revoke asks the market to withdraw a tariff. It is also the notice
// broadcast once the revocation takes effect.
type Revoke struct {
	ID       id.MessageID `json:"id"`
	BrokerID string       `json:"broker_id"`
	TariffID id.TariffID  `json:"tariff_id"`
}

// VariableRateUpdate announces an hourly charge for a variable rate.
type VariableRateUpdate struct {
	ID       id.MessageID      `json:"id"`
	BrokerID string            `json:"broker_id"`
	TariffID id.TariffID       `json:"tariff_id"`
	RateID   id.RateID         `json:"rate_id"`
	Charge   rate.HourlyCharge `json:"hourly_charge"`
}
