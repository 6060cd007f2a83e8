package tariff

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
)

// ErrInvalidSpecification wraps every structural problem found by Validate.
var ErrInvalidSpecification = errors.New("tariff: invalid specification")

// Specification is a broker's tariff offer. It is not modified after it has
// been submitted to the market.
type Specification struct {
	ID                   id.TariffID           `json:"id"`
	BrokerID             string                `json:"broker_id"`
	PowerType            PowerType             `json:"power_type"`
	Rates                []*rate.Rate          `json:"rates"`
	RegulationRates      []rate.RegulationRate `json:"regulation_rates,omitempty"`
	Expiration           *time.Time            `json:"expiration,omitempty"`
	MinDuration          time.Duration         `json:"min_duration"`
	SignupPayment        float64               `json:"signup_payment"`
	EarlyWithdrawPayment float64               `json:"early_withdraw_payment"`
	PeriodicPayment      float64               `json:"periodic_payment"`
	Supersedes           []id.TariffID         `json:"supersedes,omitempty"`
}

// NewSpecification returns an empty specification for broker with a fresh ID.
func NewSpecification(brokerID string, pt PowerType) *Specification {
	return &Specification{
		ID:        id.NewTariffID(),
		BrokerID:  brokerID,
		PowerType: pt,
	}
}

// AddRate appends r, assigning it an ID if it has none.
func (s *Specification) AddRate(r *rate.Rate) *Specification {
	if r.ID.IsNil() {
		r.ID = id.NewRateID()
	}
	s.Rates = append(s.Rates, r)
	return s
}

// AddRegulationRate appends a regulation rate.
func (s *Specification) AddRegulationRate(rr rate.RegulationRate) *Specification {
	if rr.ID.IsNil() {
		rr.ID = id.NewRateID()
	}
	s.RegulationRates = append(s.RegulationRates, rr)
	return s
}

// HasRegulationRate reports whether the offer prices balancing energy.
func (s *Specification) HasRegulationRate() bool {
	return len(s.RegulationRates) > 0
}

// Validate checks everything about the offer that does not depend on market
// state: rates, payments, balancing components and hour coverage.
func (s *Specification) Validate() error {
	if s.BrokerID == "" {
		return fmt.Errorf("%w: missing broker", ErrInvalidSpecification)
	}
	if !s.PowerType.Valid() {
		return fmt.Errorf("%w: unknown power type %q", ErrInvalidSpecification, s.PowerType)
	}
	if len(s.Rates) == 0 {
		return fmt.Errorf("%w: no rates", ErrInvalidSpecification)
	}
	for _, v := range []float64{s.SignupPayment, s.EarlyWithdrawPayment, s.PeriodicPayment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: payment is not finite", ErrInvalidSpecification)
		}
	}
	if s.MinDuration < 0 {
		return fmt.Errorf("%w: negative minimum duration", ErrInvalidSpecification)
	}
	for _, r := range s.Rates {
		if err := r.Validate(s.PowerType); err != nil {
			return fmt.Errorf("%w: rate %s: %w", ErrInvalidSpecification, r.ID, err)
		}
	}
	for _, rr := range s.RegulationRates {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSpecification, err)
		}
	}

	balancing := s.HasRegulationRate() || rate.HasCurtailment(s.Rates)
	if balancing && !s.PowerType.IsInterruptible() && !s.PowerType.IsStorage() {
		return fmt.Errorf("%w: balancing rates on %s", ErrInvalidSpecification, s.PowerType)
	}
	if !rate.Analyze(s.Rates).Covered() {
		return fmt.Errorf("%w: rates leave an hour uncovered", ErrInvalidSpecification)
	}
	return nil
}
