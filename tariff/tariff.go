package tariff

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/types"
)

// State is the lifecycle position of a tariff.
type State string

const (
	StatePending   State = "PENDING"
	StateOffered   State = "OFFERED"
	StateWithdrawn State = "WITHDRAWN"
	StateKilled    State = "KILLED"
)

var (
	ErrIllegalTransition = errors.New("tariff: illegal state transition")
	ErrExpirationPast    = errors.New("tariff: expiration in the past")
	ErrExpirationExtend  = errors.New("tariff: expiration cannot be extended")
)

// Tariff is the market's live record of an accepted Specification.
type Tariff struct {
	types.Entity
	ID           id.TariffID    `json:"id"`
	Spec         *Specification `json:"spec"`
	State        State          `json:"state"`
	Expiration   *time.Time     `json:"expiration,omitempty"`
	OfferDate    time.Time      `json:"offer_date"`
	SupersededBy id.TariffID    `json:"superseded_by,omitempty"`
	TotalCost    float64        `json:"total_cost"`
	TotalUsage   float64        `json:"total_usage"`

	rates *rate.Map
}

// New wraps an accepted specification in a PENDING tariff.
func New(spec *Specification, now time.Time) *Tariff {
	t := &Tariff{
		Entity:    types.NewEntity(now),
		ID:        spec.ID,
		Spec:      spec,
		State:     StatePending,
		OfferDate: now.UTC(),
	}
	if spec.Expiration != nil {
		exp := *spec.Expiration
		t.Expiration = &exp
	}
	t.rates = rate.Analyze(spec.Rates)
	return t
}

// BrokerID returns the owning broker.
func (t *Tariff) BrokerID() string { return t.Spec.BrokerID }

// PowerType returns the power type the tariff is offered for.
func (t *Tariff) PowerType() PowerType { return t.Spec.PowerType }

// RateMap returns the analysed rate structure.
func (t *Tariff) RateMap() *rate.Map {
	if t.rates == nil {
		t.rates = rate.Analyze(t.Spec.Rates)
	}
	return t.rates
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StatePending: {StateOffered, StateKilled},
	StateOffered: {StateWithdrawn, StateKilled},
}

// Transition moves the tariff forward in its lifecycle.
func (t *Tariff) Transition(to State, now time.Time) error {
	for _, s := range transitions[t.State] {
		if s == to {
			t.State = to
			t.Touch(now)
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, t.State, to)
}

// IsRevoked reports whether the tariff has been killed.
func (t *Tariff) IsRevoked() bool { return t.State == StateKilled }

// IsExpired reports whether now is at or past the expiration.
func (t *Tariff) IsExpired(now time.Time) bool {
	return t.Expiration != nil && !now.Before(*t.Expiration)
}

// IsSubscribable reports whether customers may join the tariff at now.
// Tariffs become subscribable when they are published.
func (t *Tariff) IsSubscribable(now time.Time) bool {
	return t.IsActive(now)
}

// IsActive reports whether the tariff is offered and unexpired at now.
func (t *Tariff) IsActive(now time.Time) bool {
	return t.State == StateOffered && !t.IsExpired(now)
}

// ShortenExpiration moves the expiration earlier. It never extends it.
func (t *Tariff) ShortenExpiration(exp, now time.Time) error {
	if exp.Before(now) {
		return ErrExpirationPast
	}
	if t.Expiration != nil && exp.After(*t.Expiration) {
		return ErrExpirationExtend
	}
	exp = exp.UTC()
	t.Expiration = &exp
	t.Touch(now)
	return nil
}

// FindRate returns the tariff's rate with the given ID.
func (t *Tariff) FindRate(rateID id.RateID) *rate.Rate {
	for _, r := range t.Spec.Rates {
		if r.ID.Equal(rateID) {
			return r
		}
	}
	return nil
}

// HasRegulationRate reports whether the tariff prices balancing energy.
func (t *Tariff) HasRegulationRate() bool { return t.Spec.HasRegulationRate() }

// IsCurtailmentOnly reports whether the tariff declares curtailment without
// a regulation rate.
func (t *Tariff) IsCurtailmentOnly() bool {
	return !t.HasRegulationRate() && rate.HasCurtailment(t.Spec.Rates)
}

// MaxCurtailment returns the largest curtailment ratio declared by any rate.
func (t *Tariff) MaxCurtailment() float64 {
	var m float64
	for _, r := range t.Spec.Rates {
		if r.MaxCurtailment > m {
			m = r.MaxCurtailment
		}
	}
	return m
}

// UsageCharge prices kwh used by one customer at at, given the usage the
// customer has accumulated today. With record set the amounts feed the
// realized price.
func (t *Tariff) UsageCharge(at time.Time, kwh, cumulative float64, record bool) float64 {
	amt := t.RateMap().UsageCharge(at, kwh, cumulative)
	if record {
		t.TotalUsage += kwh
		t.TotalCost += amt
	}
	return amt
}

// RegulationCharge prices kwh of regulation at at. Without a regulation
// rate it is priced as ordinary usage.
func (t *Tariff) RegulationCharge(at time.Time, kwh float64, record bool) float64 {
	if !t.HasRegulationRate() {
		return t.UsageCharge(at, kwh, 0, record)
	}
	amt := t.Spec.RegulationRates[0].Charge(kwh)
	if record {
		t.TotalCost += amt
	}
	return amt
}

// MaxUpRegulation returns how much of kwh used at at may be curtailed.
func (t *Tariff) MaxUpRegulation(at time.Time, kwh, cumulative float64) float64 {
	if !t.PowerType().IsInterruptible() {
		return 0
	}
	return t.RateMap().MaxCurtailment(at, kwh, cumulative)
}

// RealizedPrice is the average price per kWh charged so far, or 0 before
// any usage.
func (t *Tariff) RealizedPrice() float64 {
	if t.TotalUsage == 0 {
		return 0
	}
	return t.TotalCost / t.TotalUsage
}
