package subscription

import (
	"context"

	"github.com/xraph/tariffmarket/regulation"
)

// SetRegulationCapacity stores the capacity the customer model reports for
// the current timeslot.
func (s *Subscription) SetRegulationCapacity(c regulation.Accumulator) {
	s.Capacity = regulation.New(c.Up, c.Down)
}

// RemainingRegulationCapacity returns the capacity still available this
// timeslot, reduced in proportion to customers waiting to leave.
func (s *Subscription) RemainingRegulationCapacity() regulation.Accumulator {
	if s.CustomersCommitted == 0 {
		return regulation.Accumulator{}
	}
	if s.PendingUnsubscribe == 0 {
		return s.Capacity
	}
	ratio := float64(s.CustomersCommitted-s.PendingUnsubscribe) / float64(s.CustomersCommitted)
	return s.Capacity.Scale(ratio)
}

// PostRatioControl schedules an economic control for the next UsePower.
//
// A ratio in [0,1] curtails that share of usage. A ratio in (1,2]
// discharges storage and a ratio in [-1,0) absorbs energy; both are only
// honored under a regulation rate.
func (s *Subscription) PostRatioControl(ratio float64) {
	s.PendingRatio = ratio
}

// PostBalancingControl applies kwh of balancing regulation and posts its
// charge. Negative kwh is up-regulation.
func (s *Subscription) PostBalancingControl(ctx context.Context, kwh, charge float64) error {
	s.RegulationKWh += kwh
	if kwh <= 0 {
		s.Capacity.SetUp(s.Capacity.Up + kwh)
	} else {
		s.Capacity.SetDown(s.Capacity.Down + kwh)
	}
	return s.ledger.PostRegulationTransaction(ctx, s.tariff, s.CustomerID, s.CustomersCommitted, -kwh, charge)
}

// Curtailment returns the energy curtailed this timeslot in the direction
// of the tariff's power type and resets the regulation total.
func (s *Subscription) Curtailment() float64 {
	sgn := 1.0
	if s.tariff.PowerType().IsProduction() {
		sgn = -1.0
	}
	result := sgn * max(sgn*s.RegulationKWh, 0)
	s.RegulationKWh = 0
	return result
}

// Regulation returns the net regulation applied this timeslot and resets it.
func (s *Subscription) Regulation() float64 {
	result := s.RegulationKWh
	s.RegulationKWh = 0
	return result
}

// economicRegulation applies the pending ratio control to proposed usage
// and returns the amount removed from it.
func (s *Subscription) economicRegulation(proposed float64) float64 {
	s.RegulationKWh = 0
	ratio := s.PendingRatio
	s.PendingRatio = 0

	var result float64
	switch {
	case !s.tariff.HasRegulationRate():
		mur := s.tariff.MaxUpRegulation(s.clock.Now(), proposed, s.TotalUsage)
		result = min(proposed*ratio, mur)
		s.Capacity.SetUp(mur - result)
	case ratio < 0:
		result = -ratio * s.Capacity.Down
		s.Capacity.SetDown(s.Capacity.Down - result)
	case ratio > 1:
		if s.Capacity.Up > proposed {
			excess := s.Capacity.Up - proposed
			result = proposed + (ratio-1)*excess
			s.Capacity.SetUp(s.Capacity.Up - result)
		}
	default:
		result = ratio * s.Capacity.Up
		s.Capacity.SetUp(s.Capacity.Up - result)
	}
	s.RegulationKWh += result
	return result
}
