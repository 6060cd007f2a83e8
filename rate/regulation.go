package rate

import (
	"fmt"
	"math"

	"github.com/xraph/tariffmarket/id"
)

// ResponseTime is how quickly a regulation resource answers a control.
type ResponseTime string

const (
	ResponseMinutes ResponseTime = "minutes"
	ResponseSeconds ResponseTime = "seconds"
)

// RegulationRate prices energy exercised for balancing. Up-regulation is
// curtailed consumption, down-regulation is extra consumption, both from the
// customer's point of view.
type RegulationRate struct {
	ID                    id.RateID    `json:"id"`
	Response              ResponseTime `json:"response"`
	UpRegulationPayment   float64      `json:"up_regulation_payment"`
	DownRegulationPayment float64      `json:"down_regulation_payment"`
}

// NewRegulationRate returns a regulation rate answering in minutes.
func NewRegulationRate(up, down float64) RegulationRate {
	return RegulationRate{
		ID:                    id.NewRateID(),
		Response:              ResponseMinutes,
		UpRegulationPayment:   up,
		DownRegulationPayment: down,
	}
}

// Validate rejects non-finite payments.
func (r RegulationRate) Validate() error {
	for _, v := range []float64{r.UpRegulationPayment, r.DownRegulationPayment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: regulation payment is not finite", ErrInvalidRate)
		}
	}
	return nil
}

// Charge returns the payment for kwh of regulation. Negative kwh is
// up-regulation and is paid at the up rate.
func (r RegulationRate) Charge(kwh float64) float64 {
	if kwh < 0 {
		return -kwh * r.UpRegulationPayment
	}
	return kwh * r.DownRegulationPayment
}
