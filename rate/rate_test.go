package rate_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/rate"
)

type consumption bool

func (c consumption) IsConsumption() bool { return bool(c) }

// Monday 2026-03-02 is an ISO weekday 1.
func at(day, hour int) time.Time {
	return time.Date(2026, 3, 1+day, hour, 0, 0, 0, time.UTC)
}

func TestApplies(t *testing.T) {
	tests := []struct {
		name string
		rate *rate.Rate
		when time.Time
		want bool
	}{
		{"unbounded", rate.NewFixed(-0.1), at(3, 12), true},
		{"inside daily", rate.NewFixed(-0.1).WithDaily(8, 17), at(1, 8), true},
		{"daily end inclusive", rate.NewFixed(-0.1).WithDaily(8, 17), at(1, 17), true},
		{"outside daily", rate.NewFixed(-0.1).WithDaily(8, 17), at(1, 18), false},
		{"wrapping night start", rate.NewFixed(-0.1).WithDaily(23, 5), at(1, 23), true},
		{"wrapping night early", rate.NewFixed(-0.1).WithDaily(23, 5), at(1, 3), true},
		{"wrapping night midday", rate.NewFixed(-0.1).WithDaily(23, 5), at(1, 12), false},
		{"single hour", rate.NewFixed(-0.1).WithDaily(7, 7), at(1, 7), true},
		{"single hour miss", rate.NewFixed(-0.1).WithDaily(7, 7), at(1, 8), false},
		{"weekend on sunday", rate.NewFixed(-0.1).WithWeekly(6, 7), at(7, 10), true},
		{"weekend on monday", rate.NewFixed(-0.1).WithWeekly(6, 7), at(1, 10), false},
		{"week wrap", rate.NewFixed(-0.1).WithWeekly(7, 1), at(1, 10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.Applies(tt.when); got != tt.want {
				t.Errorf("Applies(%v) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestAppliesTier(t *testing.T) {
	r := rate.NewFixed(-0.2).WithTier(20)
	if r.AppliesTier(at(1, 1), 19.9) {
		t.Error("tier should not apply below threshold")
	}
	if !r.AppliesTier(at(1, 1), 20) {
		t.Error("tier should apply at threshold")
	}
}

func TestVariableValue(t *testing.T) {
	r := rate.NewVariable(-0.05, -0.5, -0.1, 2)
	now := at(1, 0)

	if got := r.Value(at(1, 5)); got != -0.1 {
		t.Fatalf("no history: got %g, want expected mean", got)
	}

	if err := r.AddHourlyCharge(rate.HourlyCharge{AtTime: at(1, 5), Value: -0.3}, now); err != nil {
		t.Fatalf("AddHourlyCharge: %v", err)
	}
	if got := r.Value(at(1, 5).Add(20 * time.Minute)); got != -0.3 {
		t.Errorf("inside announced hour: got %g, want -0.3", got)
	}
	if got := r.Value(at(1, 6)); got != -0.1 {
		t.Errorf("later hour: got %g, want expected mean", got)
	}

	if err := r.AddHourlyCharge(rate.HourlyCharge{AtTime: at(1, 5), Value: -0.2}, now); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := r.Value(at(1, 5)); got != -0.2 {
		t.Errorf("after replace: got %g, want -0.2", got)
	}
	if n := len(r.History()); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
}

func TestAddHourlyChargeRejects(t *testing.T) {
	now := at(1, 0)
	tests := []struct {
		name   string
		rate   *rate.Rate
		charge rate.HourlyCharge
		want   error
	}{
		{"fixed", rate.NewFixed(-0.1), rate.HourlyCharge{AtTime: at(1, 5), Value: -0.1}, rate.ErrFixedRate},
		{"too late", rate.NewVariable(-0.05, -0.5, -0.1, 3), rate.HourlyCharge{AtTime: at(1, 2), Value: -0.1}, rate.ErrNoticeViolation},
		{"too high", rate.NewVariable(-0.05, -0.5, -0.1, 1), rate.HourlyCharge{AtTime: at(1, 5), Value: -0.6}, rate.ErrChargeOutOfBounds},
		{"too low", rate.NewVariable(-0.05, -0.5, -0.1, 1), rate.HourlyCharge{AtTime: at(1, 5), Value: -0.01}, rate.ErrChargeOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rate.AddHourlyCharge(tt.charge, now)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if len(tt.rate.History()) != 0 {
				t.Error("rejected charge was recorded")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rate    *rate.Rate
		wantErr bool
	}{
		{"fixed ok", rate.NewFixed(-0.1), false},
		{"variable ok", rate.NewVariable(-0.05, -0.5, -0.1, 0), false},
		{"nan", rate.NewFixed(math.NaN()), true},
		{"inf mean", rate.NewVariable(-0.05, -0.5, math.Inf(-1), 0), true},
		{"curtailment above one", rate.NewFixed(-0.1).WithMaxCurtailment(1.5), true},
		{"hour out of range", rate.NewFixed(-0.1).WithDaily(0, 24), true},
		{"day out of range", rate.NewFixed(-0.1).WithWeekly(0, 3), true},
		{"half daily window", rate.NewFixed(-0.1).WithDaily(5, rate.NoTime), true},
		{"max below min", rate.NewVariable(-0.5, -0.05, -0.1, 0), true},
		{"mean out of range", rate.NewVariable(-0.05, -0.5, -0.6, 0), true},
		{"negative notice", rate.NewVariable(-0.05, -0.5, -0.1, -1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rate.Validate(consumption(true))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, rate.ErrInvalidRate) {
				t.Errorf("error %v does not wrap ErrInvalidRate", err)
			}
		})
	}
}

func TestRegulationCharge(t *testing.T) {
	rr := rate.NewRegulationRate(0.11, -0.05)
	if got := rr.Charge(-40); math.Abs(got-4.4) > 1e-9 {
		t.Errorf("up-regulation charge = %g, want 4.4", got)
	}
	if got := rr.Charge(10); math.Abs(got+0.5) > 1e-9 {
		t.Errorf("down-regulation charge = %g, want -0.5", got)
	}
}
