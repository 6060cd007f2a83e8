package tariff_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/tariff"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestPowerType(t *testing.T) {
	tests := []struct {
		pt            tariff.PowerType
		consumption   bool
		production    bool
		interruptible bool
		storage       bool
		generic       tariff.PowerType
	}{
		{tariff.Consumption, true, false, false, false, tariff.Consumption},
		{tariff.InterruptibleConsumption, true, false, true, false, tariff.Consumption},
		{tariff.ThermalStorageConsumption, true, false, true, true, tariff.Storage},
		{tariff.SolarProduction, false, true, false, false, tariff.Production},
		{tariff.BatteryStorage, false, false, true, true, tariff.Storage},
		{tariff.PumpedStorageProduction, false, false, false, true, tariff.Storage},
	}

	for _, tt := range tests {
		t.Run(string(tt.pt), func(t *testing.T) {
			if got := tt.pt.IsConsumption(); got != tt.consumption {
				t.Errorf("IsConsumption = %v", got)
			}
			if got := tt.pt.IsProduction(); got != tt.production {
				t.Errorf("IsProduction = %v", got)
			}
			if got := tt.pt.IsInterruptible(); got != tt.interruptible {
				t.Errorf("IsInterruptible = %v", got)
			}
			if got := tt.pt.IsStorage(); got != tt.storage {
				t.Errorf("IsStorage = %v", got)
			}
			if got := tt.pt.Generic(); got != tt.generic {
				t.Errorf("Generic = %v, want %v", got, tt.generic)
			}
		})
	}

	if !tariff.ElectricVehicle.CanUse(tariff.InterruptibleConsumption) {
		t.Error("electric vehicles should use interruptible tariffs")
	}
	if tariff.SolarProduction.CanUse(tariff.Consumption) {
		t.Error("production should not use consumption tariffs")
	}
}

func TestSpecificationValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    func() *tariff.Specification
		wantErr bool
	}{
		{"valid", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1))
		}, false},
		{"no rates", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.Consumption)
		}, true},
		{"coverage gap", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1).WithDaily(0, 20))
		}, true},
		{"curtailment on plain consumption", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1).WithMaxCurtailment(0.5))
		}, true},
		{"regulation on production", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.SolarProduction).
				AddRate(rate.NewFixed(0.05)).
				AddRegulationRate(rate.NewRegulationRate(0.1, -0.05))
		}, true},
		{"regulation on storage", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.BatteryStorage).
				AddRate(rate.NewFixed(-0.1)).
				AddRegulationRate(rate.NewRegulationRate(0.1, -0.05))
		}, false},
		{"invalid rate", func() *tariff.Specification {
			return tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(math.NaN()))
		}, true},
		{"unknown power type", func() *tariff.Specification {
			return tariff.NewSpecification("b1", "GAS").AddRate(rate.NewFixed(-0.1))
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec().Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tariff.ErrInvalidSpecification) {
				t.Errorf("error %v does not wrap ErrInvalidSpecification", err)
			}
		})
	}
}

func TestTransitionsAreMonotonic(t *testing.T) {
	tr := tariff.New(tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1)), start)
	if tr.State != tariff.StatePending {
		t.Fatalf("new tariff state = %s", tr.State)
	}
	if err := tr.Transition(tariff.StateOffered, start); err != nil {
		t.Fatalf("PENDING to OFFERED: %v", err)
	}
	if err := tr.Transition(tariff.StatePending, start); !errors.Is(err, tariff.ErrIllegalTransition) {
		t.Errorf("OFFERED to PENDING: got %v", err)
	}
	if err := tr.Transition(tariff.StateKilled, start); err != nil {
		t.Fatalf("OFFERED to KILLED: %v", err)
	}
	if !tr.IsRevoked() {
		t.Error("killed tariff should be revoked")
	}
	if err := tr.Transition(tariff.StateOffered, start); !errors.Is(err, tariff.ErrIllegalTransition) {
		t.Errorf("KILLED to OFFERED: got %v", err)
	}
}

func TestIsSubscribable(t *testing.T) {
	spec := tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1))
	exp := start.Add(24 * time.Hour)
	spec.Expiration = &exp
	tr := tariff.New(spec, start)

	if tr.IsSubscribable(start) {
		t.Error("pending tariff should not be subscribable")
	}
	if err := tr.Transition(tariff.StateOffered, start); err != nil {
		t.Fatal(err)
	}
	if !tr.IsSubscribable(start) {
		t.Error("offered tariff should be subscribable")
	}
	if tr.IsSubscribable(exp) {
		t.Error("expired tariff should not be subscribable")
	}
	if err := tr.Transition(tariff.StateKilled, start); err != nil {
		t.Fatal(err)
	}
	if tr.IsSubscribable(start) {
		t.Error("revoked tariff should not be subscribable")
	}
}

func TestShortenExpiration(t *testing.T) {
	spec := tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1))
	exp := start.Add(48 * time.Hour)
	spec.Expiration = &exp
	tr := tariff.New(spec, start)

	if err := tr.ShortenExpiration(start.Add(72*time.Hour), start); !errors.Is(err, tariff.ErrExpirationExtend) {
		t.Errorf("extend: got %v", err)
	}
	if err := tr.ShortenExpiration(start.Add(-time.Hour), start); !errors.Is(err, tariff.ErrExpirationPast) {
		t.Errorf("past: got %v", err)
	}
	if err := tr.ShortenExpiration(start.Add(24*time.Hour), start); err != nil {
		t.Fatalf("shorten: %v", err)
	}
	if !tr.Expiration.Equal(start.Add(24 * time.Hour)) {
		t.Errorf("expiration = %v", tr.Expiration)
	}
	if spec.Expiration.Equal(*tr.Expiration) {
		t.Error("specification expiration must not change")
	}
	if !tr.IsExpired(start.Add(24 * time.Hour)) {
		t.Error("tariff should be expired at its expiration")
	}
}

func TestRealizedPrice(t *testing.T) {
	tr := tariff.New(tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1)), start)
	if tr.RealizedPrice() != 0 {
		t.Fatal("realized price before usage should be 0")
	}
	tr.UsageCharge(start, 10, 0, true)
	tr.UsageCharge(start, 30, 10, true)
	if got := tr.RealizedPrice(); math.Abs(got+0.1) > 1e-9 {
		t.Errorf("RealizedPrice = %g, want -0.1", got)
	}
}

func TestMaxUpRegulation(t *testing.T) {
	spec := tariff.NewSpecification("b1", tariff.InterruptibleConsumption).
		AddRate(rate.NewFixed(-0.1).WithMaxCurtailment(0.4))
	tr := tariff.New(spec, start)
	if got := tr.MaxUpRegulation(start, 200, 0); math.Abs(got-80) > 1e-9 {
		t.Errorf("MaxUpRegulation = %g, want 80", got)
	}
	if !tr.IsCurtailmentOnly() {
		t.Error("expected curtailment-only tariff")
	}

	plain := tariff.New(tariff.NewSpecification("b1", tariff.Consumption).AddRate(rate.NewFixed(-0.1)), start)
	if got := plain.MaxUpRegulation(start, 200, 0); got != 0 {
		t.Errorf("non-interruptible MaxUpRegulation = %g, want 0", got)
	}
}
