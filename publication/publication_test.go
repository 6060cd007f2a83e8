package publication_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/tariff"
)

func TestNewSchedulerValidates(t *testing.T) {
	tests := []struct {
		interval, offset int
		ok               bool
	}{
		{6, 0, true},
		{24, 23, true},
		{1, 0, true},
		{0, 0, false},
		{25, 0, false},
		{6, 6, false},
		{6, -1, false},
	}
	for _, tt := range tests {
		_, err := publication.NewScheduler(tt.interval, tt.offset)
		if (err == nil) != tt.ok {
			t.Errorf("NewScheduler(%d, %d) error = %v, want ok=%v", tt.interval, tt.offset, err, tt.ok)
		}
		if err != nil && !errors.Is(err, publication.ErrInvalidSchedule) {
			t.Errorf("error %v should wrap ErrInvalidSchedule", err)
		}
	}
}

func TestDue(t *testing.T) {
	s, err := publication.NewScheduler(6, 2)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if !s.Due(base.Add(5 * time.Hour)) {
		t.Error("first activation should always be due")
	}

	var due []int
	for h := 6; h < 24; h++ {
		if s.Due(base.Add(time.Duration(h) * time.Hour)) {
			due = append(due, h)
		}
	}
	want := []int{8, 14, 20}
	if len(due) != len(want) {
		t.Fatalf("due hours = %v, want %v", due, want)
	}
	for i := range want {
		if due[i] != want[i] {
			t.Errorf("due hours = %v, want %v", due, want)
		}
	}
}

func TestBatch(t *testing.T) {
	at := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	b := publication.NewBatch(6, at)
	if !b.IsEmpty() {
		t.Error("new batch should be empty")
	}
	spec := tariff.NewSpecification("broker-1", tariff.Consumption).AddRate(rate.NewFixed(-0.1))
	b.AddTariff(tariff.New(spec, at))
	b.AddRateUpdate(tariff.VariableRateUpdate{BrokerID: "broker-1", Charge: rate.HourlyCharge{AtTime: at.Add(24 * time.Hour), Value: -0.2}})
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
}
