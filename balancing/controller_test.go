package balancing_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/accounting"
	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/regulation"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transport"
	"github.com/xraph/tariffmarket/types"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type source struct {
	tariff  *tariff.Tariff
	subs    []*subscription.Subscription
	updates int
}

func (s *source) LookupTariff(_ context.Context, tid id.TariffID) (*tariff.Tariff, error) {
	if s.tariff == nil || !s.tariff.ID.Equal(tid) {
		return nil, errors.New("not found")
	}
	return s.tariff, nil
}

func (s *source) TariffSubscriptions(_ context.Context, tid id.TariffID) ([]*subscription.Subscription, error) {
	if s.tariff == nil || !s.tariff.ID.Equal(tid) {
		return nil, nil
	}
	return s.subs, nil
}

func (s *source) UpdateSubscription(context.Context, *subscription.Subscription) error {
	s.updates++
	return nil
}

type harness struct {
	clock  *types.SimClock
	ledger *accounting.Recorder
	outbox *transport.Outbox
	src    *source
	ctl    *balancing.Controller
}

func newHarness(t *testing.T, spec *tariff.Specification, customers ...int) *harness {
	t.Helper()
	if err := spec.Validate(); err != nil {
		t.Fatalf("invalid spec: %v", err)
	}
	h := &harness{
		clock:  types.NewSimClock(start),
		ledger: accounting.NewRecorder(),
		outbox: transport.NewOutbox(),
	}
	tr := tariff.New(spec, start)
	if err := tr.Transition(tariff.StateOffered, start); err != nil {
		t.Fatal(err)
	}
	h.src = &source{tariff: tr}
	for i, n := range customers {
		s := subscription.New(string(rune('a'+i)), tr, h.ledger, h.clock)
		if err := s.Subscribe(context.Background(), n); err != nil {
			t.Fatal(err)
		}
		h.src.subs = append(h.src.subs, s)
	}
	h.ledger.Reset()
	h.ctl = balancing.NewController(h.src, h.ledger, h.outbox, h.clock)
	return h
}

func (h *harness) order(ratio float64) *balancing.Order {
	return balancing.NewOrder("broker-1", h.src.tariff.ID, ratio, 0.1)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func interruptible(curtail float64) *tariff.Specification {
	return tariff.NewSpecification("broker-1", tariff.InterruptibleConsumption).
		AddRate(rate.NewFixed(-0.1).WithMaxCurtailment(curtail))
}

func storage() *tariff.Specification {
	return tariff.NewSpecification("broker-1", tariff.BatteryStorage).
		AddRate(rate.NewFixed(-0.1)).
		AddRegulationRate(rate.NewRegulationRate(0.1, -0.05))
}

func TestRegulationCapacity(t *testing.T) {
	ctx := context.Background()

	t.Run("curtailment only", func(t *testing.T) {
		h := newHarness(t, interruptible(0.4), 10, 10)
		_ = h.src.subs[0].UsePower(ctx, 200)
		_ = h.src.subs[1].UsePower(ctx, 300)

		got, err := h.ctl.RegulationCapacity(ctx, h.order(1))
		if err != nil {
			t.Fatal(err)
		}
		if !near(got.Up, 200) || got.Down != 0 {
			t.Errorf("capacity = %v, want (200, 0)", got)
		}
	})

	t.Run("regulation rate", func(t *testing.T) {
		h := newHarness(t, storage(), 3, 2)
		h.src.subs[0].SetRegulationCapacity(regulation.New(3.0, -1.5))
		h.src.subs[1].SetRegulationCapacity(regulation.New(2.0, -1.1))

		got, err := h.ctl.RegulationCapacity(ctx, h.order(1))
		if err != nil {
			t.Fatal(err)
		}
		if !near(got.Up, 5.0) || !near(got.Down, -2.6) {
			t.Errorf("capacity = %v, want (5.0, -2.6)", got)
		}
	})

	t.Run("unknown tariff", func(t *testing.T) {
		h := newHarness(t, storage(), 1)
		got, err := h.ctl.RegulationCapacity(ctx, balancing.NewOrder("broker-1", id.NewTariffID(), 1, 0))
		if err != nil || !got.IsZero() {
			t.Errorf("got %v, %v; want zero capacity", got, err)
		}
	})
}

func TestExerciseAllocatesProportionally(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, interruptible(0.5), 5, 5)
	h.src.subs[0].SetRegulationCapacity(regulation.New(80, 0))
	h.src.subs[1].SetRegulationCapacity(regulation.New(120, 0))

	ev, err := h.ctl.Exercise(ctx, h.order(1), 100, 11)
	if err != nil {
		t.Fatal(err)
	}

	regs := h.ledger.RegulationPostings()
	if len(regs) != 2 {
		t.Fatalf("got %d regulation postings, want 2", len(regs))
	}
	wantKWh := []float64{40, 60}
	wantCharge := []float64{4.4, 6.6}
	var total float64
	for i, p := range regs {
		if !near(p.KWh, wantKWh[i]) || !near(p.Charge, wantCharge[i]) {
			t.Errorf("posting %d = %+v, want %g kWh at %g", i, p, wantKWh[i], wantCharge[i])
		}
		total += p.KWh
	}
	if !near(total, 100) {
		t.Errorf("allocations sum to %g, want 100", total)
	}

	for i, want := range []float64{-40, -60} {
		if got := h.src.subs[i].Regulation(); !near(got, want) {
			t.Errorf("sub %d regulation = %g, want %g", i, got, want)
		}
	}

	if ev == nil || !near(ev.KWh, 100) || ev.Payment != 11 {
		t.Fatalf("control event = %+v", ev)
	}
	if got := h.ledger.Controls(); len(got) != 1 {
		t.Errorf("ledger got %d control events, want 1", len(got))
	}
	if got := h.outbox.SentTo("broker-1"); len(got) != 1 {
		t.Errorf("broker got %d messages, want 1", len(got))
	}
	if h.src.updates != 2 {
		t.Errorf("persisted %d subscriptions, want 2", h.src.updates)
	}
}

func TestExerciseCapsAtAvailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, interruptible(0.5), 1)
	h.src.subs[0].SetRegulationCapacity(regulation.New(30, 0))

	ev, err := h.ctl.Exercise(ctx, h.order(1), 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !near(ev.KWh, 30) {
		t.Errorf("exercised %g kWh, want 30", ev.KWh)
	}
	if !h.src.subs[0].RemainingRegulationCapacity().IsZero() {
		t.Error("capacity should be exhausted")
	}
}

func TestExerciseUsesRegulationRate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, storage(), 1)
	h.src.subs[0].SetRegulationCapacity(regulation.New(10, -10))

	if _, err := h.ctl.Exercise(ctx, h.order(-1), -4, 99); err != nil {
		t.Fatal(err)
	}
	regs := h.ledger.RegulationPostings()
	if len(regs) != 1 {
		t.Fatalf("got %d postings", len(regs))
	}
	// Down-regulation of 4 kWh at -0.05.
	if !near(regs[0].KWh, -4) || !near(regs[0].Charge, -0.2) {
		t.Errorf("posting = %+v, want -4 kWh at -0.2", regs[0])
	}
}

func TestExerciseNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, interruptible(0.5), 1)

	for _, kwh := range []float64{0, 1e-9, 50} {
		ev, err := h.ctl.Exercise(ctx, h.order(1), kwh, 10)
		if err != nil || ev != nil {
			t.Errorf("Exercise(%g) = %v, %v; want no-op", kwh, ev, err)
		}
	}
	if len(h.ledger.Controls()) != 0 || len(h.outbox.Deliveries()) != 0 {
		t.Error("no-op exercise must not post or send")
	}
}

func TestEconomicControlScheduling(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, interruptible(0.5), 2, 3)
	h.clock.Advance(5 * time.Hour)
	tid := h.src.tariff.ID

	if err := h.ctl.PostEconomicControl(balancing.EconomicControl{TariffID: tid, CurtailmentRatio: 0.3, Timeslot: 4}); !errors.Is(err, balancing.ErrPastTimeslot) {
		t.Errorf("past timeslot: got %v", err)
	}
	for _, ts := range []int{5, 6, 6} {
		if err := h.ctl.PostEconomicControl(balancing.EconomicControl{TariffID: tid, CurtailmentRatio: 0.25, Timeslot: ts}); err != nil {
			t.Fatal(err)
		}
	}
	if got := h.ctl.ControlsForTimeslot(6); len(got) != 2 {
		t.Errorf("timeslot 6 has %d controls, want 2", len(got))
	}

	if err := h.ctl.Activate(ctx, 5); err != nil {
		t.Fatal(err)
	}
	for i, s := range h.src.subs {
		if s.PendingRatio != 0.25 {
			t.Errorf("sub %d pending ratio = %g, want 0.25", i, s.PendingRatio)
		}
	}
	if len(h.ctl.ControlsForTimeslot(5)) != 0 {
		t.Error("applied controls should be cleared")
	}

	// Skipping timeslot 6 leaves its controls to expire at 7.
	if err := h.ctl.Activate(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if len(h.ctl.ControlsForTimeslot(6)) != 0 {
		t.Error("expired controls should be dropped")
	}
}
