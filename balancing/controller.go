package balancing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/xraph/tariffmarket/accounting"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/regulation"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transport"
	"github.com/xraph/tariffmarket/types"
)

const epsilon = 1e-6

// Source gives the controller access to tariffs and their live
// subscriptions.
type Source interface {
	LookupTariff(ctx context.Context, tariffID id.TariffID) (*tariff.Tariff, error)
	// TariffSubscriptions returns the subscriptions of tariffID with at
	// least one committed customer, in a stable order.
	TariffSubscriptions(ctx context.Context, tariffID id.TariffID) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
}

// Controller runs capacity aggregation, balancing settlement and economic
// control scheduling.
type Controller struct {
	source    Source
	ledger    accounting.Ledger
	transport transport.Transport
	clock     types.Clock
	logger    *slog.Logger
	onControl func(context.Context, *ControlEvent)

	mu      sync.Mutex
	pending map[int][]EconomicControl
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithExerciseListener registers a callback for every exercised order.
func WithExerciseListener(fn func(context.Context, *ControlEvent)) Option {
	return func(c *Controller) { c.onControl = fn }
}

// NewController creates a Controller.
func NewController(source Source, ledger accounting.Ledger, tr transport.Transport, clock types.Clock, opts ...Option) *Controller {
	c := &Controller{
		source:    source,
		ledger:    ledger,
		transport: tr,
		clock:     clock,
		logger:    slog.Default(),
		pending:   make(map[int][]EconomicControl),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegulationCapacity sums the remaining capacity of the subscriptions to
// the order's tariff. An unknown tariff has no capacity.
func (c *Controller) RegulationCapacity(ctx context.Context, order *Order) (regulation.Accumulator, error) {
	var total regulation.Accumulator
	if _, err := c.source.LookupTariff(ctx, order.TariffID); err != nil {
		c.logger.Warn("balancing order for unknown tariff", "tariff_id", order.TariffID.String())
		return total, nil
	}
	subs, err := c.source.TariffSubscriptions(ctx, order.TariffID)
	if err != nil {
		return total, fmt.Errorf("balancing: list subscriptions: %w", err)
	}
	for _, s := range subs {
		total = total.Add(s.RemainingRegulationCapacity())
	}
	return total, nil
}

// Exercise applies kwh of regulation to the order's tariff, positive for
// up-regulation, and distributes payment across its subscriptions in
// proportion to their capacity. It returns nil when nothing was exercised.
func (c *Controller) Exercise(ctx context.Context, order *Order, kwh, payment float64) (*ControlEvent, error) {
	if math.Abs(kwh) < epsilon {
		return nil, nil
	}
	t, err := c.source.LookupTariff(ctx, order.TariffID)
	if err != nil {
		return nil, fmt.Errorf("balancing: exercise: %w", err)
	}
	subs, err := c.source.TariffSubscriptions(ctx, order.TariffID)
	if err != nil {
		return nil, fmt.Errorf("balancing: list subscriptions: %w", err)
	}

	caps := make([]float64, len(subs))
	var available float64
	for i, s := range subs {
		rc := s.RemainingRegulationCapacity()
		if kwh > 0 {
			caps[i] = rc.Up
		} else {
			caps[i] = rc.Down
		}
		available += caps[i]
	}
	if available == 0 {
		c.logger.Warn("cannot exercise balancing order, no capacity",
			"tariff_id", order.TariffID.String(),
			"kwh", kwh,
		)
		return nil, nil
	}

	ratio := min(kwh/available, 1)
	now := c.clock.Now()
	var (
		allocated float64
		errs      []error
	)
	for i, s := range subs {
		alloc := ratio * caps[i]
		if alloc == 0 {
			continue
		}
		var charge float64
		if t.HasRegulationRate() {
			charge = t.RegulationCharge(now, -alloc, true)
		} else {
			charge = payment * alloc / kwh
		}
		if err := s.PostBalancingControl(ctx, -alloc, charge); err != nil {
			errs = append(errs, err)
		}
		if err := c.source.UpdateSubscription(ctx, s); err != nil {
			errs = append(errs, err)
		}
		allocated += alloc
	}

	ev := &ControlEvent{
		ID:       id.NewControlID(),
		BrokerID: t.BrokerID(),
		TariffID: t.ID,
		KWh:      allocated,
		Payment:  payment,
		Timeslot: c.clock.CurrentTimeslot(),
		PostedAt: now,
	}
	if err := c.ledger.PostBalancingControl(ctx, *ev); err != nil {
		errs = append(errs, err)
	}
	if err := c.transport.SendTo(ctx, ev.BrokerID, ev); err != nil {
		c.logger.Error("failed to send balancing control", "broker", ev.BrokerID, "error", err)
		errs = append(errs, err)
	}
	if c.onControl != nil {
		c.onControl(ctx, ev)
	}
	return ev, errors.Join(errs...)
}

// PostEconomicControl schedules ev for its timeslot.
func (c *Controller) PostEconomicControl(ev EconomicControl) error {
	if current := c.clock.CurrentTimeslot(); ev.Timeslot < current {
		c.logger.Warn("economic control for past timeslot",
			"timeslot", ev.Timeslot,
			"current", current,
		)
		return fmt.Errorf("%w: %d < %d", ErrPastTimeslot, ev.Timeslot, current)
	}
	if ev.ID.IsNil() {
		ev.ID = id.NewControlID()
	}
	c.mu.Lock()
	c.pending[ev.Timeslot] = append(c.pending[ev.Timeslot], ev)
	c.mu.Unlock()
	return nil
}

// ControlsForTimeslot returns the controls scheduled for timeslot.
func (c *Controller) ControlsForTimeslot(timeslot int) []EconomicControl {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EconomicControl, len(c.pending[timeslot]))
	copy(out, c.pending[timeslot])
	return out
}

// Activate applies the controls of timeslot to matching subscriptions.
// Controls left over from the previous timeslot were never applied and
// are dropped.
func (c *Controller) Activate(ctx context.Context, timeslot int) error {
	c.mu.Lock()
	if stale := c.pending[timeslot-1]; len(stale) > 0 {
		c.logger.Warn("dropping expired economic controls",
			"timeslot", timeslot-1,
			"count", len(stale),
		)
	}
	delete(c.pending, timeslot-1)
	controls := c.pending[timeslot]
	delete(c.pending, timeslot)
	c.mu.Unlock()

	var errs []error
	for _, ev := range controls {
		subs, err := c.source.TariffSubscriptions(ctx, ev.TariffID)
		if err != nil {
			c.logger.Warn("cannot apply economic control",
				"tariff_id", ev.TariffID.String(),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		for _, s := range subs {
			s.PostRatioControl(ev.CurtailmentRatio)
			if err := c.source.UpdateSubscription(ctx, s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
