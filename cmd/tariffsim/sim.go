package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/xraph/tariffmarket"
	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/regulation"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/types"
)

const defaultBroker = "default-broker"

// population is a group of identical customers.
type population struct {
	name    string
	power   tariff.PowerType
	size    int
	meanKWh float64 // per customer per hour, negative for production
	flex    float64 // share of usage offered as up-regulation
}

// scenario drives a market through a number of simulated hours with a few
// scripted brokers and customer populations.
type scenario struct {
	m      *tariffmarket.Market
	clock  *types.SimClock
	rng    *rand.Rand
	logger *slog.Logger

	populations []population
	shopped     map[string]bool
	revokeAt    int
	revoke      id.TariffID
}

func newScenario(m *tariffmarket.Market, clock *types.SimClock, seed uint64, logger *slog.Logger) *scenario {
	return &scenario{
		m:      m,
		clock:  clock,
		rng:    rand.New(rand.NewPCG(seed, seed+1)),
		logger: logger,
		populations: []population{
			{name: "village", power: tariff.Consumption, size: 200, meanKWh: 1.2},
			{name: "heat-pumps", power: tariff.InterruptibleConsumption, size: 50, meanKWh: 3, flex: 0.4},
			{name: "solar-park", power: tariff.SolarProduction, size: 20, meanKWh: -8},
		},
		shopped:  make(map[string]bool),
		revokeAt: 30,
	}
}

// setup installs the default tariffs, lets the brokers make their first
// offers and puts every population on a default tariff.
func (s *scenario) setup(ctx context.Context) error {
	defaults := []*tariff.Specification{
		tariff.NewSpecification(defaultBroker, tariff.Consumption).AddRate(rate.NewFixed(-0.15)),
		tariff.NewSpecification(defaultBroker, tariff.Production).AddRate(rate.NewFixed(0.02)),
	}
	for _, spec := range defaults {
		if _, err := s.m.SetDefaultTariff(ctx, spec); err != nil {
			return fmt.Errorf("default tariff: %w", err)
		}
	}

	cheap := tariff.NewSpecification("broker-a", tariff.Consumption).AddRate(rate.NewFixed(-0.12))
	cheap.MinDuration = 24 * time.Hour
	cheap.EarlyWithdrawPayment = -5
	flex := tariff.NewSpecification("broker-b", tariff.InterruptibleConsumption).
		AddRate(rate.NewFixed(-0.11).WithMaxCurtailment(0.5))
	solar := tariff.NewSpecification("broker-b", tariff.Production).AddRate(rate.NewFixed(0.04))
	solar.SignupPayment = 10

	for _, spec := range []*tariff.Specification{cheap, flex, solar} {
		st, err := s.m.Dispatch(ctx, spec)
		if err != nil {
			return err
		}
		if !st.OK() {
			return fmt.Errorf("broker offer rejected: %s %s", st.Code, st.Message)
		}
	}
	s.revoke = cheap.ID

	if st := s.m.HandleBalancingOrder(ctx, balancing.NewOrder("broker-b", flex.ID, 0.5, 0.03)); !st.OK() {
		return fmt.Errorf("balancing order rejected: %s", st.Message)
	}

	for _, p := range s.populations {
		def := s.m.DefaultTariff(ctx, p.power)
		if def == nil {
			return fmt.Errorf("no default tariff for %s: %w", p.power, tariffmarket.ErrNoDefaultTariff)
		}
		if err := s.m.Subscribe(ctx, p.name, def.ID, p.size); err != nil {
			return err
		}
	}
	return nil
}

// run simulates hours timeslots, stopping early when ctx is cancelled.
func (s *scenario) run(ctx context.Context, hours int) error {
	if err := s.setup(ctx); err != nil {
		return err
	}
	base := s.clock.Now()
	for h := 0; h < hours; h++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := base.Add(time.Duration(h) * time.Hour)
		s.clock.Set(now)

		if h == s.revokeAt {
			s.m.HandleRevoke(ctx, tariff.Revoke{ID: id.NewMessageID(), BrokerID: "broker-a", TariffID: s.revoke})
		}
		if err := s.m.Activate(ctx, now, 0); err != nil {
			s.logger.Warn("activation failed", "hour", h, "error", err)
		}
		if _, err := s.m.MigrateRevokedSubscriptions(ctx); err != nil {
			s.logger.Warn("migration failed", "hour", h, "error", err)
		}
		if _, err := s.m.RemoveRevokedTariffs(ctx); err != nil {
			s.logger.Warn("cleanup failed", "hour", h, "error", err)
		}
		if err := s.shop(ctx); err != nil {
			s.logger.Warn("tariff evaluation failed", "hour", h, "error", err)
		}
		if err := s.consume(ctx); err != nil {
			s.logger.Warn("consumption failed", "hour", h, "error", err)
		}
		if h%12 == 11 {
			s.balance(ctx)
		}
	}
	return nil
}

// shop moves half of each population to the newest tariff it may use,
// once per tariff.
func (s *scenario) shop(ctx context.Context) error {
	for _, p := range s.populations {
		recent, err := s.m.RecentActiveTariffs(ctx, 1, p.power)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			continue
		}
		target := recent[0]
		key := p.name + "/" + target.ID.String()
		if s.shopped[key] {
			continue
		}
		s.shopped[key] = true
		subs, err := s.m.Subscriptions(ctx, p.name)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.TariffID.Equal(target.ID) || sub.CustomersCommitted-sub.PendingUnsubscribe < 2 {
				continue
			}
			n := (sub.CustomersCommitted - sub.PendingUnsubscribe) / 2
			if err := s.m.Unsubscribe(ctx, p.name, sub.TariffID, n); err != nil {
				return err
			}
			if err := s.m.Subscribe(ctx, p.name, target.ID, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// consume reports one hour of usage and flexibility for every population.
func (s *scenario) consume(ctx context.Context) error {
	for _, p := range s.populations {
		subs, err := s.m.Subscriptions(ctx, p.name)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.CustomersCommitted == 0 {
				continue
			}
			kwh := float64(sub.CustomersCommitted) * p.meanKWh * (0.8 + 0.4*s.rng.Float64())
			if p.flex > 0 {
				c := regulation.New(kwh*p.flex, 0)
				if err := s.m.SetRegulationCapacity(ctx, p.name, sub.TariffID, c); err != nil {
					return err
				}
			}
			if err := s.m.UsePower(ctx, p.name, sub.TariffID, kwh); err != nil {
				return err
			}
		}
	}
	return nil
}

// balance exercises every standing balancing order for a slice of its
// capacity.
func (s *scenario) balance(ctx context.Context) {
	tariffs, err := s.m.ActiveTariffs(ctx, tariff.InterruptibleConsumption)
	if err != nil {
		s.logger.Warn("cannot list tariffs for balancing", "error", err)
		return
	}
	for _, t := range tariffs {
		orders, err := s.m.BalancingOrders(ctx, t.ID)
		if err != nil {
			s.logger.Warn("cannot list balancing orders", "tariff_id", t.ID.String(), "error", err)
			continue
		}
		for _, o := range orders {
			capacity, err := s.m.RegulationCapacity(ctx, o.ID)
			if err != nil || capacity.Up == 0 {
				continue
			}
			kwh := capacity.Up * 0.25
			if _, err := s.m.Exercise(ctx, o.ID, kwh, kwh*o.Price); err != nil {
				s.logger.Warn("exercise failed", "order_id", o.ID.String(), "error", err)
			}
		}
	}
}
