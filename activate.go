package tariffmarket

import (
	"context"
	"time"

	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Activate runs the market's per-timeslot work at t. Economic controls for
// the current timeslot are applied on every call; tariff revocations,
// publications and queued subscription changes only at publication
// boundaries. Buffered transactions are flushed last.
func (m *Market) Activate(ctx context.Context, t time.Time, phase int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrMarketStopped
	}

	errs := &MultiError{}
	timeslot := m.clock.CurrentTimeslot()
	errs.Add(m.controller.Activate(ctx, timeslot))

	if m.scheduler.Due(t) {
		m.logger.Debug("publication boundary", "timeslot", timeslot, "phase", phase)
		m.revokeDisabledBrokers(ctx)
		errs.Add(m.processRevokes(ctx, t))
		errs.Add(m.publish(ctx, t, timeslot))
		errs.Add(m.processSubscriptionEvents(ctx))
	}

	errs.Add(m.flushLedger(ctx))
	return errs.ErrOrNil()
}

// DisableBroker revokes every tariff of brokerID at the next publication
// boundary, and any it offers afterwards at the boundary after that.
func (m *Market) DisableBroker(brokerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[brokerID] = true
	m.logger.Info("broker disabled", "broker", brokerID)
}

func (m *Market) revokeDisabledBrokers(ctx context.Context) {
	for broker := range m.disabled {
		tariffs, err := m.store.ListTariffs(ctx, tariff.ListOpts{BrokerID: broker})
		if err != nil {
			m.logger.Error("failed to list tariffs of disabled broker", "broker", broker, "error", err)
			continue
		}
		for _, t := range tariffs {
			if !t.IsRevoked() && t.State != tariff.StatePending {
				m.queueRevoke(t.ID)
			}
		}
	}
}

// processRevokes kills every tariff whose revocation is due, tells the
// brokers and charges the revocation fee for tariffs still in use.
func (m *Market) processRevokes(ctx context.Context, at time.Time) error {
	errs := &MultiError{}
	var keep []pendingRevoke
	for _, p := range m.pendingRevokes {
		if p.at.After(at) {
			keep = append(keep, p)
			continue
		}
		t, err := m.store.GetTariff(ctx, p.tariffID)
		if err != nil {
			m.logger.Warn("revoked tariff vanished", "tariff_id", p.tariffID.String(), "error", err)
			continue
		}
		if t.IsRevoked() {
			continue
		}
		if err := t.Transition(tariff.StateKilled, at); err != nil {
			errs.Add(err)
			continue
		}
		errs.Add(m.store.UpdateTariff(ctx, t))
		errs.Add(m.store.DeleteOrders(ctx, t.ID))

		if err := m.transport.Broadcast(ctx, tariff.Revoke{ID: id.NewMessageID(), BrokerID: t.BrokerID(), TariffID: t.ID}); err != nil {
			m.logger.Error("failed to broadcast revocation", "tariff_id", t.ID.String(), "error", err)
			errs.Add(err)
		}
		subs, err := m.store.ListSubscriptions(ctx, subscription.ListOpts{TariffID: t.ID, ActiveOnly: true, Limit: 1})
		if err != nil {
			errs.Add(err)
		} else if len(subs) > 0 {
			errs.Add(m.ledger.PostTransaction(ctx, transaction.KindRevoke, t, "", 0, 0, m.revocationFee))
		}
		m.logger.Info("tariff revoked", "tariff_id", t.ID.String(), "broker", t.BrokerID())
		m.plugins.EmitTariffRevoked(ctx, t)
	}
	m.pendingRevokes = keep
	return errs.ErrOrNil()
}

// publish offers every pending tariff and broadcasts them, with the queued
// rate updates, as one batch.
func (m *Market) publish(ctx context.Context, at time.Time, timeslot int) error {
	started := time.Now()
	pending, err := m.store.ListTariffs(ctx, tariff.ListOpts{State: tariff.StatePending})
	if err != nil {
		return err
	}

	errs := &MultiError{}
	batch := publication.NewBatch(timeslot, at)
	published := make([]*tariff.Tariff, 0, len(pending))
	for _, t := range pending {
		if err := t.Transition(tariff.StateOffered, at); err != nil {
			errs.Add(err)
			continue
		}
		errs.Add(m.store.UpdateTariff(ctx, t))
		batch.AddTariff(t)
		published = append(published, t)
	}
	for _, u := range m.pendingRates {
		batch.AddRateUpdate(u)
	}
	m.pendingRates = nil

	if batch.IsEmpty() {
		return errs.ErrOrNil()
	}
	if err := m.transport.Broadcast(ctx, batch); err != nil {
		m.logger.Error("failed to broadcast publication batch", "timeslot", timeslot, "error", err)
		errs.Add(err)
	}
	for _, t := range published {
		m.plugins.EmitTariffPublished(ctx, t)
	}
	if len(published) > 0 {
		for _, fn := range m.onNewTariffs {
			fn(ctx, published)
		}
	}
	m.logger.Info("tariffs published",
		"timeslot", timeslot,
		"tariffs", len(batch.Tariffs),
		"rate_updates", len(batch.RateUpdates),
	)
	m.plugins.EmitBatchPublished(ctx, batch, time.Since(started))
	return errs.ErrOrNil()
}
