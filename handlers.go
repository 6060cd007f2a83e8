package tariffmarket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/rate"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Dispatch routes a decoded broker message to its handler. Messages may be
// values or pointers.
func (m *Market) Dispatch(ctx context.Context, msg any) (tariff.Status, error) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return tariff.Status{}, ErrMarketStopped
	}

	switch v := msg.(type) {
	case *tariff.Specification:
		return m.HandleSpecification(ctx, v), nil
	case tariff.Specification:
		return m.HandleSpecification(ctx, &v), nil
	case *tariff.Expire:
		return m.HandleExpire(ctx, *v), nil
	case tariff.Expire:
		return m.HandleExpire(ctx, v), nil
	case *tariff.Revoke:
		return m.HandleRevoke(ctx, *v), nil
	case tariff.Revoke:
		return m.HandleRevoke(ctx, v), nil
	case *tariff.VariableRateUpdate:
		return m.HandleVariableRateUpdate(ctx, *v), nil
	case tariff.VariableRateUpdate:
		return m.HandleVariableRateUpdate(ctx, v), nil
	case *balancing.Order:
		return m.HandleBalancingOrder(ctx, v), nil
	case balancing.Order:
		return m.HandleBalancingOrder(ctx, &v), nil
	case *balancing.EconomicControl:
		return m.HandleEconomicControl(ctx, *v), nil
	case balancing.EconomicControl:
		return m.HandleEconomicControl(ctx, v), nil
	default:
		return tariff.Status{}, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// HandleSpecification validates a new tariff offer and, if it is sound,
// records it as PENDING until the next publication.
func (m *Market) HandleSpecification(ctx context.Context, spec *tariff.Specification) tariff.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spec.ID.IsNil() {
		spec.ID = id.NewTariffID()
	}
	reject := func(msg string) tariff.Status {
		st := tariff.NewStatus(spec.BrokerID, spec.ID, spec.ID, tariff.StatusInvalidTariff, msg)
		m.logger.Warn("tariff rejected",
			"tariff_id", spec.ID.String(),
			"broker", spec.BrokerID,
			"reason", msg,
		)
		m.plugins.EmitTariffRejected(ctx, spec, st)
		return m.reply(ctx, st)
	}

	if _, err := m.store.GetTariff(ctx, spec.ID); err == nil {
		return reject("duplicate tariff id")
	} else if !IsNotFound(err) {
		m.logger.Error("tariff lookup failed", "tariff_id", spec.ID.String(), "error", err)
		return reject("tariff lookup failed")
	}
	if err := spec.Validate(); err != nil {
		return reject(err.Error())
	}
	superseded := make([]*tariff.Tariff, 0, len(spec.Supersedes))
	for _, sid := range spec.Supersedes {
		old, err := m.store.GetTariff(ctx, sid)
		if err != nil {
			return reject(fmt.Sprintf("superseded tariff %s not found", sid))
		}
		if old.BrokerID() != spec.BrokerID {
			return reject(fmt.Sprintf("superseded tariff %s belongs to another broker", sid))
		}
		superseded = append(superseded, old)
	}

	now := m.clock.Now()
	t := tariff.New(spec, now)
	if err := m.store.CreateTariff(ctx, t); err != nil {
		m.logger.Error("failed to store tariff", "tariff_id", t.ID.String(), "error", err)
		return reject("tariff could not be stored")
	}
	for _, old := range superseded {
		old.SupersededBy = t.ID
		old.Touch(now)
		if err := m.store.UpdateTariff(ctx, old); err != nil {
			m.logger.Warn("failed to link superseded tariff", "tariff_id", old.ID.String(), "error", err)
		}
	}
	m.createBalancingOrders(ctx, t)

	if err := m.ledger.PostTransaction(ctx, transaction.KindPublish, t, "", 0, 0, m.publicationFee); err != nil {
		m.logger.Error("failed to post publication fee", "tariff_id", t.ID.String(), "error", err)
	}
	m.logger.Debug("tariff accepted",
		"tariff_id", t.ID.String(),
		"broker", t.BrokerID(),
		"power_type", t.PowerType().String(),
	)
	m.plugins.EmitTariffCreated(ctx, t)
	return m.reply(ctx, tariff.NewStatus(spec.BrokerID, t.ID, spec.ID, tariff.StatusSuccess, ""))
}

// createBalancingOrders offers the capacity of a regulation-rate tariff to
// the balancing market in both directions.
func (m *Market) createBalancingOrders(ctx context.Context, t *tariff.Tariff) {
	pt := t.PowerType()
	if !t.HasRegulationRate() || !(pt.IsInterruptible() || pt.IsStorage()) {
		return
	}
	rr := t.Spec.RegulationRates[0]
	upRatio := 1.0
	if pt.IsStorage() {
		upRatio = 2.0
	}
	for _, o := range []*balancing.Order{
		balancing.NewOrder(t.BrokerID(), t.ID, upRatio, rr.UpRegulationPayment),
		balancing.NewOrder(t.BrokerID(), t.ID, -1, rr.DownRegulationPayment),
	} {
		if err := m.store.SaveOrder(ctx, o); err != nil {
			m.logger.Warn("failed to create balancing order", "tariff_id", t.ID.String(), "error", err)
		}
	}
}

// HandleExpire shortens a tariff's expiration.
func (m *Market) HandleExpire(ctx context.Context, msg tariff.Expire) tariff.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, st := m.lookup(ctx, msg.BrokerID, msg.TariffID, msg.ID, tariff.StatusInvalidUpdate)
	if st != nil {
		return m.reply(ctx, *st)
	}
	var previous *time.Time
	if t.Expiration != nil {
		p := *t.Expiration
		previous = &p
	}
	now := m.clock.Now()
	if err := t.ShortenExpiration(msg.NewExpiration, now); err != nil {
		return m.reply(ctx, tariff.NewStatus(msg.BrokerID, msg.TariffID, msg.ID, tariff.StatusInvalidUpdate, err.Error()))
	}
	if err := m.store.UpdateTariff(ctx, t); err != nil {
		m.logger.Error("failed to store expiration", "tariff_id", t.ID.String(), "error", err)
	}
	m.plugins.EmitTariffExpirationChanged(ctx, t, previous)
	return m.reply(ctx, tariff.NewStatus(msg.BrokerID, msg.TariffID, msg.ID, tariff.StatusSuccess, ""))
}

// HandleRevoke queues a tariff for revocation at the next publication.
func (m *Market) HandleRevoke(ctx context.Context, msg tariff.Revoke) tariff.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, st := m.lookup(ctx, msg.BrokerID, msg.TariffID, msg.ID, tariff.StatusInvalidTariff)
	if st != nil {
		return m.reply(ctx, *st)
	}
	m.queueRevoke(t.ID)
	return m.reply(ctx, tariff.NewStatus(msg.BrokerID, msg.TariffID, msg.ID, tariff.StatusSuccess, ""))
}

func (m *Market) queueRevoke(tariffID id.TariffID) {
	for _, p := range m.pendingRevokes {
		if p.tariffID.Equal(tariffID) {
			return
		}
	}
	m.pendingRevokes = append(m.pendingRevokes, pendingRevoke{tariffID: tariffID, at: m.clock.Now()})
}

// HandleVariableRateUpdate records an hourly charge on a variable rate. The
// update goes out with the next publication batch.
func (m *Market) HandleVariableRateUpdate(ctx context.Context, u tariff.VariableRateUpdate) tariff.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, st := m.lookup(ctx, u.BrokerID, u.TariffID, u.ID, tariff.StatusInvalidTariff)
	if st != nil {
		return m.reply(ctx, *st)
	}
	invalid := func(msg string) tariff.Status {
		return m.reply(ctx, tariff.NewStatus(u.BrokerID, u.TariffID, u.ID, tariff.StatusInvalidUpdate, msg))
	}
	r := t.FindRate(u.RateID)
	if r == nil {
		return invalid(fmt.Sprintf("rate %s is not part of tariff", u.RateID))
	}
	if err := r.AddHourlyCharge(u.Charge, m.clock.Now()); err != nil {
		if errors.Is(err, rate.ErrFixedRate) {
			return invalid("rate is fixed")
		}
		return invalid(err.Error())
	}
	if err := m.store.UpdateTariff(ctx, t); err != nil {
		m.logger.Error("failed to store rate update", "tariff_id", t.ID.String(), "error", err)
	}
	m.pendingRates = append(m.pendingRates, u)
	m.plugins.EmitVariableRateUpdated(ctx, u)
	return m.reply(ctx, tariff.NewStatus(u.BrokerID, u.TariffID, u.ID, tariff.StatusSuccess, ""))
}

// HandleBalancingOrder stores an offer of a tariff's flexibility to the
// balancing market, replacing any earlier order in the same direction.
func (m *Market) HandleBalancingOrder(ctx context.Context, o *balancing.Order) tariff.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o.ID.IsNil() {
		o.ID = id.NewOrderID()
	}
	t, st := m.lookup(ctx, o.BrokerID, o.TariffID, o.ID, tariff.StatusInvalidTariff)
	if st != nil {
		return m.reply(ctx, *st)
	}
	unsupported := func(msg string) tariff.Status {
		return m.reply(ctx, tariff.NewStatus(o.BrokerID, o.TariffID, o.ID, tariff.StatusUnsupported, msg))
	}

	pt := t.PowerType()
	ratio := o.ExerciseRatio
	switch {
	case !pt.IsInterruptible() && !pt.IsStorage():
		return unsupported(fmt.Sprintf("%s tariffs cannot be balanced", pt))
	case ratio == 0:
		return unsupported("zero exercise ratio")
	case ratio < 0 && !t.HasRegulationRate():
		return unsupported("down-regulation needs a regulation rate")
	case !t.HasRegulationRate() && !t.IsCurtailmentOnly():
		return unsupported("tariff declares no curtailment")
	case !t.HasRegulationRate() && ratio > t.MaxCurtailment():
		return unsupported(fmt.Sprintf("ratio %g exceeds curtailment %g", ratio, t.MaxCurtailment()))
	}
	if t.HasRegulationRate() {
		upper := 1.0
		if pt.IsStorage() {
			upper = 2.0
		}
		if ratio > upper || ratio < -1 {
			return unsupported(fmt.Sprintf("ratio %g outside [-1, %g]", ratio, upper))
		}
	}
	if err := m.store.SaveOrder(ctx, o); err != nil {
		m.logger.Error("failed to store balancing order", "tariff_id", t.ID.String(), "error", err)
	}
	return m.reply(ctx, tariff.NewStatus(o.BrokerID, o.TariffID, o.ID, tariff.StatusSuccess, ""))
}

// HandleEconomicControl schedules a curtailment ratio for a future
// timeslot.
func (m *Market) HandleEconomicControl(ctx context.Context, ev balancing.EconomicControl) tariff.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.ID.IsNil() {
		ev.ID = id.NewControlID()
	}
	if _, st := m.lookup(ctx, ev.BrokerID, ev.TariffID, ev.ID, tariff.StatusInvalidTariff); st != nil {
		return m.reply(ctx, *st)
	}
	if err := m.controller.PostEconomicControl(ev); err != nil {
		return m.reply(ctx, tariff.NewStatus(ev.BrokerID, ev.TariffID, ev.ID, tariff.StatusInvalidUpdate, err.Error()))
	}
	m.plugins.EmitEconomicControlPosted(ctx, ev)
	return m.reply(ctx, tariff.NewStatus(ev.BrokerID, ev.TariffID, ev.ID, tariff.StatusSuccess, ""))
}

// lookup finds a tariff owned by broker. It returns a noSuchTariff status
// for an unknown tariff and a status with ownerCode for another broker's.
func (m *Market) lookup(ctx context.Context, broker string, tariffID, msgID id.ID, ownerCode tariff.StatusCode) (*tariff.Tariff, *tariff.Status) {
	t, err := m.store.GetTariff(ctx, tariffID)
	if err != nil {
		if !IsNotFound(err) {
			m.logger.Error("tariff lookup failed", "tariff_id", tariffID.String(), "error", err)
		}
		st := tariff.NewStatus(broker, tariffID, msgID, tariff.StatusNoSuchTariff, "")
		return nil, &st
	}
	if t.BrokerID() != broker {
		st := tariff.NewStatus(broker, tariffID, msgID, ownerCode, "tariff belongs to another broker")
		return nil, &st
	}
	return t, nil
}

// reply sends st to its broker and returns it.
func (m *Market) reply(ctx context.Context, st tariff.Status) tariff.Status {
	if err := m.transport.SendTo(ctx, st.BrokerID, st); err != nil {
		m.logger.Error("failed to send tariff status",
			"broker", st.BrokerID,
			"status", string(st.Code),
			"error", err,
		)
	}
	return st
}
