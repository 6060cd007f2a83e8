// Package audithook bridges tariff market events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/plugin"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

var (
	_ plugin.Plugin                    = (*Extension)(nil)
	_ plugin.OnTariffCreated           = (*Extension)(nil)
	_ plugin.OnTariffRejected          = (*Extension)(nil)
	_ plugin.OnTariffPublished         = (*Extension)(nil)
	_ plugin.OnTariffRevoked           = (*Extension)(nil)
	_ plugin.OnTariffExpirationChanged = (*Extension)(nil)
	_ plugin.OnVariableRateUpdated     = (*Extension)(nil)
	_ plugin.OnSubscriptionChanged     = (*Extension)(nil)
	_ plugin.OnTransactionPosted       = (*Extension)(nil)
	_ plugin.OnBalancingExercised      = (*Extension)(nil)
	_ plugin.OnEconomicControlPosted   = (*Extension)(nil)
	_ plugin.OnBatchPublished          = (*Extension)(nil)
)

// Recorder stores audit events. A failing Recorder never blocks the market.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	BrokerID   string         `json:"broker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc lets a plain function act as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges market events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil records every action
	kinds    map[string]bool // nil records every transaction kind
	logger   *slog.Logger
}

// New returns an Extension that writes to r. Every action is recorded
// unless narrowed by options.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extension) Name() string { return "audit-hook" }

func tariffEvent(action string, t *tariff.Tariff) AuditEvent {
	return AuditEvent{
		Action:     action,
		Resource:   ResourceTariff,
		Category:   CategoryTariff,
		ResourceID: t.ID.String(),
		BrokerID:   t.BrokerID(),
	}
}

func (e *Extension) OnTariffCreated(ctx context.Context, t *tariff.Tariff) error {
	return e.emit(ctx, tariffEvent(ActionTariffCreated, t),
		"power_type", string(t.PowerType()),
		"rates", len(t.Spec.Rates),
	)
}

// OnTariffRejected records the status code and message returned to the
// broker.
func (e *Extension) OnTariffRejected(ctx context.Context, spec *tariff.Specification, status tariff.Status) error {
	return e.emit(ctx, AuditEvent{
		Action:     ActionTariffRejected,
		Resource:   ResourceTariff,
		Category:   CategoryTariff,
		ResourceID: spec.ID.String(),
		BrokerID:   spec.BrokerID,
		Outcome:    OutcomeFailure,
		Severity:   SeverityWarning,
		Reason:     status.Message,
	}, "status", string(status.Code))
}

func (e *Extension) OnTariffPublished(ctx context.Context, t *tariff.Tariff) error {
	return e.emit(ctx, tariffEvent(ActionTariffPublished, t), "offer_date", t.OfferDate)
}

func (e *Extension) OnTariffRevoked(ctx context.Context, t *tariff.Tariff) error {
	ev := tariffEvent(ActionTariffRevoked, t)
	ev.Severity = SeverityWarning
	return e.emit(ctx, ev, "superseded_by", t.SupersededBy.String())
}

func (e *Extension) OnTariffExpirationChanged(ctx context.Context, t *tariff.Tariff, previous *time.Time) error {
	kv := []any{"expiration", t.Expiration}
	if previous != nil {
		kv = append(kv, "previous", *previous)
	}
	return e.emit(ctx, tariffEvent(ActionTariffExpirationChanged, t), kv...)
}

func (e *Extension) OnVariableRateUpdated(ctx context.Context, u tariff.VariableRateUpdate) error {
	return e.emit(ctx, AuditEvent{
		Action:     ActionRateUpdated,
		Resource:   ResourceRate,
		Category:   CategoryTariff,
		ResourceID: u.RateID.String(),
		BrokerID:   u.BrokerID,
	},
		"tariff_id", u.TariffID.String(),
		"value", u.Charge.Value,
		"at", u.Charge.AtTime,
	)
}

// OnSubscriptionChanged records joins for positive deltas and departures
// for negative ones.
func (e *Extension) OnSubscriptionChanged(ctx context.Context, sub *subscription.Subscription, delta int) error {
	ev := AuditEvent{
		Action:     ActionSubscriptionJoined,
		Resource:   ResourceSubscription,
		Category:   CategorySubscription,
		ResourceID: sub.ID.String(),
	}
	if delta < 0 {
		ev.Action = ActionSubscriptionLeft
	}
	if t := sub.Tariff(); t != nil {
		ev.BrokerID = t.BrokerID()
	}
	return e.emit(ctx, ev,
		"customer_id", sub.CustomerID,
		"tariff_id", sub.TariffID.String(),
		"delta", delta,
		"committed", sub.CustomersCommitted,
	)
}

func (e *Extension) OnTransactionPosted(ctx context.Context, tx *transaction.Transaction) error {
	if e.kinds != nil && !e.kinds[string(tx.Kind)] {
		return nil
	}
	return e.emit(ctx, AuditEvent{
		Action:     ActionTransactionPosted,
		Resource:   ResourceTransaction,
		Category:   CategoryAccounting,
		ResourceID: tx.ID.String(),
		BrokerID:   tx.BrokerID,
	},
		"kind", string(tx.Kind),
		"tariff_id", tx.TariffID.String(),
		"charge", tx.Charge.String(),
		"kwh", tx.KWh,
	)
}

func (e *Extension) OnBalancingExercised(ctx context.Context, ev *balancing.ControlEvent) error {
	return e.emit(ctx, AuditEvent{
		Action:     ActionBalancingExercised,
		Resource:   ResourceControl,
		Category:   CategoryBalancing,
		ResourceID: ev.ID.String(),
		BrokerID:   ev.BrokerID,
	},
		"tariff_id", ev.TariffID.String(),
		"kwh", ev.KWh,
		"payment", ev.Payment,
		"timeslot", ev.Timeslot,
	)
}

func (e *Extension) OnEconomicControlPosted(ctx context.Context, ev balancing.EconomicControl) error {
	return e.emit(ctx, AuditEvent{
		Action:     ActionEconomicControlPosted,
		Resource:   ResourceControl,
		Category:   CategoryBalancing,
		ResourceID: ev.ID.String(),
		BrokerID:   ev.BrokerID,
	},
		"tariff_id", ev.TariffID.String(),
		"ratio", ev.CurtailmentRatio,
		"timeslot", ev.Timeslot,
	)
}

func (e *Extension) OnBatchPublished(ctx context.Context, b *publication.Batch, elapsed time.Duration) error {
	return e.emit(ctx, AuditEvent{
		Action:     ActionBatchPublished,
		Resource:   ResourceBatch,
		Category:   CategoryPublication,
		ResourceID: b.ID.String(),
	},
		"timeslot", b.Timeslot,
		"tariffs", len(b.Tariffs),
		"rate_updates", len(b.RateUpdates),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// emit fills in defaults, attaches kv as metadata and hands the event to
// the recorder. Recorder failures are logged and swallowed.
func (e *Extension) emit(ctx context.Context, ev AuditEvent, kv ...any) error {
	if e.enabled != nil && !e.enabled[ev.Action] {
		return nil
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeSuccess
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
	ev.Metadata = metadata(kv)
	if ev.Reason != "" {
		ev.Metadata["error"] = ev.Reason
	}

	if err := e.recorder.Record(ctx, &ev); err != nil {
		e.logger.Warn("audit event not recorded",
			"action", ev.Action,
			"resource_id", ev.ResourceID,
			"error", err,
		)
	}
	return nil
}

func metadata(kv []any) map[string]any {
	m := make(map[string]any, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		m[key] = kv[i+1]
	}
	return m
}
