// Package observability provides a metrics extension for the tariff market
// that records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/plugin"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                    = (*MetricsExtension)(nil)
	_ plugin.OnTariffCreated           = (*MetricsExtension)(nil)
	_ plugin.OnTariffRejected          = (*MetricsExtension)(nil)
	_ plugin.OnTariffPublished         = (*MetricsExtension)(nil)
	_ plugin.OnTariffRevoked           = (*MetricsExtension)(nil)
	_ plugin.OnTariffExpirationChanged = (*MetricsExtension)(nil)
	_ plugin.OnVariableRateUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionChanged     = (*MetricsExtension)(nil)
	_ plugin.OnTransactionPosted       = (*MetricsExtension)(nil)
	_ plugin.OnBalancingExercised      = (*MetricsExtension)(nil)
	_ plugin.OnEconomicControlPosted   = (*MetricsExtension)(nil)
	_ plugin.OnBatchPublished          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records market-wide lifecycle metrics.
// Register it as a plugin to track them automatically.
type MetricsExtension struct {
	// Tariff metrics
	TariffCreated           Counter
	TariffRejected          Counter
	TariffPublished         Counter
	TariffRevoked           Counter
	TariffExpirationChanged Counter
	RateUpdates             Counter

	// Subscription metrics
	CustomersJoined Counter
	CustomersLeft   Counter

	// Journal metrics, one counter per transaction kind
	Transactions map[transaction.Kind]Counter
	EnergyKWh    Histogram

	// Balancing metrics
	BalancingExercised Counter
	BalancingKWh       Histogram
	EconomicControls   Counter

	// Publication metrics
	BatchSize      Histogram
	PublishLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		TariffCreated:           factory.Counter("tariffmarket.tariff.created"),
		TariffRejected:          factory.Counter("tariffmarket.tariff.rejected"),
		TariffPublished:         factory.Counter("tariffmarket.tariff.published"),
		TariffRevoked:           factory.Counter("tariffmarket.tariff.revoked"),
		TariffExpirationChanged: factory.Counter("tariffmarket.tariff.expiration_changed"),
		RateUpdates:             factory.Counter("tariffmarket.rate.updates"),

		CustomersJoined: factory.Counter("tariffmarket.subscription.joined"),
		CustomersLeft:   factory.Counter("tariffmarket.subscription.left"),

		Transactions: make(map[transaction.Kind]Counter),
		EnergyKWh:    factory.Histogram("tariffmarket.transaction.kwh"),

		BalancingExercised: factory.Counter("tariffmarket.balancing.exercised"),
		BalancingKWh:       factory.Histogram("tariffmarket.balancing.kwh"),
		EconomicControls:   factory.Counter("tariffmarket.balancing.economic_controls"),

		BatchSize:      factory.Histogram("tariffmarket.publication.batch.size"),
		PublishLatency: factory.Histogram("tariffmarket.publication.latency_ms"),
	}
	for _, k := range transaction.Kinds() {
		m.Transactions[k] = factory.Counter("tariffmarket.transaction." + strings.ToLower(string(k)))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Tariff lifecycle hooks
// ──────────────────────────────────────────────────

// OnTariffCreated implements plugin.OnTariffCreated.
func (m *MetricsExtension) OnTariffCreated(_ context.Context, _ *tariff.Tariff) error {
	m.TariffCreated.Inc()
	return nil
}

// OnTariffRejected implements plugin.OnTariffRejected.
func (m *MetricsExtension) OnTariffRejected(_ context.Context, _ *tariff.Specification, _ tariff.Status) error {
	m.TariffRejected.Inc()
	return nil
}

// OnTariffPublished implements plugin.OnTariffPublished.
func (m *MetricsExtension) OnTariffPublished(_ context.Context, _ *tariff.Tariff) error {
	m.TariffPublished.Inc()
	return nil
}

// OnTariffRevoked implements plugin.OnTariffRevoked.
func (m *MetricsExtension) OnTariffRevoked(_ context.Context, _ *tariff.Tariff) error {
	m.TariffRevoked.Inc()
	return nil
}

// OnTariffExpirationChanged implements plugin.OnTariffExpirationChanged.
func (m *MetricsExtension) OnTariffExpirationChanged(_ context.Context, _ *tariff.Tariff, _ *time.Time) error {
	m.TariffExpirationChanged.Inc()
	return nil
}

// OnVariableRateUpdated implements plugin.OnVariableRateUpdated.
func (m *MetricsExtension) OnVariableRateUpdated(_ context.Context, _ tariff.VariableRateUpdate) error {
	m.RateUpdates.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription and journal hooks
// ──────────────────────────────────────────────────

// OnSubscriptionChanged implements plugin.OnSubscriptionChanged.
func (m *MetricsExtension) OnSubscriptionChanged(_ context.Context, _ *subscription.Subscription, delta int) error {
	if delta < 0 {
		m.CustomersLeft.Add(float64(-delta))
	} else {
		m.CustomersJoined.Add(float64(delta))
	}
	return nil
}

// OnTransactionPosted implements plugin.OnTransactionPosted.
func (m *MetricsExtension) OnTransactionPosted(_ context.Context, tx *transaction.Transaction) error {
	if c, ok := m.Transactions[tx.Kind]; ok {
		c.Inc()
	}
	if tx.KWh != 0 {
		m.EnergyKWh.Observe(tx.KWh)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Balancing and publication hooks
// ──────────────────────────────────────────────────

// OnBalancingExercised implements plugin.OnBalancingExercised.
func (m *MetricsExtension) OnBalancingExercised(_ context.Context, ev *balancing.ControlEvent) error {
	m.BalancingExercised.Inc()
	m.BalancingKWh.Observe(ev.KWh)
	return nil
}

// OnEconomicControlPosted implements plugin.OnEconomicControlPosted.
func (m *MetricsExtension) OnEconomicControlPosted(_ context.Context, _ balancing.EconomicControl) error {
	m.EconomicControls.Inc()
	return nil
}

// OnBatchPublished implements plugin.OnBatchPublished.
func (m *MetricsExtension) OnBatchPublished(_ context.Context, b *publication.Batch, elapsed time.Duration) error {
	m.BatchSize.Observe(float64(b.Len()))
	m.PublishLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
