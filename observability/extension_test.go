package observability_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/observability"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

type value struct{ sum, n float64 }

func (v *value) Inc()              { v.sum++; v.n++ }
func (v *value) Add(x float64)     { v.sum += x; v.n++ }
func (v *value) Observe(x float64) { v.sum += x; v.n++ }

type factory map[string]*value

func (f factory) get(name string) *value {
	if v, ok := f[name]; ok {
		return v
	}
	v := &value{}
	f[name] = v
	return v
}

func (f factory) Counter(name string) observability.Counter     { return f.get(name) }
func (f factory) Histogram(name string) observability.Histogram { return f.get(name) }

func TestMetricsExtension(t *testing.T) {
	ctx := context.Background()
	f := factory{}
	m := observability.NewMetricsExtension(f)

	_ = m.OnTariffCreated(ctx, nil)
	_ = m.OnTariffCreated(ctx, nil)
	_ = m.OnTariffRejected(ctx, nil, tariff.Status{})
	_ = m.OnSubscriptionChanged(ctx, &subscription.Subscription{}, 5)
	_ = m.OnSubscriptionChanged(ctx, &subscription.Subscription{}, -2)
	_ = m.OnTransactionPosted(ctx, &transaction.Transaction{Kind: transaction.KindConsume, KWh: -10})
	_ = m.OnTransactionPosted(ctx, &transaction.Transaction{Kind: transaction.KindPublish})
	_ = m.OnBalancingExercised(ctx, &balancing.ControlEvent{KWh: 100})
	b := publication.NewBatch(3, time.Now())
	b.AddRateUpdate(tariff.VariableRateUpdate{})
	_ = m.OnBatchPublished(ctx, b, 25*time.Millisecond)

	tests := []struct {
		name string
		want float64
	}{
		{"tariffmarket.tariff.created", 2},
		{"tariffmarket.tariff.rejected", 1},
		{"tariffmarket.subscription.joined", 5},
		{"tariffmarket.subscription.left", 2},
		{"tariffmarket.transaction.consume", 1},
		{"tariffmarket.transaction.publish", 1},
		{"tariffmarket.transaction.kwh", -10},
		{"tariffmarket.balancing.kwh", 100},
		{"tariffmarket.publication.batch.size", 1},
		{"tariffmarket.publication.latency_ms", 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.get(tt.name).sum; got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestOTelFactoryReusesInstruments(t *testing.T) {
	f := observability.NewOTelFactory(noop.NewMeterProvider().Meter("tariffmarket"))
	if f.Counter("a") != f.Counter("a") {
		t.Error("counter not cached")
	}
	if f.Histogram("h") != f.Histogram("h") {
		t.Error("histogram not cached")
	}
	m := observability.NewMetricsExtension(f)
	if err := m.OnTariffRevoked(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}
