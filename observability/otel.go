package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// NewOTelFactory returns a MetricFactory backed by an OpenTelemetry meter.
// Instruments are created once per name.
func NewOTelFactory(meter metric.Meter) MetricFactory {
	return &otelFactory{meter: meter}
}

type otelFactory struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]*otelCounter
	histograms map[string]*otelHistogram
}

func (f *otelFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counters[name]; ok {
		return c
	}
	inst, err := f.meter.Float64Counter(name)
	if err != nil {
		return nopMetric{}
	}
	if f.counters == nil {
		f.counters = make(map[string]*otelCounter)
	}
	c := &otelCounter{inst: inst}
	f.counters[name] = c
	return c
}

func (f *otelFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.histograms[name]; ok {
		return h
	}
	inst, err := f.meter.Float64Histogram(name)
	if err != nil {
		return nopMetric{}
	}
	if f.histograms == nil {
		f.histograms = make(map[string]*otelHistogram)
	}
	h := &otelHistogram{inst: inst}
	f.histograms[name] = h
	return h
}

type otelCounter struct{ inst metric.Float64Counter }

func (c *otelCounter) Inc()          { c.inst.Add(context.Background(), 1) }
func (c *otelCounter) Add(v float64) { c.inst.Add(context.Background(), v) }

type otelHistogram struct{ inst metric.Float64Histogram }

func (h *otelHistogram) Observe(v float64) { h.inst.Record(context.Background(), v) }

// nopMetric discards everything. It stands in for instruments the meter
// refused to create.
type nopMetric struct{}

func (nopMetric) Inc()            {}
func (nopMetric) Add(float64)     {}
func (nopMetric) Observe(float64) {}
