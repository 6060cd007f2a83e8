package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                    []OnInit
	onShutdown                []OnShutdown
	onTariffCreated           []OnTariffCreated
	onTariffRejected          []OnTariffRejected
	onTariffPublished         []OnTariffPublished
	onTariffRevoked           []OnTariffRevoked
	onTariffExpirationChanged []OnTariffExpirationChanged
	onVariableRateUpdated     []OnVariableRateUpdated
	onSubscriptionChanged     []OnSubscriptionChanged
	onTransactionPosted       []OnTransactionPosted
	onBalancingExercised      []OnBalancingExercised
	onEconomicControlPosted   []OnEconomicControlPosted
	onBatchPublished          []OnBatchPublished
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnTariffCreated); ok {
		r.onTariffCreated = append(r.onTariffCreated, v)
		hooks = append(hooks, "OnTariffCreated")
	}
	if v, ok := p.(OnTariffRejected); ok {
		r.onTariffRejected = append(r.onTariffRejected, v)
		hooks = append(hooks, "OnTariffRejected")
	}
	if v, ok := p.(OnTariffPublished); ok {
		r.onTariffPublished = append(r.onTariffPublished, v)
		hooks = append(hooks, "OnTariffPublished")
	}
	if v, ok := p.(OnTariffRevoked); ok {
		r.onTariffRevoked = append(r.onTariffRevoked, v)
		hooks = append(hooks, "OnTariffRevoked")
	}
	if v, ok := p.(OnTariffExpirationChanged); ok {
		r.onTariffExpirationChanged = append(r.onTariffExpirationChanged, v)
		hooks = append(hooks, "OnTariffExpirationChanged")
	}
	if v, ok := p.(OnVariableRateUpdated); ok {
		r.onVariableRateUpdated = append(r.onVariableRateUpdated, v)
		hooks = append(hooks, "OnVariableRateUpdated")
	}
	if v, ok := p.(OnSubscriptionChanged); ok {
		r.onSubscriptionChanged = append(r.onSubscriptionChanged, v)
		hooks = append(hooks, "OnSubscriptionChanged")
	}
	if v, ok := p.(OnTransactionPosted); ok {
		r.onTransactionPosted = append(r.onTransactionPosted, v)
		hooks = append(hooks, "OnTransactionPosted")
	}
	if v, ok := p.(OnBalancingExercised); ok {
		r.onBalancingExercised = append(r.onBalancingExercised, v)
		hooks = append(hooks, "OnBalancingExercised")
	}
	if v, ok := p.(OnEconomicControlPosted); ok {
		r.onEconomicControlPosted = append(r.onEconomicControlPosted, v)
		hooks = append(hooks, "OnEconomicControlPosted")
	}
	if v, ok := p.(OnBatchPublished); ok {
		r.onBatchPublished = append(r.onBatchPublished, v)
		hooks = append(hooks, "OnBatchPublished")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, m any) {
	emit(r, ctx, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, m) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, ctx, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitTariffCreated emits a tariff created event.
func (r *Registry) EmitTariffCreated(ctx context.Context, t *tariff.Tariff) {
	emit(r, ctx, "OnTariffCreated", &r.onTariffCreated, func(p OnTariffCreated) error { return p.OnTariffCreated(ctx, t) })
}

// EmitTariffRejected emits a tariff rejected event.
func (r *Registry) EmitTariffRejected(ctx context.Context, spec *tariff.Specification, status tariff.Status) {
	emit(r, ctx, "OnTariffRejected", &r.onTariffRejected, func(p OnTariffRejected) error { return p.OnTariffRejected(ctx, spec, status) })
}

// EmitTariffPublished emits a tariff published event.
func (r *Registry) EmitTariffPublished(ctx context.Context, t *tariff.Tariff) {
	emit(r, ctx, "OnTariffPublished", &r.onTariffPublished, func(p OnTariffPublished) error { return p.OnTariffPublished(ctx, t) })
}

// EmitTariffRevoked emits a tariff revoked event.
func (r *Registry) EmitTariffRevoked(ctx context.Context, t *tariff.Tariff) {
	emit(r, ctx, "OnTariffRevoked", &r.onTariffRevoked, func(p OnTariffRevoked) error { return p.OnTariffRevoked(ctx, t) })
}

// EmitTariffExpirationChanged emits an expiration change event.
func (r *Registry) EmitTariffExpirationChanged(ctx context.Context, t *tariff.Tariff, previous *time.Time) {
	emit(r, ctx, "OnTariffExpirationChanged", &r.onTariffExpirationChanged, func(p OnTariffExpirationChanged) error {
		return p.OnTariffExpirationChanged(ctx, t, previous)
	})
}

// EmitVariableRateUpdated emits a variable rate update event.
func (r *Registry) EmitVariableRateUpdated(ctx context.Context, u tariff.VariableRateUpdate) {
	emit(r, ctx, "OnVariableRateUpdated", &r.onVariableRateUpdated, func(p OnVariableRateUpdated) error { return p.OnVariableRateUpdated(ctx, u) })
}

// EmitSubscriptionChanged emits a subscription change event.
func (r *Registry) EmitSubscriptionChanged(ctx context.Context, sub *subscription.Subscription, delta int) {
	emit(r, ctx, "OnSubscriptionChanged", &r.onSubscriptionChanged, func(p OnSubscriptionChanged) error {
		return p.OnSubscriptionChanged(ctx, sub, delta)
	})
}

// EmitTransactionPosted emits a transaction posted event.
func (r *Registry) EmitTransactionPosted(ctx context.Context, tx *transaction.Transaction) {
	emit(r, ctx, "OnTransactionPosted", &r.onTransactionPosted, func(p OnTransactionPosted) error { return p.OnTransactionPosted(ctx, tx) })
}

// EmitBalancingExercised emits a balancing exercised event.
func (r *Registry) EmitBalancingExercised(ctx context.Context, ev *balancing.ControlEvent) {
	emit(r, ctx, "OnBalancingExercised", &r.onBalancingExercised, func(p OnBalancingExercised) error { return p.OnBalancingExercised(ctx, ev) })
}

// EmitEconomicControlPosted emits an economic control event.
func (r *Registry) EmitEconomicControlPosted(ctx context.Context, ev balancing.EconomicControl) {
	emit(r, ctx, "OnEconomicControlPosted", &r.onEconomicControlPosted, func(p OnEconomicControlPosted) error {
		return p.OnEconomicControlPosted(ctx, ev)
	})
}

// EmitBatchPublished emits a batch published event.
func (r *Registry) EmitBatchPublished(ctx context.Context, b *publication.Batch, elapsed time.Duration) {
	emit(r, ctx, "OnBatchPublished", &r.onBatchPublished, func(p OnBatchPublished) error { return p.OnBatchPublished(ctx, b, elapsed) })
}

// emit calls fn for every cached plugin. Failures are logged, never
// returned.
func emit[T Plugin](r *Registry, ctx context.Context, hook string, cached *[]T, fn func(T) error) {
	r.mu.RLock()
	plugins := *cached
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin hook failed",
				"hook", hook,
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout so a slow plugin
// cannot stall the market.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
