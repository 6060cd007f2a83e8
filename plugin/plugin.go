// Package plugin provides an extensible plugin system for the tariff market.
// Plugins hook into market events by implementing one or more of the hook
// interfaces below.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/subscription"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the market starts. m is the *tariffmarket.Market.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, m any) error
}

// OnShutdown is called when the market stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Tariff lifecycle hooks
// ──────────────────────────────────────────────────

// OnTariffCreated is called when a specification is accepted.
type OnTariffCreated interface {
	Plugin
	OnTariffCreated(ctx context.Context, t *tariff.Tariff) error
}

// OnTariffRejected is called when a specification fails validation.
type OnTariffRejected interface {
	Plugin
	OnTariffRejected(ctx context.Context, spec *tariff.Specification, status tariff.Status) error
}

// OnTariffPublished is called when a tariff moves to OFFERED.
type OnTariffPublished interface {
	Plugin
	OnTariffPublished(ctx context.Context, t *tariff.Tariff) error
}

// OnTariffRevoked is called when a revocation takes effect.
type OnTariffRevoked interface {
	Plugin
	OnTariffRevoked(ctx context.Context, t *tariff.Tariff) error
}

// OnTariffExpirationChanged is called when a broker shortens an expiration.
type OnTariffExpirationChanged interface {
	Plugin
	OnTariffExpirationChanged(ctx context.Context, t *tariff.Tariff, previous *time.Time) error
}

// OnVariableRateUpdated is called when an hourly charge is accepted.
type OnVariableRateUpdated interface {
	Plugin
	OnVariableRateUpdated(ctx context.Context, u tariff.VariableRateUpdate) error
}

// ──────────────────────────────────────────────────
// Subscription and journal hooks
// ──────────────────────────────────────────────────

// OnSubscriptionChanged is called after customers join (delta > 0) or
// leave (delta < 0) a subscription.
type OnSubscriptionChanged interface {
	Plugin
	OnSubscriptionChanged(ctx context.Context, sub *subscription.Subscription, delta int) error
}

// OnTransactionPosted is called for every journal transaction.
type OnTransactionPosted interface {
	Plugin
	OnTransactionPosted(ctx context.Context, tx *transaction.Transaction) error
}

// ──────────────────────────────────────────────────
// Balancing hooks
// ──────────────────────────────────────────────────

// OnBalancingExercised is called after a balancing order is exercised.
type OnBalancingExercised interface {
	Plugin
	OnBalancingExercised(ctx context.Context, ev *balancing.ControlEvent) error
}

// OnEconomicControlPosted is called when an economic control is scheduled.
type OnEconomicControlPosted interface {
	Plugin
	OnEconomicControlPosted(ctx context.Context, ev balancing.EconomicControl) error
}

// ──────────────────────────────────────────────────
// Publication hooks
// ──────────────────────────────────────────────────

// OnBatchPublished is called after a boundary flush broadcasts its batch.
type OnBatchPublished interface {
	Plugin
	OnBatchPublished(ctx context.Context, b *publication.Batch, elapsed time.Duration) error
}
