package audithook

// Action constants for audit events.
const (
	// Tariff actions
	ActionTariffCreated           = "tariff.created"
	ActionTariffRejected          = "tariff.rejected"
	ActionTariffPublished         = "tariff.published"
	ActionTariffRevoked           = "tariff.revoked"
	ActionTariffExpirationChanged = "tariff.expiration_changed"
	ActionRateUpdated             = "rate.updated"

	// Subscription actions
	ActionSubscriptionJoined = "subscription.joined"
	ActionSubscriptionLeft   = "subscription.left"

	// Journal actions
	ActionTransactionPosted = "transaction.posted"

	// Balancing actions
	ActionBalancingExercised    = "balancing.exercised"
	ActionEconomicControlPosted = "balancing.economic_control"

	// Publication actions
	ActionBatchPublished = "publication.batch"
)

// Resource constants for audit events.
const (
	ResourceTariff       = "tariff"
	ResourceRate         = "rate"
	ResourceSubscription = "subscription"
	ResourceTransaction  = "transaction"
	ResourceControl      = "balancing_control"
	ResourceBatch        = "batch"
)

// Category constants for audit events.
const (
	CategoryTariff       = "tariff"
	CategorySubscription = "subscription"
	CategoryAccounting   = "accounting"
	CategoryBalancing    = "balancing"
	CategoryPublication  = "publication"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
