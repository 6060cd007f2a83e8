package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// If not called, all actions are audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool)
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions sets which actions to skip.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool)
			for _, action := range allActions() {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// WithTransactionKinds limits transaction auditing to the given kinds,
// e.g. "PUBLISH" and "REVOKE". Other actions are unaffected.
func WithTransactionKinds(kinds ...string) Option {
	return func(e *Extension) {
		e.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			e.kinds[k] = true
		}
	}
}

func allActions() []string {
	return []string{
		ActionTariffCreated,
		ActionTariffRejected,
		ActionTariffPublished,
		ActionTariffRevoked,
		ActionTariffExpirationChanged,
		ActionRateUpdated,
		ActionSubscriptionJoined,
		ActionSubscriptionLeft,
		ActionTransactionPosted,
		ActionBalancingExercised,
		ActionEconomicControlPosted,
		ActionBatchPublished,
	}
}
