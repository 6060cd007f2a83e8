package tariffmarket

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tariffmarket: not found")
	ErrAlreadyExists = errors.New("tariffmarket: already exists")
	ErrInvalidInput  = errors.New("tariffmarket: invalid input")

	// Tariff errors
	ErrTariffNotFound        = errors.New("tariffmarket: tariff not found")
	ErrTariffNotSubscribable = errors.New("tariffmarket: tariff is expired or revoked")
	ErrNoDefaultTariff       = errors.New("tariffmarket: no default tariff for power type")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("tariffmarket: subscription not found")

	// Balancing errors
	ErrOrderNotFound = errors.New("tariffmarket: balancing order not found")

	// Market errors
	ErrMarketStopped  = errors.New("tariffmarket: market is stopped")
	ErrUnknownMessage = errors.New("tariffmarket: unknown message type")

	// Store errors
	ErrStoreNotReady     = errors.New("tariffmarket: store not ready")
	ErrStoreClosed       = errors.New("tariffmarket: store is closed")
	ErrTransactionFailed = errors.New("tariffmarket: transaction failed")
	ErrMigrationFailed   = errors.New("tariffmarket: migration failed")

	// Transport errors
	ErrTransportUnavailable = errors.New("tariffmarket: transport unavailable")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tariffmarket: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tariffmarket: no errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tariffmarket: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns e when it holds errors and nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTariffNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrTransportUnavailable)
}

// IsStoreError returns true if the error came from the storage layer.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrStoreClosed) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrMigrationFailed)
}
