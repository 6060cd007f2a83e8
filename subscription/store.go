package subscription

import (
	"context"

	"github.com/xraph/tariffmarket/id"
)

// Store persists subscriptions. FindSubscription returns an error
// satisfying the store's not-found check when the pair has none.
type Store interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	FindSubscription(ctx context.Context, customerID string, tariffID id.TariffID) (*Subscription, error)
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error
	DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error
}

// ListOpts filters ListSubscriptions. Zero fields match everything.
type ListOpts struct {
	CustomerID string
	TariffID   id.TariffID
	ActiveOnly bool
	Limit      int
	Offset     int
}
