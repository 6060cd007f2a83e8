package tariff

import (
	"context"

	"github.com/xraph/tariffmarket/id"
)

// Store persists tariffs. ListTariffs returns tariffs in creation order.
type Store interface {
	CreateTariff(ctx context.Context, t *Tariff) error
	GetTariff(ctx context.Context, tariffID id.TariffID) (*Tariff, error)
	UpdateTariff(ctx context.Context, t *Tariff) error
	ListTariffs(ctx context.Context, opts ListOpts) ([]*Tariff, error)
	DeleteTariff(ctx context.Context, tariffID id.TariffID) error
}

// ListOpts filters ListTariffs. Zero fields match everything.
type ListOpts struct {
	BrokerID string
	State    State
	Limit    int
	Offset   int
}
