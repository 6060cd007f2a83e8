package extension

import (
	"github.com/xraph/tariffmarket"
	"github.com/xraph/tariffmarket/plugin"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/transport"
)

// Option configures the tariff market Forge extension.
type Option func(*Extension)

// WithStore sets the store for the market.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithMarketOption passes a tariffmarket.Option through to the market.
func WithMarketOption(opt tariffmarket.Option) Option {
	return func(e *Extension) {
		e.marketOpts = append(e.marketOpts, opt)
	}
}

// WithPlugin registers a market plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.marketOpts = append(e.marketOpts, tariffmarket.WithPlugin(p))
	}
}

// WithTransport sets the transport the market answers brokers on.
func WithTransport(tr transport.Transport) Option {
	return func(e *Extension) {
		e.marketOpts = append(e.marketOpts, tariffmarket.WithTransport(tr))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents store migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithPublicationSchedule sets the publication interval and offset in hours.
func WithPublicationSchedule(interval, offset int) Option {
	return func(e *Extension) {
		e.config.PublicationInterval = interval
		e.config.PublicationOffset = offset
	}
}

// WithJournalBatchSize sets how many transactions the journal buffers.
func WithJournalBatchSize(size int) Option {
	return func(e *Extension) { e.config.JournalBatchSize = size }
}
