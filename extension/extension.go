// Package extension provides the Forge extension adapter for the tariff
// market.
//
// It implements the forge.Extension interface to run a Market inside a
// Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tariffmarket" or
// "tariffmarket" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tariffmarket"
	"github.com/xraph/tariffmarket/config"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tariffmarket"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Retail tariff market for power-market simulations"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the tariff market as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	market     *tariffmarket.Market
	store      store.Store
	marketOpts []tariffmarket.Option
}

// New creates a new tariff market Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Market returns the underlying Market. It is nil until Register is called.
func (e *Extension) Market() *tariffmarket.Market { return e.market }

// Register implements [forge.Extension]. It loads configuration, builds
// the market and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	m, err := tariffmarket.New(e.store, e.buildMarketOpts()...)
	if err != nil {
		return err
	}
	e.market = m

	return vessel.Provide(fapp.Container(), func() (*tariffmarket.Market, error) {
		return e.market, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.market == nil {
		return errors.New("tariffmarket: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.market.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	defer e.MarkStopped()
	if e.market != nil {
		return e.market.Stop(ctx)
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tariffmarket: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildMarketOpts turns the resolved config into market options. Pass
// through options come last so they win.
func (e *Extension) buildMarketOpts() []tariffmarket.Option {
	cfg := config.Default()
	cfg.Publication.Interval = e.config.PublicationInterval
	cfg.Publication.Offset = e.config.PublicationOffset
	cfg.Journal.BatchSize = e.config.JournalBatchSize
	cfg.Seed = e.config.Seed

	opts := make([]tariffmarket.Option, 0, len(e.marketOpts)+1)
	opts = append(opts, tariffmarket.WithConfig(cfg))
	return append(opts, e.marketOpts...)
}

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmatic := e.config

	fileConfig, loaded := e.tryLoadFromConfigFile()
	if !loaded {
		if programmatic.RequireConfig {
			return errors.New("tariffmarket: configuration is required but not found in config files; " +
				"ensure 'extensions.tariffmarket' or 'tariffmarket' key exists in your config")
		}
		e.config = mergeWithDefaults(programmatic)
	} else {
		e.config = mergeConfigurations(fileConfig, programmatic)
	}

	e.Logger().Debug("tariffmarket: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("publication_interval", e.config.PublicationInterval),
		forge.F("publication_offset", e.config.PublicationOffset),
		forge.F("journal_batch_size", e.config.JournalBatchSize),
	)
	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	for _, key := range []string{"extensions.tariffmarket", "tariffmarket"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("tariffmarket: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("tariffmarket: loaded config from file", forge.F("key", key))
		return cfg, true
	}
	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PublicationInterval == 0 {
		cfg.PublicationInterval = defaults.PublicationInterval
	}
	if cfg.JournalBatchSize == 0 {
		cfg.JournalBatchSize = defaults.JournalBatchSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaults.Seed
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options. YAML
// wins; programmatic values fill its gaps.
func mergeConfigurations(yamlConfig, programmatic Config) Config {
	if programmatic.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.PublicationInterval == 0 && programmatic.PublicationInterval != 0 {
		yamlConfig.PublicationInterval = programmatic.PublicationInterval
		yamlConfig.PublicationOffset = programmatic.PublicationOffset
	}
	if yamlConfig.JournalBatchSize == 0 && programmatic.JournalBatchSize != 0 {
		yamlConfig.JournalBatchSize = programmatic.JournalBatchSize
	}
	if yamlConfig.Seed == 0 && programmatic.Seed != 0 {
		yamlConfig.Seed = programmatic.Seed
	}
	return mergeWithDefaults(yamlConfig)
}
