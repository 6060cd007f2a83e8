// Package config loads tariff market settings from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TARIFFMARKET_"

// MaxInterval is the longest publication interval, in timeslots.
const MaxInterval = 24

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds the market configuration.
// Fields can be set programmatically, loaded from a YAML file, or
// overridden through TARIFFMARKET_* environment variables.
type Config struct {
	// Publication controls the boundary flush cadence.
	Publication PublicationConfig `json:"publication" mapstructure:"publication" yaml:"publication" envPrefix:"PUBLICATION_"`

	// Fees are the per-transaction fees charged to brokers.
	Fees FeeConfig `json:"fees" mapstructure:"fees" yaml:"fees" envPrefix:"FEE_"`

	// Journal controls transaction buffering.
	Journal JournalConfig `json:"journal" mapstructure:"journal" yaml:"journal" envPrefix:"JOURNAL_"`

	// Store selects the journal backend.
	Store StoreConfig `json:"store" mapstructure:"store" yaml:"store" envPrefix:"STORE_"`

	// NATS configures the message bus. An empty URL keeps messages in process.
	NATS NATSConfig `json:"nats" mapstructure:"nats" yaml:"nats" envPrefix:"NATS_"`

	// Seed feeds the random fee draws so runs are reproducible.
	Seed uint64 `json:"seed" mapstructure:"seed" yaml:"seed" env:"SEED"`

	// SimStart is the simulation base time. Zero means midnight UTC today.
	SimStart time.Time `json:"sim_start" mapstructure:"sim_start" yaml:"sim_start" env:"SIM_START"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level" mapstructure:"log_level" yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// PublicationConfig sets when tariffs are published: every Interval
// timeslots, at hour-of-epoch Offset modulo Interval.
type PublicationConfig struct {
	Interval int `json:"interval" mapstructure:"interval" yaml:"interval" env:"INTERVAL" validate:"min=1,max=24"`
	Offset   int `json:"offset" mapstructure:"offset" yaml:"offset" env:"OFFSET" validate:"min=0,ltfield=Interval"`
}

// FeeConfig holds the publication and revocation fees. A nil fee is drawn
// uniformly from its range.
type FeeConfig struct {
	Publication    *float64 `json:"publication,omitempty" mapstructure:"publication" yaml:"publication,omitempty" env:"PUBLICATION" validate:"omitempty,lte=0"`
	PublicationMin float64  `json:"publication_min" mapstructure:"publication_min" yaml:"publication_min" env:"PUBLICATION_MIN" validate:"lte=0"`
	PublicationMax float64  `json:"publication_max" mapstructure:"publication_max" yaml:"publication_max" env:"PUBLICATION_MAX" validate:"lte=0,gtefield=PublicationMin"`

	Revocation    *float64 `json:"revocation,omitempty" mapstructure:"revocation" yaml:"revocation,omitempty" env:"REVOCATION" validate:"omitempty,lte=0"`
	RevocationMin float64  `json:"revocation_min" mapstructure:"revocation_min" yaml:"revocation_min" env:"REVOCATION_MIN" validate:"lte=0"`
	RevocationMax float64  `json:"revocation_max" mapstructure:"revocation_max" yaml:"revocation_max" env:"REVOCATION_MAX" validate:"lte=0,gtefield=RevocationMin"`
}

// JournalConfig controls how transactions are buffered before the store.
type JournalConfig struct {
	BatchSize int `json:"batch_size" mapstructure:"batch_size" yaml:"batch_size" env:"BATCH_SIZE" validate:"min=1"`
}

// StoreConfig selects a journal backend.
type StoreConfig struct {
	Driver   string `json:"driver" mapstructure:"driver" yaml:"driver" env:"DRIVER" validate:"oneof=memory sqlite postgres mongo"`
	DSN      string `json:"dsn" mapstructure:"dsn" yaml:"dsn" env:"DSN" validate:"required_unless=Driver memory"`
	Database string `json:"database" mapstructure:"database" yaml:"database" env:"DATABASE" validate:"required_if=Driver mongo"`
}

// NATSConfig configures transport/nats.
type NATSConfig struct {
	URL           string        `json:"url" mapstructure:"url" yaml:"url" env:"URL"`
	SubjectPrefix string        `json:"subject_prefix" mapstructure:"subject_prefix" yaml:"subject_prefix" env:"SUBJECT_PREFIX" validate:"required"`
	MaxRetry      time.Duration `json:"max_retry" mapstructure:"max_retry" yaml:"max_retry" env:"MAX_RETRY"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Publication: PublicationConfig{Interval: 6},
		Fees: FeeConfig{
			PublicationMin: -500,
			PublicationMax: -100,
			RevocationMin:  -500,
			RevocationMax:  -100,
		},
		Journal:  JournalConfig{BatchSize: 100},
		Store:    StoreConfig{Driver: "memory"},
		NATS:     NATSConfig{SubjectPrefix: "tariffmarket", MaxRetry: 30 * time.Second},
		Seed:     1,
		LogLevel: "info",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// DrawFees resolves the publication and revocation fees. Configured fees
// are returned as is; unset ones are drawn from their ranges using Seed.
func (c Config) DrawFees() (publication, revocation float64) {
	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))
	publication = draw(rng, c.Fees.Publication, c.Fees.PublicationMin, c.Fees.PublicationMax)
	revocation = draw(rng, c.Fees.Revocation, c.Fees.RevocationMin, c.Fees.RevocationMax)
	return publication, revocation
}

func draw(rng *rand.Rand, fixed *float64, lo, hi float64) float64 {
	// One value is consumed per fee whether or not it is configured.
	r := rng.Float64()
	if fixed != nil {
		return *fixed
	}
	return lo + r*(hi-lo)
}
