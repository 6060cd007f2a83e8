package extension

// Config holds the tariff market extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tariffmarket" or
// "tariffmarket" keys).
type Config struct {
	// DisableMigrate prevents store migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// PublicationInterval is the number of hours between publication
	// boundaries (default: 6).
	PublicationInterval int `json:"publication_interval" mapstructure:"publication_interval" yaml:"publication_interval"`

	// PublicationOffset shifts publication boundaries within the interval.
	PublicationOffset int `json:"publication_offset" mapstructure:"publication_offset" yaml:"publication_offset"`

	// JournalBatchSize is the number of transactions buffered before the
	// journal writes them to the store (default: 100).
	JournalBatchSize int `json:"journal_batch_size" mapstructure:"journal_batch_size" yaml:"journal_batch_size"`

	// Seed drives the publication and revocation fee draws.
	Seed uint64 `json:"seed" mapstructure:"seed" yaml:"seed"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PublicationInterval: 6,
		JournalBatchSize:    100,
		Seed:                1,
	}
}
