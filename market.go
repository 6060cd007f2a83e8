package tariffmarket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tariffmarket/accounting"
	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/config"
	"github.com/xraph/tariffmarket/id"
	"github.com/xraph/tariffmarket/plugin"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/transport"
	"github.com/xraph/tariffmarket/types"
)

// Market is the tariff market core. Every exported method takes the market
// lock, so calls are atomic with respect to each other.
type Market struct {
	mu sync.Mutex

	store      store.Store
	ledger     accounting.Ledger
	journal    *accounting.Journal
	transport  transport.Transport
	clock      types.Clock
	plugins    *plugin.Registry
	logger     *slog.Logger
	controller *balancing.Controller
	scheduler  *publication.Scheduler
	cfg        config.Config

	publicationFee float64
	revocationFee  float64
	fixedFees      bool

	pendingRevokes []pendingRevoke
	pendingRates   []tariff.VariableRateUpdate
	pendingSubs    []subscriptionEvent
	disabled       map[string]bool
	defaults       map[tariff.PowerType]id.TariffID
	onNewTariffs   []func(context.Context, []*tariff.Tariff)

	started bool
	stopped bool
}

type pendingRevoke struct {
	tariffID id.TariffID
	at       time.Time
}

// subscriptionEvent is a queued change in a customer's commitment.
// Negative counts leave.
type subscriptionEvent struct {
	customer string
	tariffID id.TariffID
	count    int
}

// Option configures a Market instance.
type Option func(*Market)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Market) {
		m.logger = logger
		m.plugins.WithLogger(logger)
	}
}

// WithConfig applies a whole configuration.
func WithConfig(cfg config.Config) Option {
	return func(m *Market) { m.cfg = cfg }
}

// WithTransport sets the broker transport. The default discards messages.
func WithTransport(tr transport.Transport) Option {
	return func(m *Market) { m.transport = tr }
}

// WithClock sets the simulation clock.
func WithClock(c types.Clock) Option {
	return func(m *Market) { m.clock = c }
}

// WithLedger replaces the store-backed journal with another Ledger.
func WithLedger(l accounting.Ledger) Option {
	return func(m *Market) { m.ledger = l }
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(m *Market) {
		if err := m.plugins.Register(p); err != nil {
			m.logger.Warn("plugin not registered", "plugin", p.Name(), "error", err)
		}
	}
}

// WithFees fixes the publication and revocation fees instead of drawing
// them from the configured ranges.
func WithFees(publication, revocation float64) Option {
	return func(m *Market) {
		m.publicationFee, m.revocationFee = publication, revocation
		m.fixedFees = true
	}
}

// WithNewTariffListener registers fn to receive the tariffs of every
// publication batch.
func WithNewTariffListener(fn func(context.Context, []*tariff.Tariff)) Option {
	return func(m *Market) { m.onNewTariffs = append(m.onNewTariffs, fn) }
}

// New creates a Market on s.
func New(s store.Store, opts ...Option) (*Market, error) {
	m := &Market{
		store:     s,
		transport: transport.Discard{},
		plugins:   plugin.NewRegistry(),
		logger:    slog.Default(),
		cfg:       config.Default(),
		disabled:  make(map[string]bool),
		defaults:  make(map[tariff.PowerType]id.TariffID),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	sched, err := publication.NewScheduler(m.cfg.Publication.Interval, m.cfg.Publication.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	m.scheduler = sched

	if m.clock == nil {
		base := m.cfg.SimStart
		if base.IsZero() {
			base = types.StartOfDay(time.Now())
		}
		m.clock = types.NewSimClock(base)
	}
	if !m.fixedFees {
		m.publicationFee, m.revocationFee = m.cfg.DrawFees()
	}
	if m.ledger == nil {
		m.journal = accounting.NewJournal(s, m.clock,
			accounting.WithLogger(m.logger),
			accounting.WithBatchSize(m.cfg.Journal.BatchSize),
			accounting.WithListener(func(ctx context.Context, tx *transaction.Transaction) {
				m.plugins.EmitTransactionPosted(ctx, tx)
			}),
		)
		m.ledger = m.journal
	}
	m.controller = balancing.NewController(&source{m}, m.ledger, m.transport, m.clock,
		balancing.WithLogger(m.logger),
		balancing.WithExerciseListener(func(ctx context.Context, ev *balancing.ControlEvent) {
			m.plugins.EmitBalancingExercised(ctx, ev)
		}),
	)
	return m, nil
}

// Start migrates the store and initializes plugins.
func (m *Market) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	if err := m.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	m.plugins.EmitInit(ctx, m)
	m.started = true

	m.logger.Info("tariff market started",
		"interval", m.scheduler.Interval,
		"offset", m.scheduler.Offset,
		"publication_fee", m.publicationFee,
		"revocation_fee", m.revocationFee,
	)
	return nil
}

// Stop flushes the journal, shuts plugins down and closes the store.
func (m *Market) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true

	errs := &MultiError{}
	errs.Add(m.flushLedger(ctx))
	m.plugins.EmitShutdown(ctx)
	errs.Add(m.store.Close())
	return errs.ErrOrNil()
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Store returns the market's store.
func (m *Market) Store() store.Store { return m.store }

// Plugins returns the plugin registry.
func (m *Market) Plugins() *plugin.Registry { return m.plugins }

// Clock returns the simulation clock.
func (m *Market) Clock() types.Clock { return m.clock }

// Journal returns the store-backed journal, or nil when WithLedger
// replaced it.
func (m *Market) Journal() *accounting.Journal { return m.journal }

// Controller returns the balancing controller.
func (m *Market) Controller() *balancing.Controller { return m.controller }

// PublicationFee is the fee charged for each new tariff.
func (m *Market) PublicationFee() float64 { return m.publicationFee }

// RevocationFee is the fee charged for revoking a tariff with subscribers.
func (m *Market) RevocationFee() float64 { return m.revocationFee }

func (m *Market) flushLedger(ctx context.Context) error {
	if f, ok := m.ledger.(accounting.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
