// Command tariffsim runs the tariff market against a scripted set of
// brokers and customers. With a NATS URL configured it also accepts broker
// messages from the bus while the simulation runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/tariffmarket"
	audithook "github.com/xraph/tariffmarket/audit_hook"
	"github.com/xraph/tariffmarket/config"
	"github.com/xraph/tariffmarket/observability"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/store/memory"
	"github.com/xraph/tariffmarket/store/mongo"
	"github.com/xraph/tariffmarket/store/postgres"
	"github.com/xraph/tariffmarket/store/sqlite"
	"github.com/xraph/tariffmarket/transport"
	natstransport "github.com/xraph/tariffmarket/transport/nats"
	"github.com/xraph/tariffmarket/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tariffsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		hours      int
		audit      bool
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.IntVar(&hours, "hours", 72, "number of timeslots to simulate")
	flag.BoolVar(&audit, "audit", false, "log audit events")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	base := cfg.SimStart
	if base.IsZero() {
		base = types.StartOfDay(time.Now())
	}
	clock := types.NewSimClock(base)

	var (
		tr  transport.Transport = transport.Discard{}
		bus *natstransport.Transport
	)
	if cfg.NATS.URL != "" {
		bus, err = natstransport.Connect(ctx, cfg.NATS.URL, tariffmarket.NewCodec(),
			natstransport.WithPrefix(cfg.NATS.SubjectPrefix),
			natstransport.WithClock(clock),
			natstransport.WithLogger(logger),
			natstransport.WithMaxRetry(cfg.NATS.MaxRetry),
		)
		if err != nil {
			return err
		}
		defer bus.Close()
		tr = bus
	}

	opts := []tariffmarket.Option{
		tariffmarket.WithLogger(logger),
		tariffmarket.WithConfig(cfg),
		tariffmarket.WithClock(clock),
		tariffmarket.WithTransport(tr),
		tariffmarket.WithPlugin(observability.NewMetricsExtension(
			observability.NewOTelFactory(noop.NewMeterProvider().Meter("tariffmarket")),
		)),
	}
	if audit {
		opts = append(opts, tariffmarket.WithPlugin(audithook.New(
			audithook.RecorderFunc(func(_ context.Context, ev *audithook.AuditEvent) error {
				logger.Info("audit", "action", ev.Action, "resource_id", ev.ResourceID, "broker", ev.BrokerID, "outcome", ev.Outcome)
				return nil
			}),
			audithook.WithLogger(logger),
		)))
	}
	m, err := tariffmarket.New(st, opts...)
	if err != nil {
		return err
	}
	if err := m.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if bus != nil {
		g.Go(func() error {
			sub, err := bus.Inbound(gctx, func(ctx context.Context, msg any) error {
				_, err := m.Dispatch(ctx, msg)
				return err
			})
			if err != nil {
				return err
			}
			<-gctx.Done()
			return sub.Unsubscribe()
		})
	}
	g.Go(func() error {
		defer cancel()
		return newScenario(m, clock, cfg.Seed, logger).run(gctx, hours)
	})

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	report(m, logger)
	return errors.Join(runErr, m.Stop(context.Background()))
}

// openStore returns the configured store. Remote journals are retried
// with exponential backoff until they answer a ping.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Store.Driver == "memory" {
		return memory.New(), nil
	}

	var journal store.Journal
	connect := func() error {
		var (
			j   store.Journal
			err error
		)
		switch cfg.Store.Driver {
		case "sqlite":
			j, err = sqlite.Open(cfg.Store.DSN)
		case "postgres":
			j, err = postgres.Connect(ctx, cfg.Store.DSN)
		case "mongo":
			j, err = mongo.Connect(cfg.Store.DSN, cfg.Store.Database)
		default:
			return backoff.Permanent(fmt.Errorf("unknown store driver %q", cfg.Store.Driver))
		}
		if err != nil {
			return err
		}
		if err := j.Ping(ctx); err != nil {
			_ = j.Close()
			return err
		}
		journal = j
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.NATS.MaxRetry
	notify := func(err error, wait time.Duration) {
		logger.Warn("journal store not ready", "driver", cfg.Store.Driver, "retry_in", wait, "error", err)
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("%w: %w", tariffmarket.ErrStoreNotReady, err)
	}
	return store.WithJournal(memory.New(), journal), nil
}

// report logs every broker's cash balance.
func report(m *tariffmarket.Market, logger *slog.Logger) {
	j := m.Journal()
	if j == nil {
		return
	}
	for _, broker := range []string{defaultBroker, "broker-a", "broker-b"} {
		logger.Info("broker balance", "broker", broker, "balance", j.Balance(broker).String())
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
