// Package tariffmarket runs the retail tariff market of a power-market
// simulation.
//
// Brokers send tariff specifications, expirations, revocations, variable
// rate updates, balancing orders and economic controls. The market answers
// each with a status, holds new tariffs until the next publication
// boundary and then offers them to customers in one batch. Customers
// subscribe, unsubscribe and report usage through the Market; every
// resulting charge is posted to a ledger as a transaction.
//
// # Quick Start
//
//	s := memory.New()
//	m, err := tariffmarket.New(s,
//	    tariffmarket.WithLogger(slog.Default()),
//	    tariffmarket.WithTransport(tr),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Stop(ctx)
//
//	st, err := m.Dispatch(ctx, spec)
//
// # Timeslots
//
// Time advances in one-hour timeslots on a Clock. Call Activate once per
// timeslot: economic controls for the timeslot are applied every time,
// while revocations, publication and queued subscription changes happen
// only on hours selected by the configured publication interval and
// offset.
//
// # Storage
//
// Tariffs, subscriptions, balancing orders and transactions persist to a
// store.Store. Memory, SQLite, PostgreSQL and MongoDB backends are
// provided under store/.
package tariffmarket
