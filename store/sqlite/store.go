// Package sqlite is a SQLite journal backend built on database/sql and the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/types"
)

// compile-time interface check
var _ store.Journal = (*Store)(nil)

const (
	tableTransactions = "tariffmarket_transactions"
	tableControls     = "tariffmarket_balancing_controls"
	tableMigrations   = "tariffmarket_migrations"
)

var (
	txColumns      = []string{"id", "kind", "broker_id", "tariff_id", "customer_id", "customer_count", "kwh", "charge", "regulation", "timeslot", "posted_at"}
	controlColumns = []string{"id", "broker_id", "tariff_id", "kwh", "payment", "timeslot", "posted_at"}
)

// Store implements store.Journal on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn, for example "file:journal.db" or
// ":memory:".
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/sqlite: open: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// Migrate applies every migration not yet recorded.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+tableMigrations+` (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("tariffmarket/sqlite: ensure migration table: %w", err)
	}

	for _, m := range Migrations {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableMigrations+` WHERE version = ?`, m.Version).Scan(&n); err != nil {
			return fmt.Errorf("tariffmarket/sqlite: check migration %s: %w", m.Name, err)
		}
		if n > 0 {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("tariffmarket/sqlite: begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tariffmarket/sqlite: migration %s failed: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+tableMigrations+` (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tariffmarket/sqlite: record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tariffmarket/sqlite: commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Journal ====================

func (s *Store) AppendTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	q := builder().Insert(tableTransactions).Columns(txColumns...)
	for _, t := range txs {
		q = q.Values(
			t.ID.String(), string(t.Kind), t.BrokerID, t.TariffID.String(), t.CustomerID,
			t.CustomerCount, t.KWh, t.Charge.Amount.String(), t.Regulation, t.Timeslot, formatTime(t.PostedAt),
		)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("tariffmarket/sqlite: build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tariffmarket/sqlite: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("tariffmarket/sqlite: append transactions: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	q := filter(builder().Select(txColumns...).From(tableTransactions), opts)
	if opts.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": string(opts.Kind)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/sqlite: build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/sqlite: list transactions: %w", err)
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		var (
			t                  transaction.Transaction
			txID, tariffID     string
			kind, charge, when string
		)
		if err := rows.Scan(&txID, &kind, &t.BrokerID, &tariffID, &t.CustomerID,
			&t.CustomerCount, &t.KWh, &charge, &t.Regulation, &t.Timeslot, &when); err != nil {
			return nil, fmt.Errorf("tariffmarket/sqlite: scan transaction: %w", err)
		}
		if err := t.ID.UnmarshalText([]byte(txID)); err != nil {
			return nil, err
		}
		if err := t.TariffID.UnmarshalText([]byte(tariffID)); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(charge)
		if err != nil {
			return nil, fmt.Errorf("tariffmarket/sqlite: parse charge: %w", err)
		}
		t.Kind = transaction.Kind(kind)
		t.Charge = types.Money{Amount: amount}
		if t.PostedAt, err = parseTime(when); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) AppendBalancingControl(ctx context.Context, c *transaction.BalancingControl) error {
	query, args, err := builder().Insert(tableControls).Columns(controlColumns...).
		Values(c.ID.String(), c.BrokerID, c.TariffID.String(), c.KWh, c.Payment, c.Timeslot, formatTime(c.PostedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("tariffmarket/sqlite: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("tariffmarket/sqlite: append balancing control: %w", err)
	}
	return nil
}

func (s *Store) ListBalancingControls(ctx context.Context, opts transaction.ListOpts) ([]*transaction.BalancingControl, error) {
	query, args, err := filter(builder().Select(controlColumns...).From(tableControls), opts).ToSql()
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/sqlite: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/sqlite: list balancing controls: %w", err)
	}
	defer rows.Close()

	var out []*transaction.BalancingControl
	for rows.Next() {
		var (
			c                    transaction.BalancingControl
			ctlID, tariffID, when string
		)
		if err := rows.Scan(&ctlID, &c.BrokerID, &tariffID, &c.KWh, &c.Payment, &c.Timeslot, &when); err != nil {
			return nil, fmt.Errorf("tariffmarket/sqlite: scan balancing control: %w", err)
		}
		if err := c.ID.UnmarshalText([]byte(ctlID)); err != nil {
			return nil, err
		}
		if err := c.TariffID.UnmarshalText([]byte(tariffID)); err != nil {
			return nil, err
		}
		if c.PostedAt, err = parseTime(when); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// filter applies the options shared by both journal tables. Rows come
// back in posting order.
func filter(q squirrel.SelectBuilder, opts transaction.ListOpts) squirrel.SelectBuilder {
	if opts.BrokerID != "" {
		q = q.Where(squirrel.Eq{"broker_id": opts.BrokerID})
	}
	if !opts.TariffID.IsNil() {
		q = q.Where(squirrel.Eq{"tariff_id": opts.TariffID.String()})
	}
	if !opts.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"posted_at": formatTime(opts.Since)})
	}
	q = q.OrderBy("seq ASC")
	switch {
	case opts.Limit > 0:
		q = q.Limit(uint64(opts.Limit))
		if opts.Offset > 0 {
			q = q.Offset(uint64(opts.Offset))
		}
	case opts.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		q = q.Suffix("LIMIT -1 OFFSET ?", opts.Offset)
	}
	return q
}

// Timestamps are stored as fixed-width UTC strings so they sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("tariffmarket/sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
