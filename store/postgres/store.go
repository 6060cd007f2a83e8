// Package postgres is a PostgreSQL journal backend built on pgx and
// squirrel.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/tariffmarket"
	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/transaction"
)

// compile-time interface check
var _ store.Journal = (*Store)(nil)

const (
	tableTransactions = "tariffmarket_transactions"
	tableControls     = "tariffmarket_balancing_controls"
	tableMigrations   = "tariffmarket_migrations"
)

// Store implements store.Journal on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool for dsn.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/postgres: connect: %w", err)
	}
	return New(pool), nil
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// builder returns a squirrel builder using $n placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Migrate applies every migration not yet recorded, each in its own
// transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+tableMigrations+` (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("%w: %w", tariffmarket.ErrMigrationFailed, err)
	}

	for _, m := range Migrations {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `INSERT INTO `+tableMigrations+` (version, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, m.Version, m.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, m.Up)
			return err
		})
		if err != nil {
			return fmt.Errorf("tariffmarket/postgres: migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Journal ====================

func (s *Store) AppendTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	q := builder().Insert(tableTransactions).Columns(txColumns...)
	for _, t := range txs {
		q = q.Values(toTxModel(t).values()...)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("tariffmarket/postgres: build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return wrapErr(fmt.Errorf("tariffmarket/postgres: append transactions: %w", err))
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	cols := make([]string, len(txColumns))
	copy(cols, txColumns)
	cols[7] = "charge::text"

	q := filter(builder().Select(cols...).From(tableTransactions), opts)
	if opts.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": string(opts.Kind)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/postgres: build select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("tariffmarket/postgres: list transactions: %w", err))
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		var m txModel
		if err := rows.Scan(m.targets()...); err != nil {
			return nil, fmt.Errorf("tariffmarket/postgres: scan transaction: %w", err)
		}
		t, err := fromTxModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) AppendBalancingControl(ctx context.Context, c *transaction.BalancingControl) error {
	query, args, err := builder().Insert(tableControls).Columns(controlColumns...).
		Values(toControlModel(c).values()...).
		ToSql()
	if err != nil {
		return fmt.Errorf("tariffmarket/postgres: build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return wrapErr(fmt.Errorf("tariffmarket/postgres: append balancing control: %w", err))
	}
	return nil
}

func (s *Store) ListBalancingControls(ctx context.Context, opts transaction.ListOpts) ([]*transaction.BalancingControl, error) {
	query, args, err := filter(builder().Select(controlColumns...).From(tableControls), opts).ToSql()
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/postgres: build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("tariffmarket/postgres: list balancing controls: %w", err))
	}
	defer rows.Close()

	var out []*transaction.BalancingControl
	for rows.Next() {
		var m controlModel
		if err := rows.Scan(m.targets()...); err != nil {
			return nil, fmt.Errorf("tariffmarket/postgres: scan balancing control: %w", err)
		}
		c, err := fromControlModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func filter(q squirrel.SelectBuilder, opts transaction.ListOpts) squirrel.SelectBuilder {
	if opts.BrokerID != "" {
		q = q.Where(squirrel.Eq{"broker_id": opts.BrokerID})
	}
	if !opts.TariffID.IsNil() {
		q = q.Where(squirrel.Eq{"tariff_id": opts.TariffID.String()})
	}
	if !opts.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"posted_at": opts.Since.UTC()})
	}
	q = q.OrderBy("seq ASC")
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}
	return q
}

// wrapErr marks connection-level failures as retryable.
func wrapErr(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", tariffmarket.ErrTransactionFailed, err)
	}
	return err
}
