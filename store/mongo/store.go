// Package mongo is a MongoDB journal backend.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/tariffmarket/store"
	"github.com/xraph/tariffmarket/transaction"
)

// Collection name constants.
const (
	colTransactions = "tariffmarket_transactions"
	colControls     = "tariffmarket_balancing_controls"
)

// compile-time interface check
var _ store.Journal = (*Store)(nil)

// Store implements store.Journal on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and uses database.
func Connect(uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: connect: %w", err)
	}
	return New(client, database), nil
}

// New wraps an open client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates the journal indexes, one collection per goroutine.
func (s *Store) Migrate(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for col, models := range migrationIndexes() {
		g.Go(func() error {
			if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
				return fmt.Errorf("tariffmarket/mongo: migrate %s indexes: %w", col, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func migrationIndexes() map[string][]mongo.IndexModel {
	byBroker := mongo.IndexModel{Keys: bson.D{{Key: "broker_id", Value: 1}, {Key: "posted_at", Value: 1}}}
	return map[string][]mongo.IndexModel{
		colTransactions: {
			byBroker,
			{Keys: bson.D{{Key: "tariff_id", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}}},
		},
		colControls: {byBroker},
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Journal ====================

func (s *Store) AppendTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(txs))
	for _, t := range txs {
		m, err := toTxModel(t)
		if err != nil {
			return err
		}
		docs = append(docs, m)
	}
	if _, err := s.db.Collection(colTransactions).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("tariffmarket/mongo: append transactions: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	f := filter(opts)
	if opts.Kind != "" {
		f = append(f, bson.E{Key: "kind", Value: string(opts.Kind)})
	}
	cur, err := s.db.Collection(colTransactions).Find(ctx, f, findOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: list transactions: %w", err)
	}
	var models []txModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: decode transactions: %w", err)
	}

	out := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		t, err := fromTxModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) AppendBalancingControl(ctx context.Context, c *transaction.BalancingControl) error {
	if _, err := s.db.Collection(colControls).InsertOne(ctx, toControlModel(c)); err != nil {
		return fmt.Errorf("tariffmarket/mongo: append balancing control: %w", err)
	}
	return nil
}

func (s *Store) ListBalancingControls(ctx context.Context, opts transaction.ListOpts) ([]*transaction.BalancingControl, error) {
	cur, err := s.db.Collection(colControls).Find(ctx, filter(opts), findOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: list balancing controls: %w", err)
	}
	var models []controlModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tariffmarket/mongo: decode balancing controls: %w", err)
	}

	out := make([]*transaction.BalancingControl, 0, len(models))
	for i := range models {
		c, err := fromControlModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func filter(opts transaction.ListOpts) bson.D {
	f := bson.D{}
	if opts.BrokerID != "" {
		f = append(f, bson.E{Key: "broker_id", Value: opts.BrokerID})
	}
	if !opts.TariffID.IsNil() {
		f = append(f, bson.E{Key: "tariff_id", Value: opts.TariffID.String()})
	}
	if !opts.Since.IsZero() {
		f = append(f, bson.E{Key: "posted_at", Value: bson.D{{Key: "$gte", Value: opts.Since.UTC()}}})
	}
	return f
}

// findOptions sorts in posting order. TypeIDs are time-ordered, so _id
// breaks ties within one instant.
func findOptions(opts transaction.ListOpts) *options.FindOptionsBuilder {
	fo := options.Find().SetSort(bson.D{{Key: "posted_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		fo.SetSkip(int64(opts.Offset))
	}
	return fo
}
