package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bookiez/backend/internal/apperr"
)

const (
	accountsCollection  = "accounts"
	booksCollection     = "books"
	exchangesCollection = "exchanges"
)

// Mongo owns the database handle and hands out the per-collection stores.
type Mongo struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

// NewMongo wraps a connected client. When transactions is true, Tx runs
// its callback inside a multi-document transaction, which requires a
// replica set or sharded cluster.
func NewMongo(client *mongo.Client, dbName string, transactions bool) *Mongo {
	return &Mongo{client: client, db: client.Database(dbName), transactions: transactions}
}

// Accounts returns the store over the accounts collection.
func (m *Mongo) Accounts() *AccountStore {
	return &AccountStore{col: m.db.Collection(accountsCollection)}
}

// Books returns the store over the books collection.
func (m *Mongo) Books() *BookStore {
	return &BookStore{col: m.db.Collection(booksCollection)}
}

// Exchanges returns the store over the exchanges collection.
func (m *Mongo) Exchanges() *ExchangeStore {
	return &ExchangeStore{col: m.db.Collection(exchangesCollection)}
}

// Ping reports whether the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Tx runs fn as one unit of work. Store calls made with the context passed
// to fn join the transaction.
func (m *Mongo) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions {
		return fn(ctx)
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes the stores rely on. It is idempotent.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		accountsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		booksCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "genre", Value: 1}}},
		},
		exchangesCollection: {
			{Keys: bson.D{{Key: "requester", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "book", Value: 1}}},
		},
	}
	for name, idx := range specs {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("mongo indexes %s: %w", name, err)
		}
	}
	return nil
}

// mapErr translates driver errors into apperr kinds.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return apperr.ErrConflict
	default:
		return err
	}
}

func findPage(skip, limit int64) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
}
