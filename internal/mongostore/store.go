// Package mongostore implements port.Store on MongoDB. Multi-document
// transactions need a replica set; a single-node replica set is enough.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dukerupert/larder/internal/port"
)

const (
	colInventory = "inventory"
	colAlerts    = "alerts"
	colShopping  = "shopping_lists"
	colFamilies  = "families"
	colUsers     = "users"
	colBarcodes  = "barcode_library"
)

// Server signals for a write that lost a transaction race.
const (
	codeWriteConflict = 112
	labelTransient    = "TransientTransactionError"
)

type Store struct {
	*queries
	client   *mongo.Client
	attempts int
}

var _ port.Store = (*Store)(nil)

type Option func(*Store)

// WithTxAttempts sets how many times RunTx replays a conflicting transaction.
func WithTxAttempts(n int) Option {
	return func(s *Store) { s.attempts = n }
}

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to uri, pings the primary and ensures indexes on dbName.
func Open(ctx context.Context, uri, dbName string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", classify(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", classify(err))
	}

	s := &Store{
		queries: &queries{
			db:  client.Database(dbName),
			now: time.Now,
			seq: new(atomic.Int64),
		},
		client:   client,
		attempts: 5,
	}
	s.seq.Store(time.Now().UnixNano())
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// RunTx runs fn inside a session transaction. The driver retries transient
// transaction errors itself; version mismatches surface as port.ErrConflict
// and replay the whole function.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	return port.RetryConflicts(ctx, s.attempts, func(ctx context.Context) error {
		sess, err := s.client.StartSession()
		if err != nil {
			return fmt.Errorf("start session: %w", classify(err))
		}
		defer sess.EndSession(ctx)

		_, err = sess.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(sessCtx, s.queries)
		})
		if err != nil {
			return classify(err)
		}
		return nil
	})
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Database exposes the underlying database for the change-stream watcher.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// queries runs either standalone or, when ctx is a session context, inside
// that session's transaction.
type queries struct {
	db  *mongo.Database
	now func() time.Time
	seq *atomic.Int64
}

// nextSeq orders documents inserted within the same millisecond.
func (q *queries) nextSeq() int64 {
	return q.seq.Add(1)
}

func (q *queries) ensureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colInventory: {
			{Keys: bson.D{{Key: "family_id", Value: 1}, {Key: "name_key", Value: 1}, {Key: "owner_id", Value: 1}}, Options: options.Index().SetName("family_key")},
		},
		colAlerts: {
			{Keys: bson.D{{Key: "family_id", Value: 1}, {Key: "item_name", Value: 1}}, Options: options.Index().SetName("family_item")},
		},
		colShopping: {
			{Keys: bson.D{{Key: "family_id", Value: 1}, {Key: "name_key", Value: 1}, {Key: "owner_id", Value: 1}}, Options: options.Index().SetName("family_key")},
		},
		colFamilies: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetName("code_unique").SetUnique(true)},
		},
		colUsers: {
			{Keys: bson.D{{Key: "family_id", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("family_name")},
		},
	}
	for col, models := range specs {
		if _, err := q.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, classify(err))
		}
	}
	return nil
}

// classify maps driver errors onto the port sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, port.ErrConflict) || errors.Is(err, port.ErrUnavailable) {
		return err
	}
	var se mongo.ServerError
	switch {
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return fmt.Errorf("%w: %v", port.ErrUnavailable, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", port.ErrConflict, err)
	case errors.As(err, &se) && (se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel(labelTransient)):
		return fmt.Errorf("%w: %v", port.ErrConflict, err)
	}
	return err
}

func checkMatched(n int64, what string) error {
	if n == 0 {
		return fmt.Errorf("%s: %w", what, port.ErrConflict)
	}
	return nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// compoundID builds the _id of documents keyed within a family.
func compoundID(familyID, id string) string {
	return familyID + "/" + id
}

func expiry(t *time.Time) *time.Time {
	if t == nil || t.Unix() <= 0 {
		return nil
	}
	u := t.UTC().Truncate(time.Millisecond)
	return &u
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func ptrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
