package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/port"
)

// Store is the SQLite implementation of port.Store.
type Store struct {
	*queries
	db       *sqlx.DB
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

// New wraps an open database. Close closes db.
func New(db *sql.DB, opts ...Option) *Store {
	// modernc registers as "sqlite"; sqlx needs the name that maps to ? binds.
	x := sqlx.NewDb(db, "sqlite3")
	s := &Store{
		queries:  &queries{q: x, now: time.Now},
		db:       x,
		attempts: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	return port.RetryConflicts(ctx, s.attempts, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", classify(err))
		}
		defer tx.Rollback()

		if err := fn(ctx, &queries{q: tx, now: s.now}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", classify(err))
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// queries runs against either the database or an open transaction.
type queries struct {
	q   sqlx.ExtContext
	now func() time.Time
}

// classify maps lock contention onto port.ErrConflict so RunTx replays it.
func classify(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %v", port.ErrConflict, err)
	}
	return err
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, port.ErrConflict)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func expiryToMillis(t *time.Time) int64 {
	if t == nil || t.Unix() <= 0 {
		return 0
	}
	return t.UnixMilli()
}

func expiryFromMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// likePrefix escapes s for use as a LIKE prefix pattern with ESCAPE '\'.
func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}
