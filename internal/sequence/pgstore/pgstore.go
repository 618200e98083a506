// Package pgstore keeps sequence counters in a Postgres table, one row per
// health facility, locked with SELECT ... FOR UPDATE for the duration of an
// allocation.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"imisexport/internal/apperr"
	"imisexport/internal/sequence"
)

// DefaultTable is the counter table of the openIMIS core module.
const DefaultTable = "core_spimmidgenerator"

// Store implements sequence.Store.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

var _ sequence.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTable overrides the counter table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, table: DefaultTable}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open connects to dsn and returns the store with a close function.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, apperr.Config("pgstore.Open", "invalid sequence DSN: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, apperr.Internal("pgstore.Open", "ping", err)
	}
	return New(pool, opts...), pool.Close, nil
}

func (s *Store) ident() string { return pgx.Identifier{s.table}.Sanitize() }

// WithLockedCounter runs fn inside one transaction holding the row lock of
// the facility. The row is created first when missing so concurrent first
// allocations serialize on it too.
func (s *Store) WithLockedCounter(ctx context.Context, hfID int64, year int, fn func(*sequence.Counter) error) error {
	t := s.ident()
	insert := fmt.Sprintf(`INSERT INTO %s (hf_id, next_insuree_id, next_claim_id, current_year)
VALUES ($1, 1, 1, $2) ON CONFLICT (hf_id) DO NOTHING`, t)
	lock := fmt.Sprintf(`SELECT hf_id, next_insuree_id, next_claim_id, current_year
FROM %s WHERE hf_id = $1 FOR UPDATE`, t)
	update := fmt.Sprintf(`UPDATE %s SET next_insuree_id = $2, next_claim_id = $3, current_year = $4
WHERE hf_id = $1`, t)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insert, hfID, year); err != nil {
			return fmt.Errorf("pgstore: create counter %d: %w", hfID, err)
		}

		var c sequence.Counter
		err := tx.QueryRow(ctx, lock, hfID).Scan(&c.FacilityID, &c.NextInsureeID, &c.NextClaimID, &c.Year)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("pgstore", "counter row of health facility %d vanished", hfID)
		}
		if err != nil {
			return fmt.Errorf("pgstore: lock counter %d: %w", hfID, err)
		}

		if err := fn(&c); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, update, hfID, c.NextInsureeID, c.NextClaimID, c.Year); err != nil {
			return fmt.Errorf("pgstore: update counter %d: %w", hfID, err)
		}
		return nil
	})
}
