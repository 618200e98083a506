// Package postgres implements the warehouse Repository on Postgres with a
// pgx pool. Rows are bulk-loaded with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"imisexport/internal/ddl"
)

// Config holds Postgres connection settings.
type Config struct {
	DSN      string
	User     string
	Password string
	Host     string
	Port     int
	Database string
}

// ConnString returns DSN, or a postgres:// URL built from the fields.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	return u.String()
}

// Repository is a Postgres-backed warehouse.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository opens a pool and returns a close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool}, pool.Close, nil
}

// QuoteIdent quotes with lib/pq's identifier rules.
func (r *Repository) QuoteIdent(name string) string { return quoteIdent(name) }

func quoteIdent(name string) string { return pq.QuoteIdentifier(name) }

// MapType maps inferred kinds to Postgres types.
func (r *Repository) MapType(k ddl.Kind) string { return mapType(k) }

// mapType widens integers to BIGINT: the surrogate id shares the integer
// kind and source counters are 64-bit.
func mapType(k ddl.Kind) string {
	switch k {
	case ddl.KindInteger:
		return "BIGINT"
	case ddl.KindFloat:
		return "DOUBLE PRECISION"
	case ddl.KindBoolean:
		return "BOOLEAN"
	case ddl.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// DropTable renders an idempotent DROP for table.
func (r *Repository) DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(table)
}

// RenameTable renders an in-schema rename; to must be unqualified.
func (r *Repository) RenameTable(from, to string) string {
	return "ALTER TABLE " + quoteIdent(from) + " RENAME TO " + quoteIdent(to)
}

// Exec runs one statement on the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return pgError(err)
}

// ExecTx runs stmts in one transaction.
func (r *Repository) ExecTx(ctx context.Context, stmts ...string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s); err != nil {
				return pgError(err)
			}
		}
		return nil
	})
}

// CopyFrom COPYs rows into table.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	return n, pgError(err)
}

// pgError surfaces the server's detail line when there is one.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}
