// Package sqlsource reads openIMIS legacy tables (tblPolicy, tblClaim, ...)
// through database/sql. Queries are built with goqu so the same definitions
// render for PostgreSQL and SQL Server deployments.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlserver"
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"

	"imisexport/internal/apperr"
	"imisexport/internal/source"
)

// Dialect names accepted by Open and New.
const (
	Postgres  = "postgres"
	SQLServer = "sqlserver"
)

var drivers = map[string]string{
	Postgres:  "pgx",
	SQLServer: "sqlserver",
}

// Reader implements source.Source.
type Reader struct {
	db      *sql.DB
	q       *goqu.Database
	dialect string
}

var _ source.Source = (*Reader)(nil)

// Open connects to the operational database and pings it.
func Open(ctx context.Context, dialect, dsn string) (*Reader, error) {
	driver, ok := drivers[dialect]
	if !ok {
		return nil, apperr.Config("sqlsource.Open", "unsupported dialect %q", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlsource: ping: %w", err)
	}
	return New(db, dialect), nil
}

// New wraps an open *sql.DB.
func New(db *sql.DB, dialect string) *Reader {
	return &Reader{db: db, q: goqu.New(dialect, db), dialect: dialect}
}

// DB exposes the underlying handle for components that share the
// connection (the CSV export API).
func (r *Reader) DB() *sql.DB { return r.db }

// Dialect returns the goqu dialect name.
func (r *Reader) Dialect() string { return r.dialect }

// Close closes the connection pool.
func (r *Reader) Close() error { return r.db.Close() }

// keyset narrows ds to rows after the cursor and limits it to one page.
func keyset(ds *goqu.SelectDataset, key exp.IdentifierExpression, after any, limit int) *goqu.SelectDataset {
	if after != nil {
		ds = ds.Where(key.Gt(after))
	}
	return ds.Order(key.Asc()).Limit(uint(limit))
}

func live(alias string) exp.Expression {
	return goqu.I(alias + ".ValidityTo").IsNull()
}

// isFalse compares with "=" rather than IS FALSE, which SQL Server lacks.
func isFalse(col string) exp.Expression {
	return goqu.L("? = ?", goqu.I(col), false)
}

// query renders ds and scans every row with scan.
func query[T any](ctx context.Context, r *Reader, op string, ds *goqu.SelectDataset, scan func(*sql.Rows, *T) error) ([]T, error) {
	stmt, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperr.Internal(op, "build query", err)
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, apperr.Internal(op, "query", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, apperr.Internal(op, "scan", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(op, "rows", err)
	}
	return out, nil
}

func ptrInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func ptrInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func ptrString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func ptrFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func ptrBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func ptrTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
