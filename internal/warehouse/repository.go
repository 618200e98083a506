// Package warehouse contains the backend-agnostic contract for the analytics
// warehouse and the publisher that replaces a destination table with a
// materialized dataset.
//
// Backends (postgres, mssql, sqlite, mysql) register a Factory for their
// kind at init time; importing internal/warehouse/all enables all of them.
package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"imisexport/internal/apperr"
	"imisexport/internal/ddl"
)

// Dialect renders the few statements the publisher needs.
type Dialect interface {
	// QuoteIdent quotes one identifier.
	QuoteIdent(name string) string
	// MapType maps an inferred column kind to a column type.
	MapType(k ddl.Kind) string
	// DropTable renders DROP TABLE IF EXISTS.
	DropTable(table string) string
	// RenameTable renders a rename of from to to.
	RenameTable(from, to string) string
}

// Repository is a connection to one warehouse.
type Repository interface {
	Dialect

	// Exec runs a single statement.
	Exec(ctx context.Context, sql string) error
	// ExecTx runs statements in one transaction; any failure rolls back.
	ExecTx(ctx context.Context, stmts ...string) error
	// CopyFrom bulk-inserts rows aligned to columns into table and returns
	// the number of rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Close()
}

// Config selects and configures a backend. DSN, when set, wins over the
// individual connection fields.
type Config struct {
	Kind     string
	DSN      string
	User     string
	Password string
	Host     string
	Port     int
	Database string
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. A later registration for
// the same kind replaces the earlier one.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, apperr.Config("warehouse.New", "unsupported warehouse kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, apperr.Publish("warehouse.New", fmt.Sprintf("open %s warehouse", cfg.Kind), err)
	}
	return repo, nil
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
