package warehouse

import (
	"context"
	"errors"
	"strings"
	"sync"

	"imisexport/internal/ddl"
)

// fakeRepo keeps tables in memory and understands only the statements its
// own dialect renders.
type fakeRepo struct {
	mu      sync.Mutex
	stmts   []string
	tables  map[string][][]any
	columns map[string][]string

	failCopyAfter int // fail the CopyFrom call after this many rows (0 = never)
	failTx        error
	copied        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tables: map[string][][]any{}, columns: map[string][]string{}}
}

func (f *fakeRepo) QuoteIdent(name string) string { return "<" + name + ">" }
func (f *fakeRepo) MapType(k ddl.Kind) string     { return strings.ToUpper(k.String()) }
func (f *fakeRepo) DropTable(t string) string     { return "DROP " + t }
func (f *fakeRepo) RenameTable(a, b string) string {
	return "RENAME " + a + " TO " + b
}

func (f *fakeRepo) apply(stmt string) {
	f.stmts = append(f.stmts, stmt)
	switch {
	case strings.HasPrefix(stmt, "DROP "):
		delete(f.tables, strings.TrimPrefix(stmt, "DROP "))
	case strings.HasPrefix(stmt, "RENAME "):
		from, to, _ := strings.Cut(strings.TrimPrefix(stmt, "RENAME "), " TO ")
		f.tables[to] = f.tables[from]
		delete(f.tables, from)
	case strings.HasPrefix(stmt, "CREATE TABLE <"):
		name := strings.TrimPrefix(stmt, "CREATE TABLE <")
		name = name[:strings.Index(name, ">")]
		f.tables[name] = [][]any{}
	}
}

func (f *fakeRepo) Exec(_ context.Context, stmt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apply(stmt)
	return nil
}

func (f *fakeRepo) ExecTx(_ context.Context, stmts ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTx != nil {
		return f.failTx
	}
	for _, s := range stmts {
		f.apply(s)
	}
	return nil
}

func (f *fakeRepo) CopyFrom(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[table]; !ok {
		return 0, errors.New("no such table " + table)
	}
	var n int64
	for _, r := range rows {
		if f.failCopyAfter > 0 && f.copied >= f.failCopyAfter {
			return n, errors.New("disk full")
		}
		f.tables[table] = append(f.tables[table], append([]any(nil), r...))
		f.columns[table] = columns
		f.copied++
		n++
	}
	return n, nil
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) has(table string) bool {
	_, ok := f.tables[table]
	return ok
}

type memSource struct {
	header  []string
	records [][]string
}

func (m memSource) Header() []string { return m.header }

func (m memSource) Scan(fn func([]string) error) error {
	for _, r := range m.records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
