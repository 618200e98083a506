package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imisexport/internal/apperr"
	"imisexport/internal/dataset"
	"imisexport/internal/materialize"
)

// Querier runs a read query.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Request describes one export.
type Request struct {
	// Field is the exportable type, e.g. "insurees".
	Field string `json:"field"`
	// Fields are the columns to export, in GraphQL or snake notation.
	Fields []string `json:"fields"`
	// Columns maps a field to its CSV header label.
	Columns map[string]string `json:"fields_columns"`
	// Filters are equality filters on the field's FilterFields.
	Filters map[string]any `json:"filters"`
	// CustomFilters are custom filter strings handed to the field's wizard.
	CustomFilters []string `json:"custom_filters"`
}

// Exporter runs requests against a source database.
type Exporter struct {
	Registry *Registry
	DB       Querier
	// Dialect is the goqu dialect of DB.
	Dialect string
	// Dir receives the CSV files.
	Dir    string
	Logger zerolog.Logger
}

// New returns an Exporter logging through the global logger.
func New(reg *Registry, db Querier, dialect, dir string) *Exporter {
	return &Exporter{
		Registry: reg,
		DB:       db,
		Dialect:  dialect,
		Dir:      dir,
		Logger:   log.With().Str("component", "export").Logger(),
	}
}

// Query builds the SELECT for req without running it.
func (e *Exporter) Query(req Request) (Field, []string, *goqu.SelectDataset, error) {
	f, err := e.Registry.Lookup(req.Field)
	if err != nil {
		return Field{}, nil, nil, err
	}
	if len(req.Fields) == 0 {
		return f, nil, nil, apperr.Config("export.Query", "no fields requested for %s", f.Name)
	}

	cols := make([]string, 0, len(req.Fields))
	sel := make([]any, 0, len(req.Fields))
	for _, raw := range req.Fields {
		name := AdjustNotation(raw)
		id, ok := f.Columns[name]
		if !ok {
			return f, nil, nil, apperr.Config("export.Query", "field %s of %s cannot be exported", raw, f.Name)
		}
		cols = append(cols, name)
		sel = append(sel, id.As(name))
	}

	ds := f.Base().WithDialect(e.Dialect).Select(sel...)

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, raw := range keys {
		name := AdjustNotation(raw)
		id, ok := f.Columns[name]
		if !ok || !f.filterable(name) {
			return f, nil, nil, apperr.Config("export.Query", "%s cannot be filtered on %s", f.Name, raw)
		}
		ds = ds.Where(id.Eq(req.Filters[raw]))
	}

	if len(req.CustomFilters) > 0 {
		if f.Wizard == nil {
			return f, nil, nil, apperr.Config("export.Query",
				"%s does not declare a custom filter wizard; custom filters cannot be applied", f.Name)
		}
		if ds, err = f.Wizard.Apply(ds, req.CustomFilters); err != nil {
			return f, nil, nil, err
		}
	}
	return f, cols, ds, nil
}

// Export runs req and writes the result to a new CSV file, returning its
// name relative to Dir.
func (e *Exporter) Export(ctx context.Context, user string, req Request) (string, error) {
	start := time.Now()
	f, cols, ds, err := e.Query(req)
	if err != nil {
		return "", err
	}

	table, err := e.fetch(ctx, cols, ds)
	if err != nil {
		return "", err
	}
	for _, p := range f.Patches {
		if err := p(table); err != nil {
			return "", apperr.Internal("export.Export", "patch "+f.Name, err)
		}
	}

	header := make([]string, len(cols))
	labels := make(map[string]string, len(req.Columns))
	for k, v := range req.Columns {
		labels[AdjustNotation(k)] = v
	}
	for i, c := range cols {
		header[i] = c
		if l, ok := labels[c]; ok && l != "" {
			header[i] = l
		}
	}

	name := fmt.Sprintf("%s-%s.csv", f.Name, uuid.NewString())
	if err := e.write(name, header, table); err != nil {
		return "", err
	}

	e.Logger.Info().
		Str("user", user).
		Str("field", f.Name).
		Int("rows", len(table.Rows)).
		Str("file", name).
		Dur("took", time.Since(start)).
		Msg("csv export written")
	return name, nil
}

func (e *Exporter) fetch(ctx context.Context, cols []string, ds *goqu.SelectDataset) (*Table, error) {
	stmt, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperr.Internal("export.fetch", "build query", err)
	}
	rows, err := e.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, apperr.Internal("export.fetch", "query", err)
	}
	defer rows.Close()

	t := &Table{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.Internal("export.fetch", "scan", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("export.fetch", "rows", err)
	}
	return t, nil
}

func (e *Exporter) write(name string, header []string, t *Table) (err error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return apperr.Internal("export.write", "export dir", err)
	}
	path := filepath.Join(e.Dir, name)
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return apperr.Internal("export.write", "create", err)
	}
	defer func() {
		if cerr := fh.Close(); err == nil && cerr != nil {
			err = apperr.Internal("export.write", "close", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w, err := materialize.NewWriter(fh, header)
	if err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := w.Append(dataset.Row(r)); err != nil {
			return err
		}
	}
	_, err = w.Flush()
	return err
}

// Path resolves an export file name returned by Export. Anything that is
// not a plain .csv name in Dir is not found.
func (e *Exporter) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".csv") || strings.HasPrefix(name, ".") {
		return "", apperr.NotFound("export.Path", "export %q not found", name)
	}
	path := filepath.Join(e.Dir, name)
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return "", apperr.NotFound("export.Path", "export %q not found", name)
	}
	return path, nil
}
