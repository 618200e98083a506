package ddl

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DateLayout is the only date form the materializer writes.
const DateLayout = "2006-01-02"

// IDColumn is the surrogate row-number column prepended to every table.
const IDColumn = "id"

// Inferrer folds CSV records into per-column kinds.
//
// Empty cells are nulls and never change a column's kind. The first
// non-empty cell sets the kind; later cells may widen it: integer cells in
// a float column keep it float, a float cell widens an integer column, and
// any other disagreement widens to text. A column that never sees a value
// ends up text.
type Inferrer struct {
	header []string
	kinds  []Kind
	nulls  []bool
	rows   int64
}

// NewInferrer starts inference for the given header.
func NewInferrer(header []string) *Inferrer {
	return &Inferrer{
		header: append([]string(nil), header...),
		kinds:  make([]Kind, len(header)),
		nulls:  make([]bool, len(header)),
	}
}

// Observe folds one record in.
func (in *Inferrer) Observe(record []string) error {
	if len(record) != len(in.header) {
		return fmt.Errorf("ddl: record %d has %d fields, header has %d", in.rows+1, len(record), len(in.header))
	}
	in.rows++
	for i, cell := range record {
		if cell == "" {
			in.nulls[i] = true
			continue
		}
		in.kinds[i] = widen(in.kinds[i], classify(cell))
	}
	return nil
}

// Rows is the number of records observed.
func (in *Inferrer) Rows() int64 { return in.rows }

// Table returns the inferred definition for table fqn, with the surrogate
// id column first.
func (in *Inferrer) Table(fqn string) TableDef {
	cols := make([]ColumnDef, 0, len(in.header)+1)
	cols = append(cols, ColumnDef{Name: IDColumn, Kind: KindInteger, PrimaryKey: true})
	for i, name := range in.header {
		k := in.kinds[i]
		if k == KindNull {
			k = KindText
		}
		cols = append(cols, ColumnDef{Name: name, Kind: k, Nullable: in.nulls[i] || in.rows == 0})
	}
	return TableDef{FQN: fqn, Columns: cols}
}

func classify(cell string) Kind {
	switch cell {
	case "True", "False":
		return KindBoolean
	}
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return KindInteger
	}
	// ParseFloat also accepts NaN and Inf spellings, which are words here.
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return KindFloat
	}
	if len(cell) == len(DateLayout) {
		if _, err := time.Parse(DateLayout, cell); err == nil {
			return KindDate
		}
	}
	return KindText
}

func widen(have, seen Kind) Kind {
	switch {
	case have == KindNull || have == seen:
		return seen
	case (have == KindInteger && seen == KindFloat) || (have == KindFloat && seen == KindInteger):
		return KindFloat
	default:
		return KindText
	}
}

// Parse converts a CSV cell to a typed value for kind k. Empty cells are
// nil. Dates become midnight UTC time.Time values.
func Parse(k Kind, cell string) (any, error) {
	if cell == "" {
		return nil, nil
	}
	switch k {
	case KindInteger:
		return strconv.ParseInt(cell, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(cell, 64)
	case KindBoolean:
		return cell == "True", nil
	case KindDate:
		return time.Parse(DateLayout, cell)
	default:
		return cell, nil
	}
}

// Converter turns CSV records into typed rows for one table definition,
// prepending the 0-based surrogate id.
type Converter struct {
	kinds []Kind
	next  int64
}

// NewConverter builds a Converter for t, whose first column must be the
// surrogate id.
func NewConverter(t TableDef) (*Converter, error) {
	if len(t.Columns) == 0 || t.Columns[0].Name != IDColumn {
		return nil, fmt.Errorf("ddl: table %s has no leading %q column", t.FQN, IDColumn)
	}
	kinds := make([]Kind, len(t.Columns)-1)
	for i, c := range t.Columns[1:] {
		kinds[i] = c.Kind
	}
	return &Converter{kinds: kinds}, nil
}

// Row converts one record. The returned slice is freshly allocated.
func (c *Converter) Row(record []string) ([]any, error) {
	if len(record) != len(c.kinds) {
		return nil, fmt.Errorf("ddl: record has %d fields, want %d", len(record), len(c.kinds))
	}
	out := make([]any, 0, len(record)+1)
	out = append(out, c.next)
	for i, cell := range record {
		v, err := Parse(c.kinds[i], cell)
		if err != nil {
			return nil, fmt.Errorf("ddl: row %d column %d: %w", c.next, i+1, err)
		}
		out = append(out, v)
	}
	c.next++
	return out, nil
}
