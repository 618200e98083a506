// Package customfilter parses openIMIS custom filters and turns them into
// goqu conditions. A custom filter has the form
//
//	<field>__<lookup>__<type>=<value>
//
// where field may itself contain "__" to reach a related column, lookup is
// one of exact, iexact, istartswith, icontains, lt, lte, gt, gte and type is
// one of string, integer, decimal, boolean, date.
package customfilter

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"imisexport/internal/apperr"
)

const op = "customfilter"

// Lookups.
const (
	Exact       = "exact"
	IExact      = "iexact"
	IStartsWith = "istartswith"
	IContains   = "icontains"
	Lt          = "lt"
	Lte         = "lte"
	Gt          = "gt"
	Gte         = "gte"
)

// Value types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeDecimal = "decimal"
	TypeBoolean = "boolean"
	TypeDate    = "date"
)

// DateLayout is the accepted format of date values.
const DateLayout = "2006-01-02"

// Filter is one parsed custom filter.
type Filter struct {
	Field  string
	Lookup string
	Type   string
	Value  any
}

// Parse splits and type-converts a custom filter. Malformed filters are
// format errors.
func Parse(s string) (Filter, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Filter{}, apperr.Format(op, "custom filter %q has no value", s)
	}
	parts := strings.Split(strings.TrimSpace(key), "__")
	if len(parts) < 3 {
		return Filter{}, apperr.Format(op, "custom filter %q is not <field>__<lookup>__<type>", s)
	}
	f := Filter{
		Field:  strings.Join(parts[:len(parts)-2], "__"),
		Lookup: parts[len(parts)-2],
		Type:   parts[len(parts)-1],
	}
	if f.Field == "" {
		return Filter{}, apperr.Format(op, "custom filter %q has an empty field", s)
	}

	v, err := convert(f.Type, raw)
	if err != nil {
		return Filter{}, err
	}
	f.Value = v

	switch f.Lookup {
	case Exact, Lt, Lte, Gt, Gte:
	case IExact, IStartsWith, IContains:
		if f.Type != TypeString {
			return Filter{}, apperr.Format(op, "lookup %s needs a string value, got %s", f.Lookup, f.Type)
		}
	default:
		return Filter{}, apperr.Format(op, "unknown lookup %q", f.Lookup)
	}
	return f, nil
}

func convert(typ, raw string) (any, error) {
	switch typ {
	case TypeString:
		return raw, nil
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, apperr.Format(op, "%q is not an integer", raw)
		}
		return n, nil
	case TypeDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, apperr.Format(op, "%q is not a decimal", raw)
		}
		return f, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, apperr.Format(op, "%q is not a boolean", raw)
		}
		return b, nil
	case TypeDate:
		d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
		if err != nil {
			return nil, apperr.Format(op, "%q is not a date (YYYY-MM-DD)", raw)
		}
		return d, nil
	}
	return nil, apperr.Format(op, "unknown value type %q", typ)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Wizard applies custom filters to queries of one exportable type. Only the
// fields it maps can be filtered on.
type Wizard struct {
	columns map[string]exp.IdentifierExpression
}

// New returns a Wizard over field → column identifiers.
func New(columns map[string]exp.IdentifierExpression) *Wizard {
	return &Wizard{columns: columns}
}

// Fields lists the filterable fields.
func (w *Wizard) Fields() []string {
	out := make([]string, 0, len(w.columns))
	for k := range w.columns {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Expression renders one filter.
func (w *Wizard) Expression(f Filter) (exp.Expression, error) {
	col, ok := w.columns[f.Field]
	if !ok {
		return nil, apperr.Format(op, "field %q cannot be filtered", f.Field)
	}
	switch f.Lookup {
	case Exact:
		return col.Eq(f.Value), nil
	case Lt:
		return col.Lt(f.Value), nil
	case Lte:
		return col.Lte(f.Value), nil
	case Gt:
		return col.Gt(f.Value), nil
	case Gte:
		return col.Gte(f.Value), nil
	}

	s := likeEscaper.Replace(f.Value.(string))
	switch f.Lookup {
	case IExact:
		return col.ILike(s), nil
	case IStartsWith:
		return col.ILike(s + "%"), nil
	case IContains:
		return col.ILike("%" + s + "%"), nil
	}
	return nil, apperr.Format(op, "unknown lookup %q", f.Lookup)
}

// Apply parses every filter and ANDs them onto ds.
func (w *Wizard) Apply(ds *goqu.SelectDataset, filters []string) (*goqu.SelectDataset, error) {
	conds := make([]exp.Expression, 0, len(filters))
	for _, s := range filters {
		f, err := Parse(s)
		if err != nil {
			return nil, err
		}
		e, err := w.Expression(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, e)
	}
	if len(conds) == 0 {
		return ds, nil
	}
	return ds.Where(conds...), nil
}
