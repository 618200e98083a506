// Package export writes ad-hoc CSV exports of registered queries. Each
// exportable type is declared once as a Field; a request names the field,
// the columns it wants and optional filters, and gets back the name of a
// CSV file in the export directory.
package export

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"imisexport/internal/apperr"
)

// CustomFilterWizard turns custom filter strings into conditions on ds.
type CustomFilterWizard interface {
	Apply(ds *goqu.SelectDataset, filters []string) (*goqu.SelectDataset, error)
}

// Field declares one exportable type.
type Field struct {
	// Name is the snake_case export name, e.g. "insurees".
	Name string
	// Base returns the unfiltered query without a SELECT list.
	Base func() *goqu.SelectDataset
	// Columns maps exportable column names to source columns.
	Columns map[string]exp.IdentifierExpression
	// FilterFields are the columns accepted as plain equality filters.
	FilterFields []string
	// Patches run in order on the fetched table before it is written.
	Patches []Patch
	// Wizard handles custom filters; nil rejects them.
	Wizard CustomFilterWizard
}

func (f Field) filterable(name string) bool {
	for _, n := range f.FilterFields {
		if n == name {
			return true
		}
	}
	return false
}

// Registry holds the exportable fields.
type Registry struct {
	mu     sync.RWMutex
	fields map[string]Field
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fields: map[string]Field{}}
}

// Register adds f. Names are normalized with AdjustNotation.
func (r *Registry) Register(f Field) error {
	name := AdjustNotation(f.Name)
	if name == "" || f.Base == nil || len(f.Columns) == 0 {
		return apperr.Config("export.Register", "field %q needs a name, a base query and columns", f.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.fields[name]; dup {
		return apperr.Config("export.Register", "field %q registered twice", name)
	}
	f.Name = name
	r.fields[name] = f
	return nil
}

// MustRegister is Register for package-level setup.
func (r *Registry) MustRegister(fields ...Field) *Registry {
	for _, f := range fields {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the field for a name in either GraphQL or snake notation.
func (r *Registry) Lookup(name string) (Field, error) {
	key := AdjustNotation(name)
	r.mu.RLock()
	f, ok := r.fields[key]
	r.mu.RUnlock()
	if !ok {
		return Field{}, apperr.Config("export.Lookup", "field %s is not being exported", name)
	}
	return f, nil
}

// Names lists registered fields.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fields))
	for k := range r.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	capWord    = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// AdjustNotation converts a GraphQL field path to its column name:
// "." becomes "__" and camelCase becomes snake_case, so
// "familyHead.lastName" is "family_head__last_name".
func AdjustNotation(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "__")
	s = capWord.ReplaceAllString(s, "${1}_${2}")
	s = lowerUpper.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
