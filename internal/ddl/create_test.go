package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	dq := func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

	tests := []struct {
		name        string
		def         TableDef
		quote       Quoter
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:    "verbatim identifiers",
			def:     TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id", SQLType: "INT", Nullable: true}}},
			wantSQL: "CREATE TABLE t (\n  id INT\n);",
		},
		{
			name: "quoted identifiers with primary key and default",
			def: TableDef{FQN: "openimis-dataset-bills", Columns: []ColumnDef{
				{Name: "id", SQLType: "BIGINT", Nullable: true, PrimaryKey: true},
				{Name: "Bill \"Year\"", SQLType: "TEXT", Nullable: true},
				{Name: "Amount", SQLType: "DOUBLE PRECISION", Default: "0"},
			}},
			quote: dq,
			wantSQL: "CREATE TABLE \"openimis-dataset-bills\" (\n" +
				"  \"id\" BIGINT NOT NULL,\n" +
				"  \"Bill \"\"Year\"\"\" TEXT,\n" +
				"  \"Amount\" DOUBLE PRECISION NOT NULL DEFAULT 0,\n" +
				"  PRIMARY KEY (\"id\")\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildCreateTableSQL(tt.def, tt.quote)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
		})
	}
}

func TestTableDefHelpers(t *testing.T) {
	t.Parallel()

	td := TableDef{FQN: "a", Columns: []ColumnDef{{Name: "id", Kind: KindInteger}, {Name: "x", Kind: KindDate}}}
	typed := td.WithTypes(func(k Kind) string { return strings.ToUpper(k.String()) })
	assert.Equal(t, "INTEGER", typed.Columns[0].SQLType)
	assert.Equal(t, "DATE", typed.Columns[1].SQLType)
	assert.Empty(t, td.Columns[0].SQLType, "original untouched")

	renamed := typed.Rename("a__staging")
	assert.Equal(t, "a__staging", renamed.FQN)
	assert.Equal(t, []string{"id", "x"}, renamed.Names())
}
