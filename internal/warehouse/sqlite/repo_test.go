package sqlite

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imisexport/internal/dataset"
	"imisexport/internal/ddl"
	"imisexport/internal/materialize"
	"imisexport/internal/warehouse"
)

func openMemory(t *testing.T) (*Repository, warehouse.Repository) {
	t.Helper()
	r, repo, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return r, repo
}

func TestNewRepositoryRequiresDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{})
	assert.Error(t, err)
}

func TestDialect(t *testing.T) {
	t.Parallel()

	var r Repository
	assert.Equal(t, `"openimis-dataset-bills"`, r.QuoteIdent("openimis-dataset-bills"))
	assert.Equal(t, "INTEGER", r.MapType(ddl.KindBoolean))
	assert.Equal(t, "REAL", r.MapType(ddl.KindFloat))
	assert.Equal(t, "TEXT", r.MapType(ddl.KindDate))
}

func TestCopyFromAndExecTx(t *testing.T) {
	t.Parallel()

	r, repo := openMemory(t)
	ctx := context.Background()

	require.NoError(t, repo.Exec(ctx, `CREATE TABLE "a b" ("id" INTEGER, "v" TEXT)`))
	n, err := repo.CopyFrom(ctx, "a b", []string{"id", "v"}, [][]any{{int64(0), "x"}, {int64(1), nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.CopyFrom(ctx, "a b", []string{"id", "v"}, [][]any{{int64(2)}})
	assert.Error(t, err)

	// A failing statement rolls back the whole transaction.
	err = repo.ExecTx(ctx, repo.RenameTable("a b", "c"), "SELECT * FROM missing")
	require.Error(t, err)
	var count int
	require.NoError(t, r.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM "a b"`).Scan(&count))
	assert.Equal(t, 2, count)
}

func materialized(t *testing.T, header []string, rows ...dataset.Row) *materialize.Dataset {
	t.Helper()
	ds, err := materialize.New(t.TempDir(), "it", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	require.NoError(t, ds.Append(rows...))
	_, err = ds.Finalize()
	require.NoError(t, err)
	return ds
}

func TestPublishEnrollmentsEndToEnd(t *testing.T) {
	t.Parallel()

	r, repo := openMemory(t)
	ctx := context.Background()
	pub := warehouse.NewPublisher(repo, warehouse.StrategySwap, 2)
	pub.Logger = zerolog.Nop()

	first := materialized(t, dataset.HeaderEnrollments,
		dataset.Row{"General Hospital", "Ikeja", "PRD1 - Basic", dataset.Date{Year: 2024, Month: 1, Day: 10}, int64(44), "Male", "Informal", 10.0, "Active"},
		dataset.Row{"Unknown", "Unknown", "PRD2 - Family", nil, nil, "Unknown", "Informal", 0.0, "Idle"},
		dataset.Row{"General Hospital", "Ikeja", "PRD1 - Basic", dataset.Date{Year: 2024, Month: 2, Day: 1}, int64(23), "Female", "Formal", 25.5, "Expired"},
	)
	res, err := pub.Publish(ctx, dataset.TableEnrollments, first)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows)

	type row struct {
		id     int64
		date   *string
		age    *int64
		amount float64
		status string
	}
	read := func() []row {
		rs, err := r.DB().QueryContext(ctx, `SELECT "id", "Enrollment Date", "Insuree Age", "Payment Amount", "Policy Status" FROM "openimis-dataset-enrollments" ORDER BY "id"`)
		require.NoError(t, err)
		defer rs.Close()
		var out []row
		for rs.Next() {
			var x row
			require.NoError(t, rs.Scan(&x.id, &x.date, &x.age, &x.amount, &x.status))
			out = append(out, x)
		}
		require.NoError(t, rs.Err())
		return out
	}

	got := read()
	require.Len(t, got, 3)
	assert.Equal(t, []int64{0, 1, 2}, []int64{got[0].id, got[1].id, got[2].id})
	require.NotNil(t, got[0].date)
	assert.Equal(t, "2024-01-10", *got[0].date)
	assert.Nil(t, got[1].date)
	assert.Nil(t, got[1].age)
	assert.Equal(t, 25.5, got[2].amount)
	assert.Equal(t, []string{"Active", "Idle", "Expired"}, []string{got[0].status, got[1].status, got[2].status})

	// A second run fully replaces the table and leaves no staging table.
	second := materialized(t, dataset.HeaderEnrollments,
		dataset.Row{"General Hospital", "Ikeja", "PRD1 - Basic", nil, nil, "Male", "Formal", 5.0, "Active"},
	)
	_, err = pub.Publish(ctx, dataset.TableEnrollments, second)
	require.NoError(t, err)
	assert.Len(t, read(), 1)

	var staging int
	require.NoError(t, r.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, dataset.TableEnrollments+warehouse.StagingSuffix).Scan(&staging))
	assert.Zero(t, staging)
}
