package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imisexport/internal/apperr"
	"imisexport/internal/ddl"
)

func sample() memSource {
	return memSource{
		header: []string{"Region", "Amount", "Date"},
		records: [][]string{
			{"Ikeja", "10.0", "2024-01-10"},
			{"Unknown", "0.0", ""},
			{"Lagos", "25.5", "2024-02-01"},
		},
	}
}

func publisher(repo Repository, s Strategy, batch int) *Publisher {
	p := NewPublisher(repo, s, batch)
	p.Logger = zerolog.Nop()
	return p
}

func TestPublishSwap(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.tables["enrollments"] = [][]any{{int64(0), "stale"}}

	res, err := publisher(repo, StrategySwap, 2).Publish(context.Background(), "enrollments", sample())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, StrategySwap, res.Strategy)

	require.Len(t, res.Columns, 4)
	assert.Equal(t, "id", res.Columns[0].Name)
	assert.Equal(t, "INTEGER", res.Columns[0].SQLType)
	assert.Equal(t, "FLOAT", res.Columns[2].SQLType)
	assert.Equal(t, "DATE", res.Columns[3].SQLType)

	assert.False(t, repo.has("enrollments"+StagingSuffix))
	got := repo.tables["enrollments"]
	require.Len(t, got, 3)
	assert.Equal(t, []any{int64(0), "Ikeja", 10.0, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}, got[0])
	assert.Equal(t, []any{int64(1), "Unknown", 0.0, nil}, got[1])
	assert.Equal(t, int64(2), got[2][0])
	assert.Equal(t, []string{"id", "Region", "Amount", "Date"}, repo.columns["enrollments"])

	// Destination dropped and staging renamed as the last two statements.
	n := len(repo.stmts)
	assert.Equal(t, []string{"DROP enrollments", "RENAME enrollments__staging TO enrollments"}, repo.stmts[n-2:])
}

func TestPublishSwapLoadFailureKeepsOldTable(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.tables["bills"] = [][]any{{int64(0), "previous run"}}
	repo.failCopyAfter = 2

	_, err := publisher(repo, StrategySwap, 2).Publish(context.Background(), "bills", sample())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPublish))

	assert.Equal(t, [][]any{{int64(0), "previous run"}}, repo.tables["bills"])
	assert.False(t, repo.has("bills"+StagingSuffix), "staging dropped after failure")
}

func TestPublishSwapTxFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.tables["bills"] = [][]any{}
	repo.failTx = errors.New("lock timeout")

	_, err := publisher(repo, StrategySwap, 10).Publish(context.Background(), "bills", sample())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPublish))
	assert.Contains(t, err.Error(), "lock timeout")
	assert.True(t, repo.has("bills"))
}

func TestPublishReplace(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.tables["payments"] = [][]any{{int64(0), "stale"}}

	res, err := publisher(repo, StrategyReplace, 10).Publish(context.Background(), "payments", sample())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows)
	assert.Len(t, repo.tables["payments"], 3)
	assert.Equal(t, "DROP payments", repo.stmts[0])
	for _, s := range repo.stmts {
		assert.NotContains(t, s, StagingSuffix)
	}
}

func TestPublishReplaceFailureIsTorn(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.failCopyAfter = 1

	_, err := publisher(repo, StrategyReplace, 1).Publish(context.Background(), "payments", sample())
	require.Error(t, err)
	assert.Len(t, repo.tables["payments"], 1)
}

func TestPublishEmptyDataset(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	res, err := publisher(repo, StrategySwap, 10).Publish(context.Background(), "population",
		memSource{header: []string{"Insuree LGA", "Insuree Age"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Rows)
	assert.True(t, repo.has("population"))
	for _, c := range res.Columns[1:] {
		assert.Equal(t, ddl.KindText, c.Kind)
	}
}

func TestPublishUnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := publisher(newFakeRepo(), "merge", 10).Publish(context.Background(), "t", sample())
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestPublishConversionError(t *testing.T) {
	t.Parallel()

	// A scan that changes between the inference pass and the load pass.
	calls := 0
	src := scanFunc{header: []string{"n"}, scan: func(fn func([]string) error) error {
		calls++
		if calls == 1 {
			return fn([]string{"1"})
		}
		return fn([]string{"not a number"})
	}}
	repo := newFakeRepo()
	_, err := publisher(repo, StrategySwap, 10).Publish(context.Background(), "t", src)
	require.Error(t, err)
	assert.False(t, repo.has("t"))
}

type scanFunc struct {
	header []string
	scan   func(func([]string) error) error
}

func (s scanFunc) Header() []string                   { return s.header }
func (s scanFunc) Scan(fn func([]string) error) error { return s.scan(fn) }
