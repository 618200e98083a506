package dimension

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imisexport/internal/apperr"
	"imisexport/internal/codes"
	"imisexport/internal/source"
	"imisexport/internal/source/sourcetest"
)

func i64(v int64) *int64 { return &v }

func fixture() *sourcetest.Fake {
	return &sourcetest.Fake{
		DistrictRows: []source.Location{
			{ID: 10, Name: "Ikeja"},
			{ID: 11, Name: "Epe"},
		},
		VillageRows: []source.Village{
			{ID: 100, DistrictID: i64(10)},
			{ID: 101, DistrictID: i64(11)},
		},
		FacilityRows: []source.Facility{
			{ID: 1, Name: "General Hospital", LocationID: 10},
			{ID: 2, Name: "Epe Clinic", LocationID: 11},
		},
		OfficerRows: []source.Officer{
			{ID: 50, FacilityID: 2},
		},
		ProductRows: []source.Product{
			{ID: 7, Code: "PRD1", Name: "Basic Cover"},
		},
		DiagnosisRows: []source.Diagnosis{
			{ID: 3, Name: "Malaria"},
		},
		BatchRunRows: []source.BatchRun{
			{ID: 9, Year: 2024, Month: 3},
		},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	src := fixture()
	m, err := Resolve(context.Background(), src, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, Facility{Name: "General Hospital", Region: "Ikeja"}, m.Facility(1))
	assert.Equal(t, Facility{Name: "Epe Clinic", Region: "Epe"}, m.Officer(i64(50)))
	assert.Equal(t, "Epe", m.Village(i64(101)))
	assert.Equal(t, "Basic Cover", m.Product(7))
	assert.Equal(t, "Basic Cover", m.ProductByCode("PRD1"))
	assert.Equal(t, "Malaria", m.Diagnosis(3))

	br, ok := m.BatchRun(9)
	require.True(t, ok)
	assert.Equal(t, BatchRun{Year: 2024, Month: 3}, br)

	for _, name := range []string{"Districts", "Villages", "Facilities", "Officers", "Products", "Diagnoses", "BatchRuns"} {
		assert.Equal(t, 1, src.CallCount(name), name)
	}
	assert.Zero(t, src.CallCount("FacilitiesByID"), "all officers are on live facilities")
}

func TestResolveOfficerOfRetiredFacility(t *testing.T) {
	t.Parallel()

	src := fixture()
	src.OfficerRows = append(src.OfficerRows,
		source.Officer{ID: 51, FacilityID: 3},
		source.Officer{ID: 52, FacilityID: 3},
	)
	src.RetiredRows = []source.Facility{{ID: 3, Name: "Old Ikeja Dispensary", LocationID: 10}}

	m, err := Resolve(context.Background(), src, zerolog.Nop())
	require.NoError(t, err)

	want := Facility{Name: "Old Ikeja Dispensary", Region: "Ikeja"}
	assert.Equal(t, want, m.Officer(i64(51)))
	assert.Equal(t, want, m.Officer(i64(52)))
	assert.Equal(t, Facility{Name: "Epe Clinic", Region: "Epe"}, m.Officer(i64(50)))
	assert.Equal(t, 1, src.CallCount("FacilitiesByID"))

	// Retired facilities only serve officer lookups.
	assert.Equal(t, Facility{Name: codes.Unknown, Region: codes.Unknown}, m.Facility(3))
}

func TestResolveLogsThroughGivenLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("run_id", "r1").Logger()
	_, err := Resolve(context.Background(), fixture(), logger)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"message":"dimensions resolved"`)
	assert.Contains(t, buf.String(), `"run_id":"r1"`)
}

func TestLookupMissesAreUnknown(t *testing.T) {
	t.Parallel()

	m, err := Resolve(context.Background(), fixture(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, Facility{Name: codes.Unknown, Region: codes.Unknown}, m.Facility(999))
	assert.Equal(t, Facility{Name: codes.Unknown, Region: codes.Unknown}, m.Officer(nil))
	assert.Equal(t, Facility{Name: codes.Unknown, Region: codes.Unknown}, m.Officer(i64(999)))
	assert.Equal(t, codes.Unknown, m.Village(nil))
	assert.Equal(t, codes.Unknown, m.Village(i64(999)))
	assert.Equal(t, codes.Unknown, m.Product(999))
	assert.Equal(t, codes.Unknown, m.ProductByCode("NOPE"))
	assert.Equal(t, codes.Unknown, m.Diagnosis(999))
	_, ok := m.BatchRun(999)
	assert.False(t, ok)
}

func TestResolveIntegrityErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(f *sourcetest.Fake)
		want   string
	}{
		{
			name:   "facility outside any district",
			mutate: func(f *sourcetest.Fake) { f.FacilityRows[0].LocationID = 77 },
			want:   "health facility 1 references location 77",
		},
		{
			name:   "officer of unknown facility",
			mutate: func(f *sourcetest.Fake) { f.OfficerRows[0].FacilityID = 88 },
			want:   "user 50 references health facility 88",
		},
		{
			name: "retired facility outside any district",
			mutate: func(f *sourcetest.Fake) {
				f.OfficerRows[0].FacilityID = 3
				f.RetiredRows = []source.Facility{{ID: 3, Name: "Old", LocationID: 77}}
			},
			want: "health facility 3 references location 77",
		},
		{
			name:   "village without grandparent",
			mutate: func(f *sourcetest.Fake) { f.VillageRows[0].DistrictID = nil },
			want:   "village 100 has no grandparent",
		},
		{
			name:   "village under unknown district",
			mutate: func(f *sourcetest.Fake) { f.VillageRows[1].DistrictID = i64(66) },
			want:   "village 101 resolves to location 66",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := fixture()
			tt.mutate(src)
			_, err := Resolve(context.Background(), src, zerolog.Nop())
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindIntegrity))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolvePropagatesQueryError(t *testing.T) {
	t.Parallel()

	src := fixture()
	src.Err = errors.New("connection refused")
	_, err := Resolve(context.Background(), src, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
