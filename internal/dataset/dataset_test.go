package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imisexport/internal/apperr"
	"imisexport/internal/codes"
	"imisexport/internal/dimension"
	"imisexport/internal/source"
	"imisexport/internal/source/sourcetest"
)

func i64(v int64) *int64        { return &v }
func sp(v string) *string       { return &v }
func fp(v float64) *float64     { return &v }
func bp(v bool) *bool           { return &v }
func ip(v int) *int             { return &v }
func day(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }
func dp(y, m, d int) *time.Time { t := day(y, m, d); return &t }

var now = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func maps() *dimension.Maps {
	return &dimension.Maps{
		Districts:      map[int64]string{10: "Ikeja"},
		Facilities:     map[int64]dimension.Facility{1: {Name: "General Hospital", Region: "Ikeja"}},
		Officers:       map[int64]dimension.Facility{50: {Name: "General Hospital", Region: "Ikeja"}},
		Villages:       map[int64]string{100: "Ikeja"},
		ProductsByID:   map[int64]string{7: "Basic Cover", 8: "Family Cover"},
		ProductsByCode: map[string]string{"PRD1": "Basic Cover"},
		Diagnoses:      map[int64]string{3: "Malaria"},
		BatchRuns:      map[int64]dimension.BatchRun{9: {Year: 2024, Month: 3}},
	}
}

func collect(t *testing.T, spec Spec, src source.FactSource, pageSize int) ([]Row, []Skip) {
	t.Helper()
	var (
		rows  []Row
		skips []Skip
	)
	err := spec.Extract(context.Background(), Env{Source: src, Maps: maps(), Now: now, PageSize: pageSize}, func(b Batch) error {
		rows = append(rows, b.Rows...)
		skips = append(skips, b.Skipped...)
		return nil
	})
	require.NoError(t, err)
	for _, r := range rows {
		require.Len(t, r, len(spec.Header))
	}
	return rows, skips
}

func spec(t *testing.T, name string) Spec {
	t.Helper()
	s, err := Select(name)
	require.NoError(t, err)
	require.Len(t, s, 1)
	return s[0]
}

func TestAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dob  *time.Time
		at   time.Time
		want any
	}{
		{"no dob", nil, now, nil},
		{"birthday passed", dp(1990, 1, 1), now, int64(35)},
		{"birthday today", dp(1990, 6, 15), now, int64(35)},
		{"birthday tomorrow", dp(1990, 6, 16), now, int64(34)},
		{"later month", dp(1990, 7, 1), now, int64(34)},
		{"newborn", dp(2025, 6, 1), now, int64(0)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Age(tt.dob, tt.at), tt.name)
	}
}

func TestEnrollmentEndToEnd(t *testing.T) {
	t.Parallel()

	src := &sourcetest.Fake{
		PolicyRows: []source.Policy{
			{ID: 3, OfficerID: i64(50), ProductCode: "PRD1", ProductName: "Basic Cover", EnrollDate: dp(2024, 2, 1), Status: 8, HeadGender: sp("F"), HeadDOB: dp(2000, 3, 1), FormalSector: bp(true)},
			{ID: 1, OfficerID: i64(50), ProductCode: "PRD1", ProductName: "Basic Cover", EnrollDate: dp(2024, 1, 10), Status: 2, HeadGender: sp("M"), HeadDOB: dp(1980, 1, 10)},
			{ID: 2, OfficerID: i64(404), ProductCode: "PRD2", ProductName: "Family Cover", Status: 1},
		},
		PremiumTotal: map[int64]float64{1: 10.0, 3: 25.5},
	}

	rows, _ := collect(t, spec(t, NameEnrollments), src, 2)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{"General Hospital", "Ikeja", "PRD1 - Basic Cover", Date{2024, 1, 10}, int64(44), "Male", "Informal", 10.0, "Active"}, rows[0])
	assert.Equal(t, Row{codes.Unknown, codes.Unknown, "PRD2 - Family Cover", nil, nil, codes.Unknown, "Informal", 0.0, "Idle"}, rows[1])
	assert.Equal(t, Row{"General Hospital", "Ikeja", "PRD1 - Basic Cover", Date{2024, 2, 1}, int64(23), "Female", "Formal", 25.5, "Expired"}, rows[2])

	// One premium query per page, not per policy.
	assert.Equal(t, 2, src.CallCount("PremiumSums"))
}

func TestPopulation(t *testing.T) {
	t.Parallel()

	src := &sourcetest.Fake{
		InsureeRows: []source.Insuree{
			{ID: 1, FamilyLocationID: i64(100), Gender: sp("O"), DOB: dp(2010, 12, 31), ValidityFrom: time.Date(2023, 4, 5, 13, 0, 0, 0, time.UTC)},
			{ID: 2, Gender: nil, ValidityFrom: day(2023, 4, 6)},
		},
		Enrolled: map[int64]struct{}{1: {}},
	}
	rows, _ := collect(t, spec(t, NamePopulation), src, 1000)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"Ikeja", int64(14), "Other", Date{2023, 4, 5}, true}, rows[0])
	assert.Equal(t, Row{codes.Unknown, nil, codes.Unknown, Date{2023, 4, 6}, false}, rows[1])
}

func TestPayments(t *testing.T) {
	t.Parallel()

	src := &sourcetest.Fake{
		PremiumRows: []source.Premium{
			{ID: 5, OfficerID: i64(50), ProductID: 7, PayDate: dp(2024, 5, 1), PayType: sp("M"), Amount: fp(12.5), FormalSector: bp(true)},
			{ID: 6, ProductID: 99, PayType: sp("X")},
		},
	}
	rows, _ := collect(t, spec(t, NamePayments), src, 1000)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"Ikeja", "General Hospital", Date{2024, 5, 1}, "Mobile payment", "Basic Cover", 12.5, "Formal"}, rows[0])
	assert.Equal(t, Row{codes.Unknown, codes.Unknown, nil, codes.Unknown, codes.Unknown, 0.0, "Informal"}, rows[1])
}

func claimFixture() *sourcetest.Fake {
	return &sourcetest.Fake{
		ClaimRows: []source.Claim{
			{ID: 1, FacilityID: 1, AdminOtherNames: sp("Ada"), AdminLastName: sp("Obi"), Status: codes.ClaimValuated, DiagnosisID: 3,
				InsureeGender: sp("F"), InsureeDOB: dp(1995, 1, 1), RejectionReason: ip(0),
				DateClaimed: dp(2024, 1, 2), SubmitStamp: dp(2024, 1, 3), ProcessStamp: dp(2024, 1, 4), BatchRunDate: dp(2024, 2, 1),
				Claimed: fp(100), Approved: fp(80), Remunerated: fp(75)},
			{ID: 2, FacilityID: 1, Status: codes.ClaimEntered, DiagnosisID: 3, RejectionReason: ip(42)},
			{ID: 3, FacilityID: 1, Status: codes.ClaimRejected, DiagnosisID: 3, RejectionReason: ip(-1)},
			{ID: 4, FacilityID: 2, Status: codes.ClaimChecked, DiagnosisID: 4},
		},
		DetailRows: []source.DetailRef{
			{ClaimID: 1, Kind: source.KindItem, Status: codes.DetailPassed},
			{ClaimID: 1, Kind: source.KindItem, Status: codes.DetailRejected, ProductID: i64(8)},
			{ClaimID: 1, Kind: source.KindItem, Status: 0, ProductID: i64(7)},
			{ClaimID: 1, Kind: source.KindService, Status: codes.DetailPassed, ProductID: i64(7)},
			{ClaimID: 2, Kind: source.KindItem, Status: codes.DetailPassed, ProductID: i64(7)},
			{ClaimID: 3, Kind: source.KindService, Status: codes.DetailRejected, ProductID: i64(7)},
			{ClaimID: 4, Kind: source.KindService, Status: codes.DetailPassed, ProductID: i64(8)},
		},
	}
}

func TestClaimGeneral(t *testing.T) {
	t.Parallel()

	rows, _ := collect(t, spec(t, NameClaimGeneral), claimFixture(), 1000)
	require.Len(t, rows, 4)

	assert.Equal(t, Row{
		"General Hospital", "Ikeja", "Ada Obi", "Valuated", "Malaria", "Female", int64(30), "Family Cover", "Accepted",
		Date{2024, 1, 2}, Date{2024, 1, 3}, Date{2024, 1, 4}, Date{2024, 2, 1},
		100.0, 80.0, 75.0,
		int64(3), int64(1), int64(1),
		int64(1), int64(0), int64(1),
	}, rows[0])

	// Entered and rejected claims never carry a product.
	assert.Nil(t, rows[1][7])
	assert.Nil(t, rows[2][7])
	assert.Equal(t, codes.Unknown, rows[1][8])
	assert.Equal(t, "Rejected by the reviewer", rows[2][8])
	assert.Equal(t, codes.Unknown, rows[1][2])
	assert.Equal(t, 0.0, rows[1][13])

	// No items, product found on services; unknown facility and diagnosis.
	assert.Equal(t, "Family Cover", rows[3][7])
	assert.Equal(t, codes.Unknown, rows[3][0])
	assert.Equal(t, codes.Unknown, rows[3][4])
	assert.Equal(t, []any{int64(0), int64(0), int64(0)}, []any(rows[3][16:19]))
}

func TestDetailCountInvariant(t *testing.T) {
	t.Parallel()

	refs := []source.DetailRef{{Status: 1}, {Status: 2}, {Status: 2}, {Status: 0}, {Status: 7}}
	c := Count(refs)
	assert.Equal(t, DetailCounts{Total: 5, Approved: 1, Rejected: 2}, c)
	assert.LessOrEqual(t, c.Approved+c.Rejected, c.Total)
	assert.Equal(t, DetailCounts{}, Count(nil))
}

func TestClaimGeneralPageSizeInvariance(t *testing.T) {
	t.Parallel()

	want, _ := collect(t, spec(t, NameClaimGeneral), claimFixture(), 1000)
	for _, size := range []int{1, 2, 3} {
		got, _ := collect(t, spec(t, NameClaimGeneral), claimFixture(), size)
		assert.Equal(t, want, got, "page size %d", size)
	}
}

func TestClaimDetailsItemsThenServices(t *testing.T) {
	t.Parallel()

	src := &sourcetest.Fake{
		ItemRows: []source.ClaimDetail{
			{ID: 2, Kind: source.KindItem, Name: "Paracetamol", Status: codes.DetailPassed, RejectionReason: ip(0), ClaimID: 1, ClaimStatus: codes.ClaimProcessed, DiagnosisID: 3, FacilityID: 1},
			{ID: 1, Kind: source.KindItem, Name: "Bandage", Status: codes.DetailRejected, RejectionReason: ip(6), ClaimID: 1, ClaimStatus: codes.ClaimProcessed, DiagnosisID: 3, FacilityID: 1},
		},
		ServiceRows: []source.ClaimDetail{
			{ID: 1, Kind: source.KindService, Name: "Consultation", Status: 9, ClaimID: 2, ClaimStatus: 3, DiagnosisID: 9, FacilityID: 9},
		},
	}
	rows, _ := collect(t, spec(t, NameClaimDetails), src, 1)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{"Bandage", "Item", "Rejected", "Item/Service duplicated", int64(1), "Processed", "Malaria", "General Hospital", "Ikeja"}, rows[0])
	assert.Equal(t, "Paracetamol", rows[1][0])
	assert.Equal(t, Row{"Consultation", "Service", codes.Unknown, codes.Unknown, int64(2), codes.Unknown, codes.Unknown, codes.Unknown, codes.Unknown}, rows[2])
}

func TestProductCodeFromBillCode(t *testing.T) {
	t.Parallel()

	code, err := ProductCodeFromBillCode("B-PRD1-2024")
	require.NoError(t, err)
	assert.Equal(t, "PRD1", code)

	for _, bad := range []string{"B", "", "B--2024"} {
		_, err := ProductCodeFromBillCode(bad)
		require.Error(t, err, bad)
		assert.True(t, apperr.Is(err, apperr.KindFormat), bad)
	}
}

func TestBillsSkipMalformed(t *testing.T) {
	t.Parallel()

	src := &sourcetest.Fake{
		BillRows: []source.Bill{
			{ID: "a1", ThirdpartyID: "1", SubjectID: "9", Code: "B-PRD1-2024", AmountNet: fp(300), DateBill: dp(2024, 3, 31)},
			{ID: "b2", ThirdpartyID: "1", SubjectID: "9", Code: "B"},
			{ID: "c3", ThirdpartyID: "x", SubjectID: "9", Code: "B-PRD1-2024"},
			{ID: "d4", ThirdpartyID: " 5 ", SubjectID: "77", Code: "B-NOPE-2024"},
		},
	}
	rows, skips := collect(t, spec(t, NameBills), src, 2)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"General Hospital", "Ikeja", 300.0, Date{2024, 3, 31}, int64(3), int64(2024), "Basic Cover"}, rows[0])
	assert.Equal(t, Row{codes.Unknown, codes.Unknown, 0.0, nil, codes.Unknown, codes.Unknown, codes.Unknown}, rows[1])

	require.Len(t, skips, 2)
	assert.Equal(t, "b2", skips[0].Key)
	assert.Equal(t, "c3", skips[1].Key)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	all, err := Select()
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"enrollments", "population", "payments", "claim-general", "claim-details", "bills"}, names)

	some, err := Select("bills", "enrollments")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "enrollments", some[0].Name)
	assert.Equal(t, TableBills, some[1].Table)

	_, err = Select("policies")
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestDateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-03-09", DateOf(time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)).String())
	assert.Equal(t, "0999-12-01", Date{999, 12, 1}.String())
}
