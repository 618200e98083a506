// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"sort"
	"sync"

	"imisexport/internal/source"
)

// Fake serves fixed slices. Fact slices are sorted by key on first use, and
// every paginated call is counted so tests can assert query shapes.
type Fake struct {
	DistrictRows []source.Location
	VillageRows  []source.Village
	FacilityRows []source.Facility
	// RetiredRows are facilities only FacilitiesByID can see.
	RetiredRows   []source.Facility
	OfficerRows   []source.Officer
	ProductRows   []source.Product
	DiagnosisRows []source.Diagnosis
	BatchRunRows  []source.BatchRun

	PolicyRows   []source.Policy
	PremiumTotal map[int64]float64
	InsureeRows  []source.Insuree
	Enrolled     map[int64]struct{}
	PremiumRows  []source.Premium
	ClaimRows    []source.Claim
	DetailRows   []source.DetailRef
	ItemRows     []source.ClaimDetail
	ServiceRows  []source.ClaimDetail
	BillRows     []source.Bill

	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	Calls map[string]int
}

var _ source.Source = (*Fake)(nil)

func (f *Fake) count(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Calls == nil {
		f.Calls = map[string]int{}
	}
	f.Calls[name]++
	return f.Err
}

// CallCount returns how many times name was called.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}

func page[T any, K int64 | string](rows []T, key func(T) K, after *K, limit int) []T {
	sorted := append([]T(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })
	var out []T
	for _, r := range sorted {
		if after != nil && key(r) <= *after {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (f *Fake) Districts(context.Context) ([]source.Location, error) {
	return f.DistrictRows, f.count("Districts")
}

func (f *Fake) Villages(context.Context) ([]source.Village, error) {
	return f.VillageRows, f.count("Villages")
}

func (f *Fake) Facilities(context.Context) ([]source.Facility, error) {
	return f.FacilityRows, f.count("Facilities")
}

func (f *Fake) FacilitiesByID(_ context.Context, ids []int64) ([]source.Facility, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []source.Facility
	for _, rows := range [][]source.Facility{f.FacilityRows, f.RetiredRows} {
		for _, hf := range rows {
			if want[hf.ID] {
				out = append(out, hf)
			}
		}
	}
	return out, f.count("FacilitiesByID")
}

func (f *Fake) Officers(context.Context) ([]source.Officer, error) {
	return f.OfficerRows, f.count("Officers")
}

func (f *Fake) Products(context.Context) ([]source.Product, error) {
	return f.ProductRows, f.count("Products")
}

func (f *Fake) Diagnoses(context.Context) ([]source.Diagnosis, error) {
	return f.DiagnosisRows, f.count("Diagnoses")
}

func (f *Fake) BatchRuns(context.Context) ([]source.BatchRun, error) {
	return f.BatchRunRows, f.count("BatchRuns")
}

func (f *Fake) Policies(_ context.Context, after *int64, limit int) ([]source.Policy, error) {
	return page(f.PolicyRows, func(p source.Policy) int64 { return p.ID }, after, limit), f.count("Policies")
}

func (f *Fake) PremiumSums(_ context.Context, ids []int64) (map[int64]float64, error) {
	out := map[int64]float64{}
	for _, id := range ids {
		if v, ok := f.PremiumTotal[id]; ok {
			out[id] = v
		}
	}
	return out, f.count("PremiumSums")
}

func (f *Fake) Insurees(_ context.Context, after *int64, limit int) ([]source.Insuree, error) {
	return page(f.InsureeRows, func(i source.Insuree) int64 { return i.ID }, after, limit), f.count("Insurees")
}

func (f *Fake) EnrolledInsureeIDs(context.Context) (map[int64]struct{}, error) {
	return f.Enrolled, f.count("EnrolledInsureeIDs")
}

func (f *Fake) Premiums(_ context.Context, after *int64, limit int) ([]source.Premium, error) {
	return page(f.PremiumRows, func(p source.Premium) int64 { return p.ID }, after, limit), f.count("Premiums")
}

func (f *Fake) Claims(_ context.Context, after *int64, limit int) ([]source.Claim, error) {
	return page(f.ClaimRows, func(c source.Claim) int64 { return c.ID }, after, limit), f.count("Claims")
}

func (f *Fake) ClaimDetailRefs(_ context.Context, ids []int64) ([]source.DetailRef, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []source.DetailRef
	for _, d := range f.DetailRows {
		if want[d.ClaimID] {
			out = append(out, d)
		}
	}
	return out, f.count("ClaimDetailRefs")
}

func (f *Fake) ClaimItems(_ context.Context, after *int64, limit int) ([]source.ClaimDetail, error) {
	return page(f.ItemRows, func(d source.ClaimDetail) int64 { return d.ID }, after, limit), f.count("ClaimItems")
}

func (f *Fake) ClaimServices(_ context.Context, after *int64, limit int) ([]source.ClaimDetail, error) {
	return page(f.ServiceRows, func(d source.ClaimDetail) int64 { return d.ID }, after, limit), f.count("ClaimServices")
}

func (f *Fake) Bills(_ context.Context, after *string, limit int) ([]source.Bill, error) {
	return page(f.BillRows, func(b source.Bill) string { return b.ID }, after, limit), f.count("Bills")
}
