// Package dimension builds the in-memory lookup maps used to denormalize
// fact rows. Maps are built once per run and are read-only afterward.
package dimension

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"imisexport/internal/apperr"
	"imisexport/internal/codes"
	"imisexport/internal/source"
)

// Facility is a health facility's display name and region (LGA).
type Facility struct {
	Name   string
	Region string
}

// BatchRun is the billing period of a batch run.
type BatchRun struct {
	Year  int
	Month int
}

// Maps is the resolved dimension context.
type Maps struct {
	Districts      map[int64]string
	Facilities     map[int64]Facility
	Officers       map[int64]Facility
	Villages       map[int64]string
	ProductsByID   map[int64]string
	ProductsByCode map[string]string
	Diagnoses      map[int64]string
	BatchRuns      map[int64]BatchRun
}

var unknownFacility = Facility{Name: codes.Unknown, Region: codes.Unknown}

// Facility returns the facility for id, or Unknown/Unknown.
func (m *Maps) Facility(id int64) Facility {
	if f, ok := m.Facilities[id]; ok {
		return f
	}
	return unknownFacility
}

// Officer returns the facility the officer (interactive user) belongs to.
func (m *Maps) Officer(id *int64) Facility {
	if id == nil {
		return unknownFacility
	}
	if f, ok := m.Officers[*id]; ok {
		return f
	}
	return unknownFacility
}

// Village returns the region label of the village's district.
func (m *Maps) Village(id *int64) string {
	if id == nil {
		return codes.Unknown
	}
	if r, ok := m.Villages[*id]; ok {
		return r
	}
	return codes.Unknown
}

// Product returns the product name for id.
func (m *Maps) Product(id int64) string {
	if n, ok := m.ProductsByID[id]; ok {
		return n
	}
	return codes.Unknown
}

// ProductByCode returns the product name for code.
func (m *Maps) ProductByCode(code string) string {
	if n, ok := m.ProductsByCode[code]; ok {
		return n
	}
	return codes.Unknown
}

// Diagnosis returns the ICD name for id.
func (m *Maps) Diagnosis(id int64) string {
	if n, ok := m.Diagnoses[id]; ok {
		return n
	}
	return codes.Unknown
}

// BatchRun returns the batch run for id.
func (m *Maps) BatchRun(id int64) (BatchRun, bool) {
	br, ok := m.BatchRuns[id]
	return br, ok
}

type raw struct {
	districts  []source.Location
	villages   []source.Village
	facilities []source.Facility
	// retired holds the non-live facilities that officers still reference.
	retired   []source.Facility
	officers  []source.Officer
	products  []source.Product
	diagnoses []source.Diagnosis
	batchRuns []source.BatchRun
}

// Resolve loads every dimension with one query each, running the
// independent queries concurrently, then joins them in memory.
//
// Officers may reference a retired facility; those facilities are fetched
// by id in one extra query.
//
// Missing parents fail the whole run with an integrity error: a facility
// whose location is not a live district, an officer whose facility does not
// exist, or a village whose grandparent is not a live district.
func Resolve(ctx context.Context, src source.DimensionSource, logger zerolog.Logger) (*Maps, error) {
	start := time.Now()
	var r raw

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { r.districts, err = src.Districts(gctx); return })
	g.Go(func() (err error) { r.villages, err = src.Villages(gctx); return })
	g.Go(func() (err error) { r.facilities, err = src.Facilities(gctx); return })
	g.Go(func() (err error) { r.officers, err = src.Officers(gctx); return })
	g.Go(func() (err error) { r.products, err = src.Products(gctx); return })
	g.Go(func() (err error) { r.diagnoses, err = src.Diagnoses(gctx); return })
	g.Go(func() (err error) { r.batchRuns, err = src.BatchRuns(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if ids := retiredRefs(r.facilities, r.officers); len(ids) > 0 {
		var err error
		if r.retired, err = src.FacilitiesByID(ctx, ids); err != nil {
			return nil, err
		}
		logger.Debug().Int("referenced", len(ids)).Int("found", len(r.retired)).Msg("officers reference non-live facilities")
	}

	m, err := build(r)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("districts", len(m.Districts)).
		Int("facilities", len(m.Facilities)).
		Int("officers", len(m.Officers)).
		Int("villages", len(m.Villages)).
		Int("products", len(m.ProductsByID)).
		Int("diagnoses", len(m.Diagnoses)).
		Int("batch_runs", len(m.BatchRuns)).
		Dur("elapsed", time.Since(start)).
		Msg("dimensions resolved")
	return m, nil
}

// retiredRefs returns the sorted facility ids officers point at that are not
// among the live facilities.
func retiredRefs(facilities []source.Facility, officers []source.Officer) []int64 {
	live := make(map[int64]struct{}, len(facilities))
	for _, f := range facilities {
		live[f.ID] = struct{}{}
	}
	var ids []int64
	for _, o := range officers {
		if _, ok := live[o.FacilityID]; !ok {
			ids = append(ids, o.FacilityID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func build(r raw) (*Maps, error) {
	const op = "dimension.Resolve"
	m := &Maps{
		Districts:      make(map[int64]string, len(r.districts)),
		Facilities:     make(map[int64]Facility, len(r.facilities)),
		Officers:       make(map[int64]Facility, len(r.officers)),
		Villages:       make(map[int64]string, len(r.villages)),
		ProductsByID:   make(map[int64]string, len(r.products)),
		ProductsByCode: make(map[string]string, len(r.products)),
		Diagnoses:      make(map[int64]string, len(r.diagnoses)),
		BatchRuns:      make(map[int64]BatchRun, len(r.batchRuns)),
	}

	for _, d := range r.districts {
		m.Districts[d.ID] = d.Name
	}

	for _, f := range r.facilities {
		region, ok := m.Districts[f.LocationID]
		if !ok {
			return nil, apperr.Integrity(op, "health facility %d references location %d which is not a live district", f.ID, f.LocationID)
		}
		m.Facilities[f.ID] = Facility{Name: f.Name, Region: region}
	}

	retired := make(map[int64]Facility, len(r.retired))
	for _, f := range r.retired {
		region, ok := m.Districts[f.LocationID]
		if !ok {
			return nil, apperr.Integrity(op, "health facility %d references location %d which is not a live district", f.ID, f.LocationID)
		}
		retired[f.ID] = Facility{Name: f.Name, Region: region}
	}

	for _, o := range r.officers {
		f, ok := m.Facilities[o.FacilityID]
		if !ok {
			f, ok = retired[o.FacilityID]
		}
		if !ok {
			return nil, apperr.Integrity(op, "user %d references health facility %d which does not exist", o.ID, o.FacilityID)
		}
		m.Officers[o.ID] = f
	}

	for _, v := range r.villages {
		if v.DistrictID == nil {
			return nil, apperr.Integrity(op, "village %d has no grandparent location", v.ID)
		}
		region, ok := m.Districts[*v.DistrictID]
		if !ok {
			return nil, apperr.Integrity(op, "village %d resolves to location %d which is not a live district", v.ID, *v.DistrictID)
		}
		m.Villages[v.ID] = region
	}

	for _, p := range r.products {
		m.ProductsByID[p.ID] = p.Name
		m.ProductsByCode[p.Code] = p.Name
	}
	for _, d := range r.diagnoses {
		m.Diagnoses[d.ID] = d.Name
	}
	for _, b := range r.batchRuns {
		m.BatchRuns[b.ID] = BatchRun{Year: b.Year, Month: b.Month}
	}
	return m, nil
}
