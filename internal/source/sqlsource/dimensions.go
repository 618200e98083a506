package sqlsource

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"imisexport/internal/source"
)

func (r *Reader) districtsQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblLocations").As("l")).
		Select(
			goqu.I("l.LocationId").As("id"),
			goqu.I("l.LocationName").As("name"),
			goqu.I("l.ParentLocationId").As("parent_id"),
		).
		Where(live("l"), goqu.I("l.LocationType").Eq("D")).
		Order(goqu.I("l.LocationId").Asc())
}

// Districts returns live district (type D) locations.
func (r *Reader) Districts(ctx context.Context) ([]source.Location, error) {
	return query(ctx, r, "sqlsource.Districts", r.districtsQuery(), func(rows *sql.Rows, l *source.Location) error {
		var parent sql.NullInt64
		if err := rows.Scan(&l.ID, &l.Name, &parent); err != nil {
			return err
		}
		l.ParentID = ptrInt64(parent)
		return nil
	})
}

// villagesQuery joins each village to its parent (municipality) to expose
// the grandparent, which is the district.
func (r *Reader) villagesQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblLocations").As("v")).
		LeftJoin(goqu.T("tblLocations").As("m"), goqu.On(goqu.I("m.LocationId").Eq(goqu.I("v.ParentLocationId")))).
		Select(
			goqu.I("v.LocationId").As("id"),
			goqu.I("m.ParentLocationId").As("district_id"),
		).
		Where(live("v"), goqu.I("v.LocationType").Eq("V")).
		Order(goqu.I("v.LocationId").Asc())
}

// Villages returns live village (type V) locations with their district id.
func (r *Reader) Villages(ctx context.Context) ([]source.Village, error) {
	return query(ctx, r, "sqlsource.Villages", r.villagesQuery(), func(rows *sql.Rows, v *source.Village) error {
		var district sql.NullInt64
		if err := rows.Scan(&v.ID, &district); err != nil {
			return err
		}
		v.DistrictID = ptrInt64(district)
		return nil
	})
}

func (r *Reader) facilitiesQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblHF").As("hf")).
		Select(
			goqu.I("hf.HfID").As("id"),
			goqu.I("hf.HFName").As("name"),
			goqu.I("hf.LocationId").As("location_id"),
		).
		Where(live("hf")).
		Order(goqu.I("hf.HfID").Asc())
}

// Facilities returns live health facilities.
func (r *Reader) Facilities(ctx context.Context) ([]source.Facility, error) {
	return query(ctx, r, "sqlsource.Facilities", r.facilitiesQuery(), func(rows *sql.Rows, f *source.Facility) error {
		return rows.Scan(&f.ID, &f.Name, &f.LocationID)
	})
}

// facilitiesByIDQuery has no validity predicate so retired facilities match.
func (r *Reader) facilitiesByIDQuery(ids []int64) *goqu.SelectDataset {
	return r.q.From(goqu.T("tblHF").As("hf")).
		Select(
			goqu.I("hf.HfID").As("id"),
			goqu.I("hf.HFName").As("name"),
			goqu.I("hf.LocationId").As("location_id"),
		).
		Where(goqu.I("hf.HfID").In(ids)).
		Order(goqu.I("hf.HfID").Asc())
}

// FacilitiesByID looks facilities up by id, retired or not.
func (r *Reader) FacilitiesByID(ctx context.Context, ids []int64) ([]source.Facility, error) {
	var out []source.Facility
	for _, chunk := range chunks(ids) {
		fs, err := query(ctx, r, "sqlsource.FacilitiesByID", r.facilitiesByIDQuery(chunk), func(rows *sql.Rows, f *source.Facility) error {
			return rows.Scan(&f.ID, &f.Name, &f.LocationID)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

func (r *Reader) officersQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblUsers").As("u")).
		Select(
			goqu.I("u.UserID").As("id"),
			goqu.I("u.HFID").As("facility_id"),
		).
		Where(live("u"), goqu.I("u.HFID").IsNotNull()).
		Order(goqu.I("u.UserID").Asc())
}

// Officers returns live interactive users attached to a health facility.
func (r *Reader) Officers(ctx context.Context) ([]source.Officer, error) {
	return query(ctx, r, "sqlsource.Officers", r.officersQuery(), func(rows *sql.Rows, o *source.Officer) error {
		return rows.Scan(&o.ID, &o.FacilityID)
	})
}

func (r *Reader) productsQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblProduct").As("p")).
		Select(
			goqu.I("p.ProdID").As("id"),
			goqu.I("p.ProductCode").As("code"),
			goqu.I("p.ProductName").As("name"),
		).
		Where(live("p")).
		Order(goqu.I("p.ProdID").Asc())
}

// Products returns live insurance products.
func (r *Reader) Products(ctx context.Context) ([]source.Product, error) {
	return query(ctx, r, "sqlsource.Products", r.productsQuery(), func(rows *sql.Rows, p *source.Product) error {
		return rows.Scan(&p.ID, &p.Code, &p.Name)
	})
}

func (r *Reader) diagnosesQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblICDCodes").As("icd")).
		Select(
			goqu.I("icd.ICDID").As("id"),
			goqu.I("icd.ICDName").As("name"),
		).
		Where(live("icd")).
		Order(goqu.I("icd.ICDID").Asc())
}

// Diagnoses returns live ICD codes.
func (r *Reader) Diagnoses(ctx context.Context) ([]source.Diagnosis, error) {
	return query(ctx, r, "sqlsource.Diagnoses", r.diagnosesQuery(), func(rows *sql.Rows, d *source.Diagnosis) error {
		return rows.Scan(&d.ID, &d.Name)
	})
}

func (r *Reader) batchRunsQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblBatchRun").As("br")).
		Select(
			goqu.I("br.RunID").As("id"),
			goqu.I("br.RunYear").As("year"),
			goqu.I("br.RunMonth").As("month"),
		).
		Where(live("br")).
		Order(goqu.I("br.RunID").Asc())
}

// BatchRuns returns live batch runs.
func (r *Reader) BatchRuns(ctx context.Context) ([]source.BatchRun, error) {
	return query(ctx, r, "sqlsource.BatchRuns", r.batchRunsQuery(), func(rows *sql.Rows, b *source.BatchRun) error {
		return rows.Scan(&b.ID, &b.Year, &b.Month)
	})
}
