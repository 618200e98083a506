package sqlsource

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"imisexport/internal/source"
)

// maxInParams caps the ids bound into one IN (...) list; SQL Server refuses
// more than 2100 parameters per statement.
const maxInParams = 1000

func cursor[K any](after *K) any {
	if after == nil {
		return nil
	}
	return *after
}

func chunks(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > maxInParams {
		out = append(out, ids[:maxInParams])
		ids = ids[maxInParams:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func (r *Reader) policiesQuery(after *int64, limit int) *goqu.SelectDataset {
	ds := r.q.From(goqu.T("tblPolicy").As("p")).
		Join(goqu.T("tblProduct").As("pr"), goqu.On(goqu.I("pr.ProdID").Eq(goqu.I("p.ProdID")))).
		Join(goqu.T("tblFamilies").As("f"), goqu.On(goqu.I("f.FamilyID").Eq(goqu.I("p.FamilyID")))).
		LeftJoin(goqu.T("tblInsuree").As("h"), goqu.On(goqu.I("h.InsureeID").Eq(goqu.I("f.InsureeID")))).
		Select(
			goqu.I("p.PolicyID").As("id"),
			goqu.I("p.OfficerID").As("officer_id"),
			goqu.I("pr.ProductCode").As("product_code"),
			goqu.I("pr.ProductName").As("product_name"),
			goqu.I("p.EnrollDate").As("enroll_date"),
			goqu.I("p.PolicyStatus").As("status"),
			goqu.I("h.Gender").As("head_gender"),
			goqu.I("h.DOB").As("head_dob"),
			goqu.I("h.IsFormalSector").As("formal_sector"),
		).
		Where(live("p"))
	return keyset(ds, goqu.I("p.PolicyID"), cursor(after), limit)
}

// Policies returns one page of live policies.
func (r *Reader) Policies(ctx context.Context, after *int64, limit int) ([]source.Policy, error) {
	return query(ctx, r, "sqlsource.Policies", r.policiesQuery(after, limit), func(rows *sql.Rows, p *source.Policy) error {
		var (
			officer sql.NullInt64
			enroll  sql.NullTime
			gender  sql.NullString
			dob     sql.NullTime
			formal  sql.NullBool
		)
		if err := rows.Scan(&p.ID, &officer, &p.ProductCode, &p.ProductName, &enroll, &p.Status, &gender, &dob, &formal); err != nil {
			return err
		}
		p.OfficerID = ptrInt64(officer)
		p.EnrollDate = ptrTime(enroll)
		p.HeadGender = ptrString(gender)
		p.HeadDOB = ptrTime(dob)
		p.FormalSector = ptrBool(formal)
		return nil
	})
}

func (r *Reader) premiumSumsQuery(policyIDs []int64) *goqu.SelectDataset {
	return r.q.From(goqu.T("tblPremium").As("pm")).
		Select(
			goqu.I("pm.PolicyID").As("policy_id"),
			goqu.SUM("pm.Amount").As("total"),
		).
		Where(
			live("pm"),
			isFalse("pm.isPhotoFee"),
			goqu.I("pm.PolicyID").In(policyIDs),
		).
		GroupBy(goqu.I("pm.PolicyID"))
}

// PremiumSums sums live non-photo-fee premiums per policy.
func (r *Reader) PremiumSums(ctx context.Context, policyIDs []int64) (map[int64]float64, error) {
	type sum struct {
		policyID int64
		total    sql.NullFloat64
	}
	out := make(map[int64]float64, len(policyIDs))
	for _, ids := range chunks(policyIDs) {
		sums, err := query(ctx, r, "sqlsource.PremiumSums", r.premiumSumsQuery(ids), func(rows *sql.Rows, s *sum) error {
			return rows.Scan(&s.policyID, &s.total)
		})
		if err != nil {
			return nil, err
		}
		for _, s := range sums {
			out[s.policyID] = s.total.Float64
		}
	}
	return out, nil
}

func (r *Reader) insureesQuery(after *int64, limit int) *goqu.SelectDataset {
	ds := r.q.From(goqu.T("tblInsuree").As("i")).
		LeftJoin(goqu.T("tblFamilies").As("f"), goqu.On(goqu.I("f.FamilyID").Eq(goqu.I("i.FamilyID")))).
		Select(
			goqu.I("i.InsureeID").As("id"),
			goqu.I("f.LocationId").As("family_location_id"),
			goqu.I("i.Gender").As("gender"),
			goqu.I("i.DOB").As("dob"),
			goqu.I("i.ValidityFrom").As("validity_from"),
		).
		Where(live("i"))
	return keyset(ds, goqu.I("i.InsureeID"), cursor(after), limit)
}

// Insurees returns one page of live insurees.
func (r *Reader) Insurees(ctx context.Context, after *int64, limit int) ([]source.Insuree, error) {
	return query(ctx, r, "sqlsource.Insurees", r.insureesQuery(after, limit), func(rows *sql.Rows, i *source.Insuree) error {
		var (
			loc    sql.NullInt64
			gender sql.NullString
			dob    sql.NullTime
		)
		if err := rows.Scan(&i.ID, &loc, &gender, &dob, &i.ValidityFrom); err != nil {
			return err
		}
		i.FamilyLocationID = ptrInt64(loc)
		i.Gender = ptrString(gender)
		i.DOB = ptrTime(dob)
		return nil
	})
}

func (r *Reader) enrolledQuery() *goqu.SelectDataset {
	return r.q.From(goqu.T("tblInsureePolicy").As("ip")).
		Join(goqu.T("tblInsuree").As("i"), goqu.On(goqu.I("i.InsureeID").Eq(goqu.I("ip.InsureeId")))).
		Select(goqu.I("ip.InsureeId").As("insuree_id")).
		Distinct().
		Where(live("ip"), live("i"))
}

// EnrolledInsureeIDs returns live insurees holding a live insuree-policy.
func (r *Reader) EnrolledInsureeIDs(ctx context.Context) (map[int64]struct{}, error) {
	ids, err := query(ctx, r, "sqlsource.EnrolledInsureeIDs", r.enrolledQuery(), func(rows *sql.Rows, id *int64) error {
		return rows.Scan(id)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *Reader) premiumsQuery(after *int64, limit int) *goqu.SelectDataset {
	ds := r.q.From(goqu.T("tblPremium").As("pm")).
		Join(goqu.T("tblPolicy").As("p"), goqu.On(goqu.I("p.PolicyID").Eq(goqu.I("pm.PolicyID")))).
		Join(goqu.T("tblFamilies").As("f"), goqu.On(goqu.I("f.FamilyID").Eq(goqu.I("p.FamilyID")))).
		LeftJoin(goqu.T("tblInsuree").As("h"), goqu.On(goqu.I("h.InsureeID").Eq(goqu.I("f.InsureeID")))).
		Select(
			goqu.I("pm.PremiumId").As("id"),
			goqu.I("p.OfficerID").As("officer_id"),
			goqu.I("p.ProdID").As("product_id"),
			goqu.I("pm.PayDate").As("pay_date"),
			goqu.I("pm.PayType").As("pay_type"),
			goqu.I("pm.Amount").As("amount"),
			goqu.I("h.IsFormalSector").As("formal_sector"),
		).
		Where(live("pm"))
	return keyset(ds, goqu.I("pm.PremiumId"), cursor(after), limit)
}

// Premiums returns one page of live premiums.
func (r *Reader) Premiums(ctx context.Context, after *int64, limit int) ([]source.Premium, error) {
	return query(ctx, r, "sqlsource.Premiums", r.premiumsQuery(after, limit), func(rows *sql.Rows, p *source.Premium) error {
		var (
			officer sql.NullInt64
			payDate sql.NullTime
			payType sql.NullString
			amount  sql.NullFloat64
			formal  sql.NullBool
		)
		if err := rows.Scan(&p.ID, &officer, &p.ProductID, &payDate, &payType, &amount, &formal); err != nil {
			return err
		}
		p.OfficerID = ptrInt64(officer)
		p.PayDate = ptrTime(payDate)
		p.PayType = ptrString(payType)
		p.Amount = ptrFloat(amount)
		p.FormalSector = ptrBool(formal)
		return nil
	})
}

func (r *Reader) claimsQuery(after *int64, limit int) *goqu.SelectDataset {
	ds := r.q.From(goqu.T("tblClaim").As("c")).
		LeftJoin(goqu.T("tblClaimAdmin").As("ca"), goqu.On(goqu.I("ca.ClaimAdminId").Eq(goqu.I("c.ClaimAdminId")))).
		LeftJoin(goqu.T("tblInsuree").As("i"), goqu.On(goqu.I("i.InsureeID").Eq(goqu.I("c.InsureeID")))).
		LeftJoin(goqu.T("tblBatchRun").As("br"), goqu.On(goqu.I("br.RunID").Eq(goqu.I("c.RunID")))).
		Select(
			goqu.I("c.ClaimID").As("id"),
			goqu.I("c.HFID").As("facility_id"),
			goqu.I("ca.OtherNames").As("admin_other_names"),
			goqu.I("ca.LastName").As("admin_last_name"),
			goqu.I("c.ClaimStatus").As("status"),
			goqu.I("c.ICDID").As("diagnosis_id"),
			goqu.I("i.Gender").As("insuree_gender"),
			goqu.I("i.DOB").As("insuree_dob"),
			goqu.I("c.RejectionReason").As("rejection_reason"),
			goqu.I("c.DateClaimed").As("date_claimed"),
			goqu.I("c.SubmitStamp").As("submit_stamp"),
			goqu.I("c.ProcessStamp").As("process_stamp"),
			goqu.I("br.RunDate").As("batch_run_date"),
			goqu.I("c.Claimed").As("claimed"),
			goqu.I("c.Approved").As("approved"),
			goqu.I("c.Remunerated").As("remunerated"),
		).
		Where(live("c"))
	return keyset(ds, goqu.I("c.ClaimID"), cursor(after), limit)
}

// Claims returns one page of live claims.
func (r *Reader) Claims(ctx context.Context, after *int64, limit int) ([]source.Claim, error) {
	return query(ctx, r, "sqlsource.Claims", r.claimsQuery(after, limit), func(rows *sql.Rows, c *source.Claim) error {
		var (
			otherNames, lastName, gender            sql.NullString
			dob, claimed, submitted, processed, run sql.NullTime
			rejection                               sql.NullInt64
			amtClaimed, amtApproved, amtPaid        sql.NullFloat64
		)
		if err := rows.Scan(
			&c.ID, &c.FacilityID, &otherNames, &lastName, &c.Status, &c.DiagnosisID,
			&gender, &dob, &rejection, &claimed, &submitted, &processed, &run,
			&amtClaimed, &amtApproved, &amtPaid,
		); err != nil {
			return err
		}
		c.AdminOtherNames = ptrString(otherNames)
		c.AdminLastName = ptrString(lastName)
		c.InsureeGender = ptrString(gender)
		c.InsureeDOB = ptrTime(dob)
		c.RejectionReason = ptrInt(rejection)
		c.DateClaimed = ptrTime(claimed)
		c.SubmitStamp = ptrTime(submitted)
		c.ProcessStamp = ptrTime(processed)
		c.BatchRunDate = ptrTime(run)
		c.Claimed = ptrFloat(amtClaimed)
		c.Approved = ptrFloat(amtApproved)
		c.Remunerated = ptrFloat(amtPaid)
		return nil
	})
}

// detailTable describes the shared shape of tblClaimItems and
// tblClaimServices.
type detailTable struct {
	kind      string
	table     string
	idCol     string
	statusCol string
	refTable  string
	refIDCol  string
	refFK     string
	nameCol   string
}

var (
	itemTable = detailTable{
		kind: source.KindItem, table: "tblClaimItems", idCol: "ClaimItemID", statusCol: "ClaimItemStatus",
		refTable: "tblItems", refIDCol: "ItemID", refFK: "ItemID", nameCol: "ItemName",
	}
	serviceTable = detailTable{
		kind: source.KindService, table: "tblClaimServices", idCol: "ClaimServiceID", statusCol: "ClaimServiceStatus",
		refTable: "tblServices", refIDCol: "ServiceID", refFK: "ServiceID", nameCol: "ServName",
	}
)

func (r *Reader) detailRefsQuery(t detailTable, claimIDs []int64) *goqu.SelectDataset {
	return r.q.From(goqu.T(t.table).As("d")).
		Select(
			goqu.I("d.ClaimID").As("claim_id"),
			goqu.L("'"+t.kind+"'").As("kind"),
			goqu.I("d."+t.idCol).As("detail_id"),
			goqu.I("d."+t.statusCol).As("status"),
			goqu.I("d.ProdID").As("product_id"),
		).
		Where(live("d"), goqu.I("d.ClaimID").In(claimIDs))
}

// claimDetailRefsQuery unions items and services so one statement serves a
// whole page of claims.
func (r *Reader) claimDetailRefsQuery(claimIDs []int64) *goqu.SelectDataset {
	union := r.detailRefsQuery(itemTable, claimIDs).UnionAll(r.detailRefsQuery(serviceTable, claimIDs))
	return r.q.From(union.As("refs")).
		Select("claim_id", "kind", "status", "product_id").
		Order(goqu.C("claim_id").Asc(), goqu.C("kind").Asc(), goqu.C("detail_id").Asc())
}

// ClaimDetailRefs returns the live items then services of the given claims.
func (r *Reader) ClaimDetailRefs(ctx context.Context, claimIDs []int64) ([]source.DetailRef, error) {
	var out []source.DetailRef
	for _, ids := range chunks(claimIDs) {
		refs, err := query(ctx, r, "sqlsource.ClaimDetailRefs", r.claimDetailRefsQuery(ids), func(rows *sql.Rows, d *source.DetailRef) error {
			var product sql.NullInt64
			if err := rows.Scan(&d.ClaimID, &d.Kind, &d.Status, &product); err != nil {
				return err
			}
			d.ProductID = ptrInt64(product)
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

func (r *Reader) claimDetailsQuery(t detailTable, after *int64, limit int) *goqu.SelectDataset {
	ds := r.q.From(goqu.T(t.table).As("d")).
		Join(goqu.T("tblClaim").As("c"), goqu.On(goqu.I("c.ClaimID").Eq(goqu.I("d.ClaimID")))).
		LeftJoin(goqu.T(t.refTable).As("ref"), goqu.On(goqu.I("ref."+t.refIDCol).Eq(goqu.I("d."+t.refFK)))).
		Select(
			goqu.I("d."+t.idCol).As("id"),
			goqu.I("ref."+t.nameCol).As("name"),
			goqu.I("d."+t.statusCol).As("status"),
			goqu.I("d.RejectionReason").As("rejection_reason"),
			goqu.I("c.ClaimID").As("claim_id"),
			goqu.I("c.ClaimStatus").As("claim_status"),
			goqu.I("c.ICDID").As("diagnosis_id"),
			goqu.I("c.HFID").As("facility_id"),
		).
		Where(live("d"))
	return keyset(ds, goqu.I("d."+t.idCol), cursor(after), limit)
}

func (r *Reader) claimDetails(ctx context.Context, t detailTable, after *int64, limit int) ([]source.ClaimDetail, error) {
	return query(ctx, r, "sqlsource.ClaimDetails", r.claimDetailsQuery(t, after, limit), func(rows *sql.Rows, d *source.ClaimDetail) error {
		var (
			name      sql.NullString
			rejection sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &name, &d.Status, &rejection, &d.ClaimID, &d.ClaimStatus, &d.DiagnosisID, &d.FacilityID); err != nil {
			return err
		}
		d.Kind = t.kind
		d.Name = name.String
		d.RejectionReason = ptrInt(rejection)
		return nil
	})
}

// ClaimItems returns one page of live claim items.
func (r *Reader) ClaimItems(ctx context.Context, after *int64, limit int) ([]source.ClaimDetail, error) {
	return r.claimDetails(ctx, itemTable, after, limit)
}

// ClaimServices returns one page of live claim services.
func (r *Reader) ClaimServices(ctx context.Context, after *int64, limit int) ([]source.ClaimDetail, error) {
	return r.claimDetails(ctx, serviceTable, after, limit)
}

func (r *Reader) uuidType() string {
	if r.dialect == SQLServer {
		return "UNIQUEIDENTIFIER"
	}
	return "UUID"
}

func (r *Reader) billsQuery(after *string, limit int) *goqu.SelectDataset {
	ds := r.q.From(goqu.T("tblBill").As("b")).
		Select(
			goqu.Cast(goqu.I("b.UUID"), "VARCHAR(36)").As("id"),
			goqu.I("b.ThirdpartyId").As("thirdparty_id"),
			goqu.I("b.SubjectId").As("subject_id"),
			goqu.I("b.Code").As("code"),
			goqu.I("b.AmountNet").As("amount_net"),
			goqu.I("b.DateBill").As("date_bill"),
		).
		Where(isFalse("b.IsDeleted"))
	var from any
	if after != nil {
		from = goqu.Cast(goqu.V(*after), r.uuidType())
	}
	return keyset(ds, goqu.I("b.UUID"), from, limit)
}

// Bills returns one page of non-deleted bills ordered by UUID in the
// database's native uuid ordering.
func (r *Reader) Bills(ctx context.Context, after *string, limit int) ([]source.Bill, error) {
	return query(ctx, r, "sqlsource.Bills", r.billsQuery(after, limit), func(rows *sql.Rows, b *source.Bill) error {
		var (
			thirdparty, subject, code sql.NullString
			amount                    sql.NullFloat64
			date                      sql.NullTime
		)
		if err := rows.Scan(&b.ID, &thirdparty, &subject, &code, &amount, &date); err != nil {
			return err
		}
		b.ThirdpartyID = thirdparty.String
		b.SubjectID = subject.String
		b.Code = code.String
		b.AmountNet = ptrFloat(amount)
		b.DateBill = ptrTime(date)
		return nil
	})
}
