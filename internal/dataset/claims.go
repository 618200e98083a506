package dataset

import (
	"time"

	"imisexport/internal/codes"
	"imisexport/internal/dimension"
	"imisexport/internal/source"
)

// DetailCounts tallies the items or services of one claim.
type DetailCounts struct {
	Total    int64
	Approved int64
	Rejected int64
}

// Count tallies refs. Approved counts passed details and Rejected counts
// rejected ones; anything else only adds to Total.
func Count(refs []source.DetailRef) DetailCounts {
	var c DetailCounts
	for _, r := range refs {
		c.Total++
		switch r.Status {
		case codes.DetailPassed:
			c.Approved++
		case codes.DetailRejected:
			c.Rejected++
		}
	}
	return c
}

// ClaimDetails holds one claim's items and services, each in id order.
type ClaimDetails struct {
	Items    []source.DetailRef
	Services []source.DetailRef
}

// GroupDetails buckets a page's detail refs by claim id, preserving order.
func GroupDetails(refs []source.DetailRef) map[int64]*ClaimDetails {
	out := make(map[int64]*ClaimDetails)
	for _, r := range refs {
		g, ok := out[r.ClaimID]
		if !ok {
			g = &ClaimDetails{}
			out[r.ClaimID] = g
		}
		if r.Kind == source.KindService {
			g.Services = append(g.Services, r)
		} else {
			g.Items = append(g.Items, r)
		}
	}
	return out
}

// ClaimProduct names the product a claim was covered under: nil while the
// claim is entered or rejected, otherwise the first product found on its
// items, then on its services.
func ClaimProduct(m *dimension.Maps, status int, d *ClaimDetails) any {
	if status == codes.ClaimEntered || status == codes.ClaimRejected || d == nil {
		return nil
	}
	for _, r := range d.Items {
		if r.ProductID != nil {
			return m.Product(*r.ProductID)
		}
	}
	for _, r := range d.Services {
		if r.ProductID != nil {
			return m.Product(*r.ProductID)
		}
	}
	return nil
}

func claimAdmin(c source.Claim) string {
	if c.AdminOtherNames == nil && c.AdminLastName == nil {
		return codes.Unknown
	}
	return str(c.AdminOtherNames) + " " + str(c.AdminLastName)
}

func rejection(code *int) string {
	if code == nil {
		return codes.Unknown
	}
	return codes.RejectionReason(*code)
}

// ClaimGeneralRow flattens a claim with its pre-fetched details. d may be
// nil for a claim without items or services.
func ClaimGeneralRow(m *dimension.Maps, c source.Claim, d *ClaimDetails, now time.Time) Row {
	hf := m.Facility(c.FacilityID)
	var items, services DetailCounts
	if d != nil {
		items = Count(d.Items)
		services = Count(d.Services)
	}
	return Row{
		hf.Name,
		hf.Region,
		claimAdmin(c),
		codes.ClaimStatus(c.Status),
		m.Diagnosis(c.DiagnosisID),
		gender(c.InsureeGender),
		Age(c.InsureeDOB, now),
		ClaimProduct(m, c.Status, d),
		rejection(c.RejectionReason),
		optDate(c.DateClaimed),
		optDate(c.SubmitStamp),
		optDate(c.ProcessStamp),
		optDate(c.BatchRunDate),
		amount(c.Claimed),
		amount(c.Approved),
		amount(c.Remunerated),
		items.Total,
		items.Rejected,
		items.Approved,
		services.Total,
		services.Rejected,
		services.Approved,
	}
}

// ClaimDetailRow flattens a claim item or service.
func ClaimDetailRow(m *dimension.Maps, d source.ClaimDetail) Row {
	hf := m.Facility(d.FacilityID)
	return Row{
		d.Name,
		d.Kind,
		codes.ClaimDetailStatus(d.Status),
		rejection(d.RejectionReason),
		d.ClaimID,
		codes.ClaimStatus(d.ClaimStatus),
		m.Diagnosis(d.DiagnosisID),
		hf.Name,
		hf.Region,
	}
}
