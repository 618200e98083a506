package dataset

import (
	"time"

	"imisexport/internal/codes"
	"imisexport/internal/dimension"
	"imisexport/internal/source"
)

func gender(code *string) string {
	if code == nil {
		return codes.Unknown
	}
	return codes.Gender(*code)
}

func formal(v *bool) string {
	return codes.Sector(v != nil && *v)
}

// EnrollmentRow flattens a policy. premiums is the sum of its live,
// non-photo-fee premiums. The head's age is taken at the enrollment date,
// or at now when the policy has none.
func EnrollmentRow(m *dimension.Maps, p source.Policy, premiums float64, now time.Time) Row {
	hf := m.Officer(p.OfficerID)
	ref := now
	if p.EnrollDate != nil {
		ref = *p.EnrollDate
	}
	return Row{
		hf.Name,
		hf.Region,
		p.ProductCode + " - " + p.ProductName,
		optDate(p.EnrollDate),
		Age(p.HeadDOB, ref),
		gender(p.HeadGender),
		formal(p.FormalSector),
		premiums,
		codes.PolicyStatus(p.Status),
	}
}

// PopulationRow flattens an insuree. enrolled reports whether the insuree
// holds a live insuree-policy.
func PopulationRow(m *dimension.Maps, i source.Insuree, enrolled bool, now time.Time) Row {
	return Row{
		m.Village(i.FamilyLocationID),
		Age(i.DOB, now),
		gender(i.Gender),
		DateOf(i.ValidityFrom),
		enrolled,
	}
}

// PaymentRow flattens a premium payment.
func PaymentRow(m *dimension.Maps, p source.Premium) Row {
	hf := m.Officer(p.OfficerID)
	payType := codes.Unknown
	if p.PayType != nil {
		payType = codes.PaymentType(*p.PayType)
	}
	return Row{
		hf.Region,
		hf.Name,
		optDate(p.PayDate),
		payType,
		m.Product(p.ProductID),
		amount(p.Amount),
		formal(p.FormalSector),
	}
}
