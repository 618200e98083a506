package export

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"imisexport/internal/codes"
	"imisexport/internal/export/customfilter"
)

// Builtin returns the registry of exportable openIMIS types.
func Builtin() *Registry {
	return NewRegistry().MustRegister(insurees(), claims())
}

func insurees() Field {
	cols := map[string]exp.IdentifierExpression{
		"chf_id":      goqu.I("i.CHFID"),
		"last_name":   goqu.I("i.LastName"),
		"other_names": goqu.I("i.OtherNames"),
		"dob":         goqu.I("i.DOB"),
		"gender":      goqu.I("i.Gender"),
		"head":        goqu.I("i.IsHead"),
		"phone":       goqu.I("i.Phone"),
	}
	return Field{
		Name: "insurees",
		Base: func() *goqu.SelectDataset {
			return goqu.From(goqu.T("tblInsuree").As("i")).
				Where(goqu.I("i.ValidityTo").IsNull()).
				Order(goqu.I("i.InsureeID").Asc())
		},
		Columns:      cols,
		FilterFields: []string{"chf_id", "gender", "head"},
		Patches: []Patch{
			FormatDate("dob", "2006-01-02"),
			Label("gender", codes.Gender),
		},
		Wizard: customfilter.New(cols),
	}
}

func claims() Field {
	cols := map[string]exp.IdentifierExpression{
		"code":                goqu.I("c.ClaimCode"),
		"date_claimed":        goqu.I("c.DateClaimed"),
		"status":              goqu.I("c.ClaimStatus"),
		"claimed":             goqu.I("c.Claimed"),
		"approved":            goqu.I("c.Approved"),
		"health_facility__id": goqu.I("c.HFID"),
		"insuree__chf_id":     goqu.I("i.CHFID"),
		"insuree__last_name":  goqu.I("i.LastName"),
	}
	return Field{
		Name: "claims",
		Base: func() *goqu.SelectDataset {
			return goqu.From(goqu.T("tblClaim").As("c")).
				InnerJoin(goqu.T("tblInsuree").As("i"), goqu.On(goqu.I("i.InsureeID").Eq(goqu.I("c.InsureeID")))).
				Where(goqu.I("c.ValidityTo").IsNull()).
				Order(goqu.I("c.ClaimID").Asc())
		},
		Columns:      cols,
		FilterFields: []string{"status", "health_facility__id"},
		Patches: []Patch{
			FormatDate("date_claimed", "2006-01-02"),
			Label("status", codes.ClaimStatus),
		},
		Wizard: customfilter.New(cols),
	}
}
