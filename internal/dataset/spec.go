package dataset

import (
	"context"
	"fmt"
	"time"

	"imisexport/internal/apperr"
	"imisexport/internal/dimension"
	"imisexport/internal/paginate"
	"imisexport/internal/source"
)

// Env is what an extractor needs for one run.
type Env struct {
	Source   source.FactSource
	Maps     *dimension.Maps
	Now      time.Time
	PageSize int
}

// Skip records a source record dropped because of a format error.
type Skip struct {
	Key string
	Err error
}

// Batch is the transformed output of one source page.
type Batch struct {
	Phase   string
	Page    int
	Fetched int
	Rows    []Row
	Skipped []Skip
}

// Emit receives batches in extraction order.
type Emit func(Batch) error

// Spec describes one published dataset.
type Spec struct {
	Name    string
	Table   string
	Header  []string
	Extract func(ctx context.Context, env Env, emit Emit) error
}

// Dataset names, in publication order.
const (
	NameEnrollments  = "enrollments"
	NamePopulation   = "population"
	NamePayments     = "payments"
	NameClaimGeneral = "claim-general"
	NameClaimDetails = "claim-details"
	NameBills        = "bills"
)

var specs = []Spec{
	{Name: NameEnrollments, Table: TableEnrollments, Header: HeaderEnrollments, Extract: extractEnrollments},
	{Name: NamePopulation, Table: TablePopulation, Header: HeaderPopulation, Extract: extractPopulation},
	{Name: NamePayments, Table: TablePayments, Header: HeaderPayments, Extract: extractPayments},
	{Name: NameClaimGeneral, Table: TableClaimGeneral, Header: HeaderClaimGeneral, Extract: extractClaimGeneral},
	{Name: NameClaimDetails, Table: TableClaimDetails, Header: HeaderClaimDetails, Extract: extractClaimDetails},
	{Name: NameBills, Table: TableBills, Header: HeaderBills, Extract: extractBills},
}

// All returns every dataset in publication order.
func All() []Spec {
	return append([]Spec(nil), specs...)
}

// Select returns the named datasets in publication order regardless of the
// order given. An empty list selects all.
func Select(names ...string) ([]Spec, error) {
	if len(names) == 0 {
		return All(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Spec
	for _, s := range specs {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	for n := range want {
		return nil, apperr.Config("dataset.Select", "unknown dataset %q", n)
	}
	return out, nil
}

func extractEnrollments(ctx context.Context, env Env, emit Emit) error {
	p := paginate.New(env.PageSize, func(p source.Policy) int64 { return p.ID }, env.Source.Policies)
	return p.Each(ctx, func(pg paginate.Page[source.Policy]) error {
		ids := make([]int64, len(pg.Items))
		for i, pol := range pg.Items {
			ids[i] = pol.ID
		}
		sums, err := env.Source.PremiumSums(ctx, ids)
		if err != nil {
			return fmt.Errorf("premium sums page %d: %w", pg.Number, err)
		}
		rows := make([]Row, 0, len(pg.Items))
		for _, pol := range pg.Items {
			rows = append(rows, EnrollmentRow(env.Maps, pol, sums[pol.ID], env.Now))
		}
		return emit(Batch{Phase: "policies", Page: pg.Number, Fetched: len(pg.Items), Rows: rows})
	})
}

func extractPopulation(ctx context.Context, env Env, emit Emit) error {
	enrolled, err := env.Source.EnrolledInsureeIDs(ctx)
	if err != nil {
		return fmt.Errorf("enrolled insurees: %w", err)
	}
	p := paginate.New(env.PageSize, func(i source.Insuree) int64 { return i.ID }, env.Source.Insurees)
	return p.Each(ctx, func(pg paginate.Page[source.Insuree]) error {
		rows := make([]Row, 0, len(pg.Items))
		for _, ins := range pg.Items {
			_, ok := enrolled[ins.ID]
			rows = append(rows, PopulationRow(env.Maps, ins, ok, env.Now))
		}
		return emit(Batch{Phase: "insurees", Page: pg.Number, Fetched: len(pg.Items), Rows: rows})
	})
}

func extractPayments(ctx context.Context, env Env, emit Emit) error {
	p := paginate.New(env.PageSize, func(pm source.Premium) int64 { return pm.ID }, env.Source.Premiums)
	return p.Each(ctx, func(pg paginate.Page[source.Premium]) error {
		rows := make([]Row, 0, len(pg.Items))
		for _, pm := range pg.Items {
			rows = append(rows, PaymentRow(env.Maps, pm))
		}
		return emit(Batch{Phase: "premiums", Page: pg.Number, Fetched: len(pg.Items), Rows: rows})
	})
}

func extractClaimGeneral(ctx context.Context, env Env, emit Emit) error {
	p := paginate.New(env.PageSize, func(c source.Claim) int64 { return c.ID }, env.Source.Claims)
	return p.Each(ctx, func(pg paginate.Page[source.Claim]) error {
		ids := make([]int64, len(pg.Items))
		for i, c := range pg.Items {
			ids[i] = c.ID
		}
		refs, err := env.Source.ClaimDetailRefs(ctx, ids)
		if err != nil {
			return fmt.Errorf("claim details page %d: %w", pg.Number, err)
		}
		grouped := GroupDetails(refs)
		rows := make([]Row, 0, len(pg.Items))
		for _, c := range pg.Items {
			rows = append(rows, ClaimGeneralRow(env.Maps, c, grouped[c.ID], env.Now))
		}
		return emit(Batch{Phase: "claims", Page: pg.Number, Fetched: len(pg.Items), Rows: rows})
	})
}

// extractClaimDetails fully pages items before services.
func extractClaimDetails(ctx context.Context, env Env, emit Emit) error {
	key := func(d source.ClaimDetail) int64 { return d.ID }
	phases := []struct {
		name  string
		fetch paginate.FetchFunc[int64, source.ClaimDetail]
	}{
		{"items", env.Source.ClaimItems},
		{"services", env.Source.ClaimServices},
	}
	for _, ph := range phases {
		ph := ph
		err := paginate.New(env.PageSize, key, ph.fetch).Each(ctx, func(pg paginate.Page[source.ClaimDetail]) error {
			rows := make([]Row, 0, len(pg.Items))
			for _, d := range pg.Items {
				rows = append(rows, ClaimDetailRow(env.Maps, d))
			}
			return emit(Batch{Phase: ph.name, Page: pg.Number, Fetched: len(pg.Items), Rows: rows})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func extractBills(ctx context.Context, env Env, emit Emit) error {
	p := paginate.New(env.PageSize, func(b source.Bill) string { return b.ID }, env.Source.Bills)
	return p.Each(ctx, func(pg paginate.Page[source.Bill]) error {
		b := Batch{Phase: "bills", Page: pg.Number, Fetched: len(pg.Items), Rows: make([]Row, 0, len(pg.Items))}
		for _, bill := range pg.Items {
			row, err := BillRow(env.Maps, bill)
			if err != nil {
				if !apperr.Is(err, apperr.KindFormat) {
					return err
				}
				b.Skipped = append(b.Skipped, Skip{Key: bill.ID, Err: err})
				continue
			}
			b.Rows = append(b.Rows, row)
		}
		return emit(b)
	})
}
