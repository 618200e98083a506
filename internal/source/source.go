// Package source defines the records read from the openIMIS operational
// database and the reader contract the export pipeline depends on.
//
// Fact readers are keyset-paginated: each call returns up to limit records
// whose key is strictly greater than after (or from the start when after is
// nil), ordered by key ascending.
package source

import "context"

// DimensionSource bulk-loads the reference data used to denormalize facts.
// Every method issues one query and returns only live rows (ValidityTo IS NULL),
// except FacilitiesByID.
type DimensionSource interface {
	Districts(ctx context.Context) ([]Location, error)
	Villages(ctx context.Context) ([]Village, error)
	Facilities(ctx context.Context) ([]Facility, error)
	// FacilitiesByID returns the facilities with the given ids whatever their
	// validity. Users may still point at a retired facility.
	FacilitiesByID(ctx context.Context, ids []int64) ([]Facility, error)
	Officers(ctx context.Context) ([]Officer, error)
	Products(ctx context.Context) ([]Product, error)
	Diagnoses(ctx context.Context) ([]Diagnosis, error)
	BatchRuns(ctx context.Context) ([]BatchRun, error)
}

// FactSource reads the paginated fact sets plus the per-page side queries.
type FactSource interface {
	Policies(ctx context.Context, after *int64, limit int) ([]Policy, error)
	// PremiumSums returns the sum of live, non-photo-fee premiums keyed by
	// policy id. Policies without premiums are absent from the map.
	PremiumSums(ctx context.Context, policyIDs []int64) (map[int64]float64, error)

	Insurees(ctx context.Context, after *int64, limit int) ([]Insuree, error)
	// EnrolledInsureeIDs returns the ids of insurees with at least one live
	// insuree-policy row.
	EnrolledInsureeIDs(ctx context.Context) (map[int64]struct{}, error)

	Premiums(ctx context.Context, after *int64, limit int) ([]Premium, error)

	Claims(ctx context.Context, after *int64, limit int) ([]Claim, error)
	// ClaimDetailRefs returns the live items and services of the given
	// claims, ordered by claim id then detail id.
	ClaimDetailRefs(ctx context.Context, claimIDs []int64) ([]DetailRef, error)

	ClaimItems(ctx context.Context, after *int64, limit int) ([]ClaimDetail, error)
	ClaimServices(ctx context.Context, after *int64, limit int) ([]ClaimDetail, error)

	Bills(ctx context.Context, after *string, limit int) ([]Bill, error)
}

// Source is everything the export pipeline reads.
type Source interface {
	DimensionSource
	FactSource
}
