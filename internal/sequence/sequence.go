// Package sequence allocates per-health-facility identifiers. Each facility
// owns one counter row holding the next insuree number, the next claim
// number and the year they belong to; both counters restart at 1 when the
// calendar year changes.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imisexport/internal/apperr"
	"imisexport/internal/metrics"
)

// Field names one of the two counters of a facility.
type Field string

const (
	FieldInsureeID Field = "next_insuree_id"
	FieldClaimID   Field = "next_claim_id"
)

// InvalidFieldError reports a request for a counter that does not exist.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("the ID generator doesn't have any %q field", e.Field)
}

// Unwrap classifies the error as a configuration error for callers that
// only look at apperr kinds.
func (e *InvalidFieldError) Unwrap() error {
	return apperr.Config("sequence", "invalid field %q", e.Field)
}

// ParseField validates a counter name.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldInsureeID, FieldClaimID:
		return f, nil
	}
	return "", &InvalidFieldError{Field: s}
}

// Counter is the persisted state of one facility.
type Counter struct {
	FacilityID    int64
	NextInsureeID int64
	NextClaimID   int64
	Year          int
}

// NewCounter is the state of a facility seen for the first time.
func NewCounter(hfID int64, year int) Counter {
	return Counter{FacilityID: hfID, NextInsureeID: 1, NextClaimID: 1, Year: year}
}

func (c *Counter) slot(f Field) *int64 {
	switch f {
	case FieldInsureeID:
		return &c.NextInsureeID
	case FieldClaimID:
		return &c.NextClaimID
	}
	return nil
}

// Take returns the current value of f and advances it, first restarting
// both counters if the stored year is not year.
func (c *Counter) Take(f Field, year int) (int64, error) {
	p := c.slot(f)
	if p == nil {
		return 0, &InvalidFieldError{Field: string(f)}
	}
	if c.Year != year {
		c.NextInsureeID, c.NextClaimID, c.Year = 1, 1, year
	}
	v := *p
	*p = v + 1
	return v, nil
}

// Store persists counters.
//
// WithLockedCounter must create the counter of hfID with NewCounter(hfID,
// year) when it does not exist, hold an exclusive lock on it while fn runs,
// and persist whatever fn left in the counter, all atomically. When fn
// returns an error nothing is persisted. Locks on different facilities must
// not contend.
type Store interface {
	WithLockedCounter(ctx context.Context, hfID int64, year int, fn func(*Counter) error) error
}

// Generator hands out identifiers from a Store.
type Generator struct {
	store Store
	// Now is the clock that decides the current year.
	Now    func() time.Time
	Logger zerolog.Logger
}

// New returns a Generator on the wall clock.
func New(store Store) *Generator {
	return &Generator{
		store:  store,
		Now:    time.Now,
		Logger: log.With().Str("component", "sequence").Logger(),
	}
}

// FetchNext returns the next value of field for the facility and advances
// the counter.
func (g *Generator) FetchNext(ctx context.Context, hfID int64, field Field) (int64, error) {
	if _, err := ParseField(string(field)); err != nil {
		metrics.RecordSequence(string(field), err)
		return 0, err
	}
	year := g.Now().Year()

	var v int64
	err := g.store.WithLockedCounter(ctx, hfID, year, func(c *Counter) error {
		var err error
		v, err = c.Take(field, year)
		return err
	})
	metrics.RecordSequence(string(field), err)
	if err != nil {
		g.Logger.Error().Err(err).Int64("hf_id", hfID).Str("field", string(field)).Msg("sequence allocation failed")
		return 0, err
	}
	g.Logger.Debug().Int64("hf_id", hfID).Str("field", string(field)).Int64("value", v).Msg("sequence allocated")
	return v, nil
}

// NextInsureeID allocates the next insuree number of the facility.
func (g *Generator) NextInsureeID(ctx context.Context, hfID int64) (int64, error) {
	return g.FetchNext(ctx, hfID, FieldInsureeID)
}

// NextClaimID allocates the next claim number of the facility.
func (g *Generator) NextClaimID(ctx context.Context, hfID int64) (int64, error) {
	return g.FetchNext(ctx, hfID, FieldClaimID)
}
