// Package dataset defines the six flat datasets published to the warehouse:
// their headers, their row transformers, and how each one is extracted from
// the source page by page.
package dataset

import (
	"fmt"
	"time"
)

// Row is one output record. Values are string, int64, float64, bool, Date
// or nil, in header order.
type Row []any

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String renders YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// optDate returns nil for a nil time, else its Date.
func optDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return DateOf(*t)
}

func amount(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Age returns the age in whole years at the reference date, or nil when
// the date of birth is unknown. A birthday later in the year than the
// reference date has not happened yet.
func Age(dob *time.Time, at time.Time) any {
	if dob == nil {
		return nil
	}
	by, bm, bd := dob.Date()
	ry, rm, rd := at.Date()
	age := ry - by
	if rm < bm || (rm == bm && rd < bd) {
		age--
	}
	return int64(age)
}
