// Package calendar provides a civil date type used for order days and locks.
package calendar

import (
	"time"

	"github.com/go-faster/errors"
)

// Layout is the wire and storage representation of a Date.
const Layout = "2006-01-02"

// Date is a calendar day without a time of day or zone.
//
// The zero value is not a valid date; use IsZero to detect it.
type Date struct {
	t time.Time
}

// New returns the date for the given year, month and day. Out-of-range
// values are normalised the same way time.Date does.
func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, errors.Wrapf(err, "parse date %q", s)
	}
	return Date{t: t}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return New(y, m, d)
}

// Today returns the current day in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return FromTime(now.In(loc))
}

// Time returns midnight UTC of the date. This is the value stored in DATE columns.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DayNumber returns the number of days since the Unix epoch.
func (d Date) DayNumber() int64 {
	return d.t.Unix() / int64(24*time.Hour/time.Second)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}
