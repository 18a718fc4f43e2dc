// Package calendar provides a civil date value type used for observation
// schedules and daily price series. Dates carry no time-of-day or zone.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the canonical textual form of a Date.
const Layout = "2006-01-02"

// ErrInvalidDate is returned when a string cannot be parsed as a Date.
var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day. The zero value is "no date" (see IsZero).
// Dates are comparable and may be used as map keys.
type Date struct {
	days int32 // days since 0001-01-01, offset by one so that zero means unset
}

// unixEpochDays is the encoded value of 1970-01-01.
const unixEpochDays = 719162 + 1

// New returns the Date for year, month, day. Out-of-range values are
// normalized the way time.Date normalizes them.
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar day of t in t's own location. Days before
// 0001-01-01 are not representable and collapse to the zero Date.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	if y < 1 {
		return Date{}
	}
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date{days: int32(u.Unix()/86400) + unixEpochDays}
}

// Today returns the current date in UTC.
func Today() Date {
	return FromTime(time.Now().UTC())
}

// Parse parses a date in YYYY-MM-DD form.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return FromTime(t), nil
}

// MustParse is Parse for literals in tests and fixtures. It panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the unset date.
func (d Date) IsZero() bool {
	return d.days == 0
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Unix(int64(d.days-unixEpochDays)*86400, 0).UTC()
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{days: d.days + int32(n)}
}

// DaysSince returns the number of days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.days - other.days)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.days < other.days }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.days > other.days }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.days < other.days:
		return -1
	case d.days > other.days:
		return 1
	default:
		return 0
	}
}

// Min returns the earlier of a and b.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(Layout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Range calls fn for every day in [from, to] in ascending order.
func Range(from, to Date, fn func(Date)) {
	for d := from; !d.After(to); d = d.AddDays(1) {
		fn(d)
	}
}
