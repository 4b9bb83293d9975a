package domain

import (
	"fmt"
	"sort"
	"time"
)

// isoDate is the calendar-day layout used everywhere dates are serialized.
const isoDate = "2006-01-02"

// Date is a civil calendar day with no time-of-day or zone component.
// The zero Date is "no date". Date is comparable and usable as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates a time to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, ErrValidation)
	}
	return DateOf(t), nil
}

// Time returns the date as UTC midnight.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string  { return d.Time().Format(isoDate) }
func (d Date) IsZero() bool    { return d == Date{} }
func (d Date) Next() Date      { return DateOf(d.Time().AddDate(0, 0, 1)) }
func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool  { return d.Time().After(o.Time()) }

// MarshalJSON encodes the date as an ISO "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("date must be a JSON string: %w", ErrValidation)
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SortDates orders dates ascending in place.
func SortDates(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From Date `json:"from"`
	Thru Date `json:"thru"`
}

// NewDateRange builds a range, failing with ErrValidation when thru precedes
// from.
func NewDateRange(from, thru Date) (DateRange, error) {
	if thru.Before(from) {
		return DateRange{}, fmt.Errorf("range end %s precedes start %s: %w", thru, from, ErrValidation)
	}
	return DateRange{From: from, Thru: thru}, nil
}

// SingleDay builds the one-day range covering date.
func SingleDay(date Date) DateRange {
	return DateRange{From: date, Thru: date}
}

// Covers reports whether date falls inside the range.
func (r DateRange) Covers(date Date) bool {
	return !date.Before(r.From) && !date.After(r.Thru)
}

// IsOneDay reports whether the range covers a single day.
func (r DateRange) IsOneDay() bool { return r.From == r.Thru }

// Days expands the range to its ordered list of dates.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.From; !d.After(r.Thru); d = d.Next() {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	if r.IsOneDay() {
		return r.From.String()
	}
	return r.From.String() + " thru " + r.Thru.String()
}

// GroupDates collapses dates into contiguous inclusive ranges. The input
// need not be sorted; duplicates collapse. Given 2020-01-01, 2020-01-02 and
// 2020-01-05 the result is [2020-01-01..2020-01-02, 2020-01-05..2020-01-05].
func GroupDates(dates []Date) []DateRange {
	if len(dates) == 0 {
		return nil
	}
	sorted := make([]Date, len(dates))
	copy(sorted, dates)
	SortDates(sorted)

	var ranges []DateRange
	current := SingleDay(sorted[0])
	for _, date := range sorted[1:] {
		switch {
		case date == current.Thru:
			// duplicate
		case date == current.Thru.Next():
			current.Thru = date
		default:
			ranges = append(ranges, current)
			current = SingleDay(date)
		}
	}
	return append(ranges, current)
}
