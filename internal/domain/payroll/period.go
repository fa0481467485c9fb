package payroll

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is a calendar month, labelled "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a "YYYY-MM" label.
func ParsePeriod(label string) (Period, error) {
	t, err := time.Parse(periodLayout, label)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start returns the first instant of the period (UTC).
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return p.End().AddDate(0, 0, -1).Day()
}

// Weekdays counts Monday through Friday in the period.
func (p Period) Weekdays() int {
	n := 0
	for d := p.Start(); d.Before(p.End()); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
