// Package stats computes time-windowed income/expense aggregates. All
// calendar math runs in UTC.
package stats

import (
	"errors"
	"time"
)

const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

var ErrBadWeekStart = errors.New("week_start must be YYYY-MM-DD")

// Window is a resolved reporting period. Weekly windows filter by the
// Start/End timestamp range; monthly and yearly windows filter by the
// calendar fields, matching how transactions are queried.
type Window struct {
	Period string
	Start  time.Time
	End    time.Time
	Year   int
	Month  int
}

// ResolveWindow turns the raw period parameters into a Window relative to
// now. Anything other than weekly/yearly is treated as monthly, the default
// period.
func ResolveWindow(period string, year, month int, weekStart string, now time.Time) (Window, error) {
	now = now.UTC()

	switch period {
	case PeriodWeekly:
		var start time.Time
		if weekStart != "" {
			parsed, err := time.Parse("2006-01-02", weekStart)
			if err != nil {
				return Window{}, ErrBadWeekStart
			}
			start = parsed.UTC()
		} else {
			// Most recent Monday on or before today.
			offset := (int(now.Weekday()) + 6) % 7
			start = now.AddDate(0, 0, -offset)
		}
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		// End of the seventh day, microsecond precision.
		end := start.AddDate(0, 0, 7).Add(-time.Microsecond)
		return Window{Period: PeriodWeekly, Start: start, End: end}, nil

	case PeriodYearly:
		if year == 0 {
			year = now.Year()
		}
		return Window{Period: PeriodYearly, Year: year}, nil

	default:
		// Year and month default together: a lone month (or lone year) is
		// not a meaningful window.
		if year == 0 || month == 0 {
			year = now.Year()
			month = int(now.Month())
		}
		return Window{Period: PeriodMonthly, Year: year, Month: month}, nil
	}
}
