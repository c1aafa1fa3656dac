package reject

import (
	"fmt"
	"strings"
	"time"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// Month identifies an analysis period. Persisted as its first day, "YYYY-MM-01".
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month int) (Month, error) {
	if year < 1900 || year > 9999 {
		return Month{}, fmt.Errorf("%w: year %d", ErrInvalidMonth, year)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: month %d", ErrInvalidMonth, month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonth accepts "YYYY-MM" or a first-of-month date "YYYY-MM-01".
func ParseMonth(value string) (Month, error) {
	trimmed := strings.TrimSpace(value)
	layout := monthLayout
	if len(trimmed) == len(dateLayout) {
		layout = dateLayout
	}
	parsed, err := time.Parse(layout, trimmed)
	if err != nil || parsed.Day() != 1 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, value)
	}
	return NewMonth(parsed.Year(), int(parsed.Month()))
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the exclusive upper bound of the month.
func (m Month) End() time.Time {
	return m.First().AddDate(0, 1, 0)
}

func (m Month) Previous() Month {
	return MonthOf(m.First().AddDate(0, -1, 0))
}

func (m Month) Before(other Month) bool {
	return m.First().Before(other.First())
}

func (m Month) String() string {
	return m.First().Format(monthLayout)
}

// DateString is the persisted form.
func (m Month) DateString() string {
	return m.First().Format("2006-01-02")
}
