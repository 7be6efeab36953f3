// Package rollup defines the summary granularities, how a transaction date
// maps to a period key for each of them, and how a mutation fans out into
// signed deltas against those keys.
package rollup

import (
	"fmt"
	"time"

	"tallybook/internal/models"
)

// Granularity is the time/category dimension a summary row aggregates over.
// The set is closed; see All.
type Granularity string

const (
	Daily           Granularity = "daily"
	Weekly          Granularity = "weekly"
	Monthly         Granularity = "monthly"
	Yearly          Granularity = "yearly"
	CategoryDaily   Granularity = "category_daily"
	CategoryMonthly Granularity = "category_monthly"
)

// All lists every granularity in fan-out order.
var All = []Granularity{Daily, Weekly, Monthly, Yearly, CategoryDaily, CategoryMonthly}

// Parse validates a granularity name.
func Parse(s string) (Granularity, error) {
	g := Granularity(s)
	if _, ok := periods[g]; !ok {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// CategoryScoped reports whether rows of g are keyed by category and type.
func (g Granularity) CategoryScoped() bool {
	return g == CategoryDaily || g == CategoryMonthly
}

// PeriodStart returns the first calendar day of the period containing date.
func (g Granularity) PeriodStart(date time.Time) time.Time {
	return periods[g].start(models.DateOf(date))
}

// PeriodEnd returns the last calendar day of the period containing date.
func (g Granularity) PeriodEnd(date time.Time) time.Time {
	p := periods[g]
	return p.next(p.start(models.DateOf(date))).AddDate(0, 0, -1)
}

// Widen expands [from, to] to cover whole periods of g.
func (g Granularity) Widen(from, to time.Time) (time.Time, time.Time) {
	return g.PeriodStart(from), g.PeriodEnd(to)
}

type period struct {
	start func(day time.Time) time.Time
	next  func(start time.Time) time.Time
}

var periods = map[Granularity]period{
	Daily:           {start: dayStart, next: func(s time.Time) time.Time { return s.AddDate(0, 0, 1) }},
	Weekly:          {start: WeekStart, next: func(s time.Time) time.Time { return s.AddDate(0, 0, 7) }},
	Monthly:         {start: monthStart, next: func(s time.Time) time.Time { return s.AddDate(0, 1, 0) }},
	Yearly:          {start: yearStart, next: func(s time.Time) time.Time { return s.AddDate(1, 0, 0) }},
	CategoryDaily:   {start: dayStart, next: func(s time.Time) time.Time { return s.AddDate(0, 0, 1) }},
	CategoryMonthly: {start: monthStart, next: func(s time.Time) time.Time { return s.AddDate(0, 1, 0) }},
}

func dayStart(day time.Time) time.Time { return day }

// WeekStart returns the Monday of the ISO week containing date.
func WeekStart(date time.Time) time.Time {
	day := models.DateOf(date)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

func monthStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func yearStart(day time.Time) time.Time {
	return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// PeriodKey is the natural key of one summary row.
type PeriodKey struct {
	Granularity Granularity
	AccountID   string
	// PeriodStart is the first day of the period: the date itself for daily
	// rows, the ISO Monday for weekly rows, the 1st for monthly rows and
	// January 1st for yearly rows.
	PeriodStart time.Time
	CategoryID  string
	Type        models.TransactionType
}

// KeyFor derives the key of granularity g for a transaction dated date.
// categoryID and txType are ignored unless g is category scoped.
func KeyFor(g Granularity, accountID string, date time.Time, categoryID string, txType models.TransactionType) PeriodKey {
	key := PeriodKey{
		Granularity: g,
		AccountID:   accountID,
		PeriodStart: g.PeriodStart(date),
	}
	if g.CategoryScoped() {
		key.CategoryID = categoryID
		key.Type = txType
	}
	return key
}

// Year of the period.
func (k PeriodKey) Year() int { return k.PeriodStart.Year() }

// Month of the period (1-12).
func (k PeriodKey) Month() int { return int(k.PeriodStart.Month()) }

// Label renders the period part of the key the way it is usually read:
// 2025-01-15, 2025-W03 (Monday 2025-01-13), 2025-01, 2025.
func (k PeriodKey) Label() string {
	switch k.Granularity {
	case Weekly:
		y, w := k.PeriodStart.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Monthly, CategoryMonthly:
		return k.PeriodStart.Format("2006-01")
	case Yearly:
		return k.PeriodStart.Format("2006")
	default:
		return k.PeriodStart.Format(time.DateOnly)
	}
}

// String renders the full key, e.g. "monthly/2025-01" or
// "category_daily/2025-01-15/<category>/expense".
func (k PeriodKey) String() string {
	if k.Granularity.CategoryScoped() {
		return fmt.Sprintf("%s/%s/%s/%s", k.Granularity, k.Label(), k.CategoryID, k.Type)
	}
	return fmt.Sprintf("%s/%s", k.Granularity, k.Label())
}

// Less orders keys by period, then category, then type.
func (k PeriodKey) Less(o PeriodKey) bool {
	if !k.PeriodStart.Equal(o.PeriodStart) {
		return k.PeriodStart.Before(o.PeriodStart)
	}
	if k.CategoryID != o.CategoryID {
		return k.CategoryID < o.CategoryID
	}
	return k.Type < o.Type
}
