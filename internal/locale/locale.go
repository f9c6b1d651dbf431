// Package locale holds the day, month and ordinal-suffix name tables used when
// expanding mask tokens. Tables are read-only after validation.
package locale

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyTable is returned when a table does not have the number of entries
// lookups depend on (7 day names, 12 month names, 4 ordinal suffixes).
var ErrEmptyTable = errors.New("locale table has missing entries")

const (
	daysPerWeek    = 7
	monthsPerYear  = 12
	ordinalEntries = 4
)

// Tables groups the name tables. Day tables are Sunday-first, month tables
// January-first. Ordinals holds the suffixes for th, st, nd, rd in that order.
type Tables struct {
	ShortDayNames   []string
	LongDayNames    []string
	ShortMonthNames []string
	LongMonthNames  []string
	Ordinals        []string
}

// Default returns the English tables.
func Default() Tables {
	return Tables{
		ShortDayNames: []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		LongDayNames: []string{
			"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
		},
		ShortMonthNames: []string{
			"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
		},
		LongMonthNames: []string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		Ordinals: []string{"th", "st", "nd", "rd"},
	}
}

// FromNames builds tables from configured name lists. Any nil list falls back
// to the English default for that table.
func FromNames(shortDays, longDays, shortMonths, longMonths []string) (Tables, error) {
	t := Default()
	if shortDays != nil {
		t.ShortDayNames = shortDays
	}
	if longDays != nil {
		t.LongDayNames = longDays
	}
	if shortMonths != nil {
		t.ShortMonthNames = shortMonths
	}
	if longMonths != nil {
		t.LongMonthNames = longMonths
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks every table has exactly the expected number of non-empty entries.
func (t Tables) Validate() error {
	checks := []struct {
		name  string
		names []string
		want  int
	}{
		{"short_day_names", t.ShortDayNames, daysPerWeek},
		{"long_day_names", t.LongDayNames, daysPerWeek},
		{"short_month_names", t.ShortMonthNames, monthsPerYear},
		{"long_month_names", t.LongMonthNames, monthsPerYear},
		{"ordinals", t.Ordinals, ordinalEntries},
	}
	for _, c := range checks {
		if len(c.names) != c.want {
			return fmt.Errorf("%s: got %d entries, want %d: %w", c.name, len(c.names), c.want, ErrEmptyTable)
		}
		for i, n := range c.names {
			if n == "" {
				return fmt.Errorf("%s: entry %d is empty: %w", c.name, i, ErrEmptyTable)
			}
		}
	}
	return nil
}

// ShortDay returns the short name for a weekday.
func (t Tables) ShortDay(d time.Weekday) string { return t.ShortDayNames[d] }

// LongDay returns the long name for a weekday.
func (t Tables) LongDay(d time.Weekday) string { return t.LongDayNames[d] }

// ShortMonth returns the short name for a month.
func (t Tables) ShortMonth(m time.Month) string { return t.ShortMonthNames[m-1] }

// LongMonth returns the long name for a month.
func (t Tables) LongMonth(m time.Month) string { return t.LongMonthNames[m-1] }

// Ordinal returns the English ordinal suffix for a day of month: st, nd, rd
// for days ending in 1, 2, 3 except 11, 12 and 13, th otherwise.
func (t Tables) Ordinal(day int) string {
	last := day % 10
	if last > 3 || (day%100)/10 == 1 {
		return t.Ordinals[0]
	}
	return t.Ordinals[last]
}
