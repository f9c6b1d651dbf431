// Package distance selects the mask template for an instant based on how many
// seconds separate it from now.
package distance

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRules is returned when a rule table cannot be classified against.
var ErrInvalidRules = errors.New("invalid distance rules")

// Rule maps every elapsed distance below Distance seconds (and at or above the
// previous rule's distance) to Mask.
type Rule struct {
	Distance int64  `mapstructure:"distance" yaml:"distance"`
	Mask     string `mapstructure:"mask" yaml:"mask"`
}

// Rules is a table ordered by ascending Distance.
type Rules []Rule

// DefaultRules returns the standard English bands.
func DefaultRules() Rules {
	return Rules{
		{Distance: 60, Mask: "less than a minute ago"},      // within a minute
		{Distance: 120, Mask: "about a minute ago"},         // within 2 minutes
		{Distance: 3600, Mask: "%xm minutes ago"},           // within an hour
		{Distance: 7200, Mask: "about an hour ago"},         // within 2 hours
		{Distance: 86400, Mask: "%xh hours ago"},            // within a day
		{Distance: 172800, Mask: "Yesterday at %h:%MM%tt"},  // within 2 days
		{Distance: 31556926, Mask: "%mmmm %d at %h:%MM%tt"}, // within a year
	}
}

// Validate checks distances are positive and strictly ascending and that
// every rule has a mask.
func (r Rules) Validate() error {
	var prev int64
	for i, rule := range r {
		if rule.Distance <= 0 {
			return fmt.Errorf("rule %d: distance must be positive, got %d: %w", i, rule.Distance, ErrInvalidRules)
		}
		if rule.Distance <= prev {
			return fmt.Errorf("rule %d: distance %d is not greater than %d: %w", i, rule.Distance, prev, ErrInvalidRules)
		}
		if rule.Mask == "" {
			return fmt.Errorf("rule %d: mask is required: %w", i, ErrInvalidRules)
		}
		prev = rule.Distance
	}
	return nil
}

// Elapsed returns the seconds from instant to now. Negative means instant is
// in the future. It avoids time.Duration, which saturates near 292 years.
func Elapsed(instant, now time.Time) float64 {
	return float64(now.Unix()-instant.Unix()) + float64(now.Nanosecond()-instant.Nanosecond())/1e9
}

// Index returns the position of the rule that applies to elapsed seconds.
// It returns -1 for future instants and len(r) when elapsed is beyond every
// threshold.
func (r Rules) Index(elapsed float64) int {
	if elapsed < 0 {
		return -1
	}
	for i, rule := range r {
		if elapsed < float64(rule.Distance) {
			return i
		}
	}
	return len(r)
}

// Classify returns the elapsed seconds between instant and now along with the
// template that applies: future for negative distances, the first rule whose
// distance exceeds the elapsed seconds, or past when none does.
func Classify(instant, now time.Time, rules Rules, future, past string) (float64, string) {
	elapsed := Elapsed(instant, now)

	switch i := rules.Index(elapsed); {
	case i < 0:
		return elapsed, future
	case i == len(rules):
		return elapsed, past
	default:
		return elapsed, rules[i].Mask
	}
}
