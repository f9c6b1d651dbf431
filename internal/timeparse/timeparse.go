// Package timeparse turns loosely ISO-8601 timestamps into instants.
//
// Input is first normalized textually (fraction stripped, date dashes turned
// into slashes, T and Z markers rewritten, numeric offsets compacted) and the
// normalized string is then handed to a general-purpose date parser.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// ErrMalformed is returned for empty or unparseable timestamps.
var ErrMalformed = errors.New("malformed timestamp")

var (
	fractionRe = regexp.MustCompile(`\.\d{3,}`)
	offsetRe   = regexp.MustCompile(`([+-]\d\d):?(\d\d)`)
)

// layouts are tried in order against the normalized string before falling
// back to dateparse. Whitespace runs are collapsed beforehand.
var layouts = []string{
	"2006/1/2 15:04:05 MST",
	"2006/1/2 15:04:05 -0700",
	"2006/1/2 15:04:05 -0700 MST",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04 MST",
	"2006/1/2 15:04 -0700",
	"2006/1/2 15:04",
	"2006/1/2 MST",
	"2006/1/2",
}

// Normalize applies the textual rewrites that precede parsing. Each step
// rewrites only the first match, so at most two dashes are ever touched and a
// trailing negative offset survives as an offset.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)

	if loc := fractionRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + s[loc[1]:]
	}

	s = strings.Replace(s, "-", "/", 2)
	s = strings.Replace(s, "T", " ", 1)
	s = strings.Replace(s, "Z", " UTC", 1)

	if m := offsetRe.FindStringSubmatchIndex(s); m != nil {
		compact := " " + s[m[2]:m[3]] + s[m[4]:m[5]]
		s = s[:m[0]] + compact + s[m[1]:]
	}

	return s
}

// Parse normalizes raw and parses it. Timestamps without zone information are
// interpreted in loc; a nil loc means time.Local. The result is truncated to
// whole seconds.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	s := Normalize(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty input: %w", ErrMalformed)
	}

	collapsed := strings.Join(strings.Fields(s), " ")
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, collapsed, loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}

	// Every accepted timestamp has a digit. Words are rejected here instead
	// of being handed to dateparse.
	if strings.IndexFunc(collapsed, unicode.IsDigit) < 0 {
		return time.Time{}, fmt.Errorf("parsing %q: %w", raw, ErrMalformed)
	}

	t, err := dateparse.ParseIn(collapsed, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %v: %w", raw, err, ErrMalformed)
	}
	return t.Truncate(time.Second), nil
}
