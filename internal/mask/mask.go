// Package mask expands %-token templates such as "%mmmm %d, %yyyy at %h:%MM%tt"
// against an instant and the distance elapsed since it.
//
// A template is tokenized once by Compile and then executed any number of
// times. Text that is not a recognized token is copied through unchanged.
package mask

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zjrosen/sensible/internal/locale"
)

// Kind identifies a token.
type Kind int

const (
	Literal Kind = iota

	Day             // d
	DayPadded       // dd
	DayShortName    // ddd
	DayLongName     // dddd
	Month           // m
	MonthPadded     // mm
	MonthShortName  // mmm
	MonthLongName   // mmmm
	YearShort       // yy
	YearLong        // yyyy
	Hour12          // h
	Hour12Padded    // hh
	Hour24          // H
	Hour24Padded    // HH
	Minute          // M
	MinutePadded    // MM
	Second          // s
	SecondPadded    // ss
	MeridiemLetter  // t
	Meridiem        // tt
	MeridiemLetterU // T
	MeridiemU       // TT
	Ordinal         // S
	ElapsedSeconds  // xs
	ElapsedMinutes  // xm
	ElapsedHours    // xh
	ElapsedDays     // xd
	ElapsedYears    // xy
)

const sigil = '%'

var kinds = map[string]Kind{
	"d": Day, "dd": DayPadded, "ddd": DayShortName, "dddd": DayLongName,
	"m": Month, "mm": MonthPadded, "mmm": MonthShortName, "mmmm": MonthLongName,
	"yy": YearShort, "yyyy": YearLong,
	"h": Hour12, "hh": Hour12Padded, "H": Hour24, "HH": Hour24Padded,
	"M": Minute, "MM": MinutePadded, "s": Second, "ss": SecondPadded,
	"t": MeridiemLetter, "tt": Meridiem, "T": MeridiemLetterU, "TT": MeridiemU,
	"S": Ordinal,
	"xs": ElapsedSeconds, "xm": ElapsedMinutes, "xh": ElapsedHours,
	"xd": ElapsedDays, "xy": ElapsedYears,
}

// Token is one piece of a compiled template. Text holds the literal text for
// Literal tokens and the source spelling (without the sigil) otherwise.
type Token struct {
	Kind Kind
	Text string
}

// Template is a tokenized mask.
type Template []Token

// Context carries the per-render values tokens are expanded from.
type Context struct {
	Instant time.Time
	Seconds float64
	Minutes float64
	Hours   float64
	Days    float64
	Years   float64
}

// NewContext derives the elapsed units from elapsed seconds. Years use a
// fixed 365-day year.
func NewContext(instant time.Time, elapsed float64) Context {
	minutes := elapsed / 60
	hours := minutes / 60
	days := hours / 24
	return Context{
		Instant: instant,
		Seconds: elapsed,
		Minutes: minutes,
		Hours:   hours,
		Days:    days,
		Years:   days / 365,
	}
}

// Compile tokenizes a mask.
func Compile(mask string) Template {
	var (
		tmpl Template
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			tmpl = append(tmpl, Token{Kind: Literal, Text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(mask); {
		if mask[i] != sigil {
			lit.WriteByte(mask[i])
			i++
			continue
		}

		n := scan(mask[i+1:])
		if n == 0 {
			lit.WriteByte(sigil)
			i++
			continue
		}

		spelling := mask[i+1 : i+1+n]
		kind, ok := kinds[spelling]
		if !ok {
			// Matched the token shape but not a token, e.g. "%hM".
			lit.WriteString(mask[i : i+1+n])
			i += 1 + n
			continue
		}

		flush()
		tmpl = append(tmpl, Token{Kind: kind, Text: spelling})
		i += 1 + n
	}
	flush()

	return tmpl
}

// scan returns the length of the token-shaped run at the start of s, or 0.
// Shapes: d{1,4}, m{1,4}, yy or yyyy, one or two of [HhMsTt], x[smhdy], S.
func scan(s string) int {
	if s == "" {
		return 0
	}
	switch c := s[0]; {
	case c == 'd' || c == 'm':
		return run(s, c, 4)
	case c == 'y':
		switch {
		case strings.HasPrefix(s, "yyyy"):
			return 4
		case strings.HasPrefix(s, "yy"):
			return 2
		}
		return 0
	case strings.IndexByte("HhMsTt", c) >= 0:
		if len(s) > 1 && strings.IndexByte("HhMsTt", s[1]) >= 0 {
			return 2
		}
		return 1
	case c == 'x':
		if len(s) > 1 && strings.IndexByte("smhdy", s[1]) >= 0 {
			return 2
		}
		return 0
	case c == 'S':
		return 1
	}
	return 0
}

func run(s string, c byte, limit int) int {
	n := 0
	for n < len(s) && n < limit && s[n] == c {
		n++
	}
	return n
}

// Execute expands the template.
func (t Template) Execute(ctx Context, tables locale.Tables) string {
	var b strings.Builder
	for _, tok := range t {
		b.WriteString(tok.expand(ctx, tables))
	}
	return b.String()
}

func (tok Token) expand(ctx Context, tables locale.Tables) string {
	at := ctx.Instant
	switch tok.Kind {
	case Literal:
		return tok.Text
	case Day:
		return strconv.Itoa(at.Day())
	case DayPadded:
		return Pad(at.Day())
	case DayShortName:
		return tables.ShortDay(at.Weekday())
	case DayLongName:
		return tables.LongDay(at.Weekday())
	case Month:
		return strconv.Itoa(int(at.Month()))
	case MonthPadded:
		return Pad(int(at.Month()))
	case MonthShortName:
		return tables.ShortMonth(at.Month())
	case MonthLongName:
		return tables.LongMonth(at.Month())
	case YearShort:
		year := strconv.Itoa(at.Year())
		if len(year) < 2 {
			return year
		}
		return year[len(year)-2:]
	case YearLong:
		return strconv.Itoa(at.Year())
	case Hour12:
		return strconv.Itoa(hour12(at.Hour()))
	case Hour12Padded:
		return Pad(hour12(at.Hour()))
	case Hour24:
		return strconv.Itoa(at.Hour())
	case Hour24Padded:
		return Pad(at.Hour())
	case Minute:
		return strconv.Itoa(at.Minute())
	case MinutePadded:
		return Pad(at.Minute())
	case Second:
		return strconv.Itoa(at.Second())
	case SecondPadded:
		return Pad(at.Second())
	case MeridiemLetter:
		return meridiem(at.Hour(), "a", "p")
	case Meridiem:
		return meridiem(at.Hour(), "am", "pm")
	case MeridiemLetterU:
		return meridiem(at.Hour(), "A", "P")
	case MeridiemU:
		return meridiem(at.Hour(), "AM", "PM")
	case Ordinal:
		return tables.Ordinal(at.Day())
	case ElapsedSeconds:
		return itoa(round(ctx.Seconds))
	case ElapsedMinutes:
		return itoa(round(ctx.Minutes))
	case ElapsedHours:
		return itoa(round(ctx.Hours))
	case ElapsedDays:
		return itoa(math.Floor(ctx.Days))
	case ElapsedYears:
		return itoa(math.Floor(ctx.Years))
	}
	return string(sigil) + tok.Text
}

// Render compiles and executes mask in one step.
func Render(instant time.Time, elapsed float64, mask string, tables locale.Tables) string {
	return Compile(mask).Execute(NewContext(instant, elapsed), tables)
}

// Pad left-pads a number with zeros to two characters.
func Pad(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 2 {
		s = "0" + s
	}
	return s
}

func hour12(h int) int {
	if h%12 == 0 {
		return 12
	}
	return h % 12
}

func meridiem(h int, am, pm string) string {
	if h < 12 {
		return am
	}
	return pm
}

// round rounds half up, so -2.5 becomes -2.
func round(v float64) float64 {
	return math.Floor(v + 0.5)
}

func itoa(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}
