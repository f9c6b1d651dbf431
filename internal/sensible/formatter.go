// Package sensible renders timestamps as relative ("5 minutes ago") or
// absolute mask-based strings depending on how far they are from now.
//
// A Formatter composes the parser, the distance classifier and the mask
// renderer. It holds only immutable configuration and is safe for concurrent
// use.
package sensible

import (
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/sensible/internal/distance"
	"github.com/zjrosen/sensible/internal/locale"
	"github.com/zjrosen/sensible/internal/log"
	"github.com/zjrosen/sensible/internal/mask"
	"github.com/zjrosen/sensible/internal/timeparse"
)

// DefaultMask is used for both past and future instants outside the rule table.
const DefaultMask = "%mmmm %d, %yyyy at %h:%MM%tt"

// Options configures a Formatter.
type Options struct {
	Locale     locale.Tables
	Rules      distance.Rules
	PastMask   string
	FutureMask string
	// Location is where zoneless timestamps are interpreted and where
	// instants are rendered. Nil means time.Local.
	Location *time.Location
}

// DefaultOptions returns the English defaults.
func DefaultOptions() Options {
	return Options{
		Locale:     locale.Default(),
		Rules:      distance.DefaultRules(),
		PastMask:   DefaultMask,
		FutureMask: DefaultMask,
		Location:   time.Local,
	}
}

// Validate checks the locale tables and rule table.
func (o Options) Validate() error {
	if err := o.Locale.Validate(); err != nil {
		return fmt.Errorf("locale: %w", err)
	}
	if err := o.Rules.Validate(); err != nil {
		return fmt.Errorf("masks: %w", err)
	}
	if o.PastMask == "" {
		return errors.New("past_mask is required")
	}
	if o.FutureMask == "" {
		return errors.New("future_mask is required")
	}
	return nil
}

// Formatter turns timestamps into display strings.
type Formatter struct {
	opts      Options
	clock     Clock
	templates map[string]mask.Template
}

// New validates opts and pre-compiles every mask. A nil clock means RealClock.
func New(opts Options, clock Clock) (*Formatter, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid formatter options: %w", err)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if clock == nil {
		clock = RealClock{}
	}

	templates := make(map[string]mask.Template, len(opts.Rules)+2)
	for _, m := range append([]string{opts.PastMask, opts.FutureMask}, masks(opts.Rules)...) {
		if _, ok := templates[m]; !ok {
			templates[m] = mask.Compile(m)
		}
	}

	log.Debug(log.CatRender, "formatter ready", "rules", len(opts.Rules), "location", opts.Location)

	return &Formatter{opts: opts, clock: clock, templates: templates}, nil
}

func masks(rules distance.Rules) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Mask
	}
	return out
}

// Options returns the options the formatter was built with.
func (f *Formatter) Options() Options {
	return f.opts
}

// Parse parses raw, interpreting zoneless timestamps in the formatter's location.
func (f *Formatter) Parse(raw string) (time.Time, error) {
	return timeparse.Parse(raw, f.opts.Location)
}

// Now returns the formatter clock's current time. Callers rendering a batch
// read it once so every element is measured against the same instant.
func (f *Formatter) Now() time.Time {
	return f.clock.Now()
}

// Format renders t relative to the clock's current time.
func (f *Formatter) Format(t time.Time) string {
	return f.FormatAt(t, f.clock.Now())
}

// FormatAt renders t relative to now.
func (f *Formatter) FormatAt(t, now time.Time) string {
	elapsed, m := distance.Classify(t, now, f.opts.Rules, f.opts.FutureMask, f.opts.PastMask)
	tmpl, ok := f.templates[m]
	if !ok {
		tmpl = mask.Compile(m)
	}
	return tmpl.Execute(mask.NewContext(t.In(f.opts.Location), elapsed), f.opts.Locale)
}

// FormatString parses raw and renders it. A malformed timestamp yields an
// empty string and an error wrapping timeparse.ErrMalformed.
func (f *Formatter) FormatString(raw string) (string, error) {
	t, err := f.Parse(raw)
	if err != nil {
		log.Debug(log.CatParse, "skipping unparseable timestamp", "raw", raw, "error", err)
		return "", err
	}
	return f.Format(t), nil
}
