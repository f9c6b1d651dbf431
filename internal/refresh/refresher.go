// Package refresh keeps a set of registered timestamps rendered against the
// current time and republishes their text whenever it changes.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/sensible/internal/cachemanager"
	"github.com/zjrosen/sensible/internal/log"
	"github.com/zjrosen/sensible/internal/pubsub"
	"github.com/zjrosen/sensible/internal/sensible"
	"github.com/zjrosen/sensible/internal/tracing"
)

// Update is the payload of every event the refresher publishes.
type Update struct {
	ID   string
	Raw  string
	Text string
}

type element struct {
	raw    string
	text   string
	failed bool
}

// Refresher owns the registered elements. All methods are safe for concurrent
// use.
type Refresher struct {
	mu        sync.Mutex
	formatter *sensible.Formatter
	rate      time.Duration
	order     []string
	elements  map[string]*element
	cache     cachemanager.CacheManager[string, time.Time]
	instants  *cachemanager.ReadThroughCache[string, time.Time, string]
	broker    *pubsub.Broker[Update]
	tracer    trace.Tracer
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithTracer records a span for every refresh.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Refresher) {
		r.tracer = tracer
	}
}

// WithCache replaces the in-memory instant cache.
func WithCache(cache cachemanager.CacheManager[string, time.Time]) Option {
	return func(r *Refresher) {
		r.cache = cache
	}
}

// New creates a refresher that re-renders every rate.
func New(formatter *sensible.Formatter, rate time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		formatter: formatter,
		rate:      rate,
		elements:  make(map[string]*element),
		broker:    pubsub.NewBroker[Update](),
		tracer:    noop.NewTracerProvider().Tracer(tracing.ServiceName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cachemanager.NewInMemoryCacheManager[string, time.Time](
			"instants", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval)
	}
	r.instants = cachemanager.NewReadThroughCache(r.cache, r.parse, false)
	return r
}

// parse is the cache loader. Callers hold r.mu.
func (r *Refresher) parse(_ context.Context, raw string) (time.Time, error) {
	return r.formatter.Parse(raw)
}

// Subscribe returns a channel of added, updated and removed events.
func (r *Refresher) Subscribe(ctx context.Context) <-chan pubsub.Event[Update] {
	return r.broker.Subscribe(ctx)
}

// Rate returns the refresh interval.
func (r *Refresher) Rate() time.Duration {
	return r.rate
}

// Add registers raw under a generated id, renders it and returns the id.
func (r *Refresher) Add(raw string) string {
	id := uuid.NewString()
	r.AddWithID(id, raw)
	return id
}

// AddWithID registers raw under id, replacing any element with the same id.
// The element is rendered immediately. An unparseable raw string keeps its
// original text.
func (r *Refresher) AddWithID(id, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	if _, ok := r.elements[id]; ok {
		_ = r.cache.Delete(ctx, id)
	} else {
		r.order = append(r.order, id)
	}

	el := &element{raw: raw, text: raw}
	r.elements[id] = el
	r.render(ctx, id, el, r.formatter.Now())

	log.Debug(log.CatRefresh, "Added element", "id", id, "raw", raw)
	r.broker.Publish(pubsub.AddedEvent, Update{ID: id, Raw: raw, Text: el.text})
}

// Remove unregisters id. It returns false when id is unknown.
func (r *Refresher) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.elements[id]
	if !ok {
		return false
	}
	delete(r.elements, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	_ = r.cache.Delete(context.Background(), id)

	log.Debug(log.CatRefresh, "Removed element", "id", id)
	r.broker.Publish(pubsub.RemovedEvent, Update{ID: id, Raw: el.raw, Text: el.text})
	return true
}

// render updates el.text and reports whether it changed. Callers hold r.mu.
func (r *Refresher) render(ctx context.Context, id string, el *element, now time.Time) bool {
	instant, err := r.instants.Get(ctx, id, el.raw, cachemanager.NoExpiration)
	if err != nil {
		if !el.failed {
			log.Warn(log.CatParse, "Leaving unparseable timestamp as is", "id", id, "raw", el.raw, "error", err)
			el.failed = true
		}
		return false
	}
	el.failed = false

	text := r.formatter.FormatAt(instant, now)
	if text == el.text {
		return false
	}
	el.text = text
	return true
}

// Refresh re-renders every element against the formatter's current time and
// publishes an update for each element whose text changed. It returns the
// number of changed elements.
func (r *Refresher) Refresh(ctx context.Context) int {
	ctx, span := r.tracer.Start(ctx, tracing.SpanRefreshTick)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.formatter.Now()
	changed, failed := 0, 0
	for _, id := range r.order {
		el := r.elements[id]
		if r.render(ctx, id, el, now) {
			changed++
			r.broker.Publish(pubsub.UpdatedEvent, Update{ID: id, Raw: el.raw, Text: el.text})
		}
		if el.failed {
			failed++
		}
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrElements, len(r.order)),
		attribute.Int(tracing.AttrChanged, changed),
		attribute.Int(tracing.AttrFailed, failed),
	)
	if changed > 0 {
		log.Debug(log.CatRefresh, "Refreshed", "elements", len(r.order), "changed", changed)
	}
	return changed
}

// Run refreshes immediately and then every rate until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	if r.rate <= 0 {
		return fmt.Errorf("refresh rate must be positive, got %s", r.rate)
	}

	r.Refresh(ctx)

	ticker := time.NewTicker(r.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// SetFormatter swaps the formatter after a config reload. Cached instants are
// dropped because the new formatter may interpret zoneless timestamps in a
// different location; the next Refresh re-renders everything.
func (r *Refresher) SetFormatter(ctx context.Context, formatter *sensible.Formatter) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanReload)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.formatter = formatter
	if err := r.instants.Invalidate(ctx); err != nil {
		log.ErrorErr(log.CatCache, "Failed to flush instant cache", err)
	}
	for _, el := range r.elements {
		el.failed = false
	}
	log.Info(log.CatRefresh, "Formatter replaced", "elements", len(r.order))
}

// Snapshot returns the current texts in insertion order.
func (r *Refresher) Snapshot() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Update, 0, len(r.order))
	for _, id := range r.order {
		el := r.elements[id]
		out = append(out, Update{ID: id, Raw: el.raw, Text: el.text})
	}
	return out
}

// Len returns the number of registered elements.
func (r *Refresher) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Close shuts down the event broker. Subscribers' channels are closed.
func (r *Refresher) Close() {
	r.broker.Close()
}
