package refresh_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/sensible/internal/cachemanager"
	"github.com/zjrosen/sensible/internal/distance"
	"github.com/zjrosen/sensible/internal/mocks"
	"github.com/zjrosen/sensible/internal/pubsub"
	"github.com/zjrosen/sensible/internal/refresh"
	"github.com/zjrosen/sensible/internal/sensible"
	"github.com/zjrosen/sensible/internal/tracing"
)

var base = time.Date(2011, 9, 26, 10, 0, 0, 0, time.UTC)

// testClock is a mock clock whose time can be moved forward.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) get() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func newClock(t *testing.T, now time.Time) (*testClock, sensible.Clock) {
	tc := &testClock{now: now}
	m := mocks.NewMockClock(t)
	m.EXPECT().Now().RunAndReturn(tc.get).Maybe()
	return tc, m
}

func newFormatter(t *testing.T, clock sensible.Clock, mutate func(*sensible.Options)) *sensible.Formatter {
	t.Helper()
	opts := sensible.DefaultOptions()
	opts.Location = time.UTC
	if mutate != nil {
		mutate(&opts)
	}
	f, err := sensible.New(opts, clock)
	require.NoError(t, err)
	return f
}

func next(t *testing.T, ch <-chan pubsub.Event[refresh.Update]) pubsub.Event[refresh.Update] {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for refresh event")
		return pubsub.Event[refresh.Update]{}
	}
}

func TestRefresher_AddRendersImmediately(t *testing.T) {
	_, clock := newClock(t, base.Add(30*time.Second))
	r := refresh.New(newFormatter(t, clock, nil), time.Minute)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Subscribe(ctx)

	id := r.Add("2011-09-26T10:00:00Z")
	require.NotEmpty(t, id)

	event := next(t, events)
	require.Equal(t, pubsub.AddedEvent, event.Type)
	require.Equal(t, refresh.Update{ID: id, Raw: "2011-09-26T10:00:00Z", Text: "less than a minute ago"}, event.Payload)

	require.Equal(t, []refresh.Update{event.Payload}, r.Snapshot())
}

func TestRefresher_RefreshPublishesOnlyChanges(t *testing.T) {
	tc, clock := newClock(t, base.Add(30*time.Second))
	r := refresh.New(newFormatter(t, clock, nil), time.Minute)
	defer r.Close()

	r.AddWithID("a", "2011-09-26T10:00:00Z")
	r.AddWithID("b", "2011-09-26T09:00:00Z")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Subscribe(ctx)

	// 10:01:00 -> a moves to "about a minute ago", b stays "about an hour ago"
	tc.advance(30 * time.Second)
	require.Equal(t, 1, r.Refresh(ctx))

	event := next(t, events)
	require.Equal(t, pubsub.UpdatedEvent, event.Type)
	require.Equal(t, refresh.Update{ID: "a", Raw: "2011-09-26T10:00:00Z", Text: "about a minute ago"}, event.Payload)

	require.Zero(t, r.Refresh(ctx), "nothing changed")

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "a", snap[0].ID)
	require.Equal(t, "about an hour ago", snap[1].Text)
}

func TestRefresher_UnparseableKeepsText(t *testing.T) {
	_, clock := newClock(t, base)
	r := refresh.New(newFormatter(t, clock, nil), time.Minute)
	defer r.Close()

	r.AddWithID("bad", "not a date")
	require.Zero(t, r.Refresh(context.Background()))
	require.Equal(t, []refresh.Update{{ID: "bad", Raw: "not a date", Text: "not a date"}}, r.Snapshot())
}

func TestRefresher_ParsesOnce(t *testing.T) {
	_, clock := newClock(t, base)
	cache := cachemanager.NewInMemoryCacheManager[string, time.Time]("test", cachemanager.NoExpiration, time.Minute)
	r := refresh.New(newFormatter(t, clock, nil), time.Minute, refresh.WithCache(cache))
	defer r.Close()

	r.AddWithID("a", "2011-09-26T10:00:00Z")
	r.AddWithID("b", "garbage")
	require.Equal(t, 1, cache.Count(), "failed parses are not cached")

	cached, ok := cache.Get(context.Background(), "a")
	require.True(t, ok)
	require.True(t, base.Equal(cached))

	require.True(t, r.Remove("a"))
	require.Zero(t, cache.Count())
}

func TestRefresher_Remove(t *testing.T) {
	_, clock := newClock(t, base)
	r := refresh.New(newFormatter(t, clock, nil), time.Minute)
	defer r.Close()

	r.AddWithID("a", "2011-09-26T10:00:00Z")
	r.AddWithID("b", "2011-09-26T10:00:00Z")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Subscribe(ctx)

	require.False(t, r.Remove("missing"))
	require.True(t, r.Remove("a"))

	event := next(t, events)
	require.Equal(t, pubsub.RemovedEvent, event.Type)
	require.Equal(t, "a", event.Payload.ID)

	require.Equal(t, 1, r.Len())
	require.Equal(t, "b", r.Snapshot()[0].ID)
}

func TestRefresher_AddWithIDReplaces(t *testing.T) {
	_, clock := newClock(t, base.Add(30*time.Second))
	r := refresh.New(newFormatter(t, clock, nil), time.Minute)
	defer r.Close()

	r.AddWithID("a", "2011-09-26T10:00:00Z")
	r.AddWithID("a", "2011-09-26T09:00:00Z")

	require.Equal(t, []refresh.Update{{ID: "a", Raw: "2011-09-26T09:00:00Z", Text: "about an hour ago"}}, r.Snapshot())
}

func TestRefresher_SetFormatterReparses(t *testing.T) {
	_, clock := newClock(t, time.Date(2011, 9, 26, 12, 0, 0, 0, time.UTC))
	hoursOnly := func(o *sensible.Options) {
		o.Rules = distance.Rules{}
		o.PastMask = "%xh"
	}
	r := refresh.New(newFormatter(t, clock, hoursOnly), time.Minute)
	defer r.Close()

	// Zoneless: 10:00 UTC under the first formatter
	r.AddWithID("a", "2011-09-26 10:00:00")
	require.Equal(t, "2", r.Snapshot()[0].Text)

	// 10:00 JST is 01:00 UTC
	r.SetFormatter(context.Background(), newFormatter(t, clock, func(o *sensible.Options) {
		hoursOnly(o)
		o.Location = time.FixedZone("JST", 9*60*60)
	}))
	require.Equal(t, 1, r.Refresh(context.Background()))
	require.Equal(t, "11", r.Snapshot()[0].Text)
}

func TestRefresher_Run(t *testing.T) {
	tc, clock := newClock(t, base.Add(30*time.Second))
	r := refresh.New(newFormatter(t, clock, nil), 10*time.Millisecond)
	defer r.Close()

	r.AddWithID("a", "2011-09-26T10:00:00Z")

	ctx, cancel := context.WithCancel(context.Background())
	events := r.Subscribe(ctx)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	tc.advance(4*time.Minute + 30*time.Second)
	event := next(t, events)
	require.Equal(t, pubsub.UpdatedEvent, event.Type)
	require.Equal(t, "5 minutes ago", event.Payload.Text)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.FailNow(t, "Run did not stop after cancel")
	}
}

func TestRefresher_RunRejectsZeroRate(t *testing.T) {
	_, clock := newClock(t, base)
	r := refresh.New(newFormatter(t, clock, nil), 0)
	defer r.Close()

	require.Error(t, r.Run(context.Background()))
}

func TestRefresher_TracesTicks(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tc, clock := newClock(t, base.Add(30*time.Second))
	r := refresh.New(newFormatter(t, clock, nil), time.Minute, refresh.WithTracer(provider.Tracer("test")))
	defer r.Close()

	r.AddWithID("a", "2011-09-26T10:00:00Z")
	r.AddWithID("b", "nope")
	tc.advance(time.Minute)
	r.Refresh(context.Background())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, tracing.SpanRefreshTick, spans[0].Name())
	require.ElementsMatch(t, []attribute.KeyValue{
		attribute.Int(tracing.AttrElements, 2),
		attribute.Int(tracing.AttrChanged, 1),
		attribute.Int(tracing.AttrFailed, 1),
	}, spans[0].Attributes())
}

func TestRefresher_ConcurrentAdd(t *testing.T) {
	_, clock := newClock(t, base)
	r := refresh.New(newFormatter(t, clock, nil), time.Minute)
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add("2011-09-26T10:00:00Z")
			r.Refresh(context.Background())
		}()
	}
	wg.Wait()

	require.Equal(t, 20, r.Len())
	for _, u := range r.Snapshot() {
		require.Equal(t, "less than a minute ago", u.Text)
	}
}
