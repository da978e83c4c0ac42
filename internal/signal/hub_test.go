package signal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memoryrepository "productradar/internal/repository/memory"
)

type recordingIngester struct {
	mu      sync.Mutex
	batches [][]Event
}

func (r *recordingIngester) Ingest(_ context.Context, events []Event) (IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]Event(nil), events...)
	r.batches = append(r.batches, cp)
	return IngestResult{Accepted: len(events)}, nil
}

func (r *recordingIngester) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

type staticCollector struct {
	name   string
	events []Event
	err    error
}

func (c staticCollector) Name() string { return c.name }

func (c staticCollector) Collect(context.Context) ([]Event, error) { return c.events, c.err }

func TestHubCollectOnce_BatchesAndRecordsHealth(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	ing := &recordingIngester{}
	hub := NewHub(ing, store, nil)
	hub.BatchSize = 2

	events := make([]Event, 5)
	for i := range events {
		events[i] = Event{Source: "reddit", SignalType: TypeUpvoteVelocity, RawProductName: "ice roller", Value: float64(i)}
	}
	res, err := hub.CollectOnce(ctx, staticCollector{name: "reddit", events: events})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Accepted)
	assert.Len(t, ing.batches, 3)

	sources, err := store.ListSignalSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "ok", sources[0].HealthStatus)
}

func TestHubCollectOnce_CollectorError(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	hub := NewHub(&recordingIngester{}, store, nil)

	_, err := hub.CollectOnce(ctx, staticCollector{name: "amazon", err: errors.New("captcha wall")})
	require.Error(t, err)

	sources, err := store.ListSignalSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "error", sources[0].HealthStatus)
	require.NotNil(t, sources[0].LastError)
	assert.Contains(t, *sources[0].LastError, "captcha wall")
}

func TestHubShouldDrop(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ev := Event{Source: "tiktok", SignalType: TypeTikTokPopularity, RawProductName: "Cloud Slides", Value: 10, CollectedAt: now}

	assert.False(t, hub.shouldDrop(ev, now))
	assert.True(t, hub.shouldDrop(ev, now.Add(10*time.Second)), "redelivery inside window")

	changed := ev
	changed.Value = 11
	assert.False(t, hub.shouldDrop(changed, now.Add(10*time.Second)))

	assert.False(t, hub.shouldDrop(ev, now.Add(2*time.Minute)), "window elapsed")
	assert.Equal(t, 1, hub.pruneSeen(now.Add(2*time.Minute)), "only the changed value has aged out")
	assert.Equal(t, 1, hub.pruneSeen(now.Add(10*time.Minute)))
}

type chanCollector struct {
	events []Event
}

func (c *chanCollector) Name() string { return "test-stream" }

func (c *chanCollector) Start(ctx context.Context, out chan<- Event) error {
	for _, ev := range c.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func (c *chanCollector) Stop() error { return nil }

func (c *chanCollector) Health() HealthStatus { return HealthStatus{Status: "ok"} }

func TestHubRun_FlushesStreamEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := &recordingIngester{}
	hub := NewHub(ing, memoryrepository.New(), nil)
	hub.FlushInterval = 20 * time.Millisecond
	ev := Event{Source: "nats", SignalType: TypeBreakout, RawProductName: "neck fan", Value: 1}
	hub.Register(&chanCollector{events: []Event{ev, ev, {Source: "nats", SignalType: TypeRising, RawProductName: "neck fan", Value: 1}}})

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	require.Eventually(t, func() bool { return ing.total() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("hub did not stop")
	}
	assert.Equal(t, 2, ing.total(), "duplicate suppressed")
}
