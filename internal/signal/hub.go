package signal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"productradar/internal/logger"
	"productradar/internal/models"
	"productradar/internal/normalize"
)

const (
	defaultHubBatchSize     = 100
	defaultHubFlushInterval = time.Second
	defaultDedupWindow      = time.Minute
)

// Ingester is satisfied by *Ingestor.
type Ingester interface {
	Ingest(ctx context.Context, events []Event) (IngestResult, error)
}

// SourceStore records collector health.
type SourceStore interface {
	UpsertSignalSource(ctx context.Context, item *models.SignalSource) error
}

// Hub runs stream collectors, suppresses redelivered events and hands
// batches to the ingestor. Pull collectors go through CollectOnce.
type Hub struct {
	collectors map[string]StreamCollector
	mu         sync.RWMutex

	ingest  Ingester
	sources SourceStore
	logger  *zap.Logger

	BatchSize      int
	FlushInterval  time.Duration
	DedupWindow    time.Duration
	HealthInterval time.Duration

	dedupMu        sync.Mutex
	lastSeen       map[string]time.Time
	droppedDedup   uint64
	ingestFailures uint64
	accepted       uint64
}

func NewHub(ingest Ingester, sources SourceStore, logger *zap.Logger) *Hub {
	return &Hub{
		collectors: map[string]StreamCollector{},
		ingest:     ingest,
		sources:    sources,
		logger:     logger,
		lastSeen:   map[string]time.Time{},
	}
}

func (h *Hub) Register(c StreamCollector) {
	if h == nil || c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.collectors[c.Name()] = c
}

func (h *Hub) Run(ctx context.Context) error {
	if h == nil {
		return nil
	}
	log := logger.OrNop(h.logger)
	out := make(chan Event, 256)

	h.mu.RLock()
	collectors := make([]StreamCollector, 0, len(h.collectors))
	for _, c := range h.collectors {
		collectors = append(collectors, c)
	}
	h.mu.RUnlock()

	for _, c := range collectors {
		c := c
		h.upsertSource(ctx, c.Name(), c, HealthStatus{Status: "unknown"})
		go func() {
			if err := c.Start(ctx, out); err != nil {
				log.Warn("stream collector stopped", zap.String("collector", c.Name()), zap.Error(err))
			}
		}()
	}

	flushTicker := time.NewTicker(h.flushInterval())
	defer flushTicker.Stop()
	healthTicker := time.NewTicker(h.healthInterval())
	defer healthTicker.Stop()
	statsTicker := time.NewTicker(60 * time.Second)
	defer statsTicker.Stop()

	batch := make([]Event, 0, h.batchSize())
	for {
		select {
		case <-ctx.Done():
			for _, c := range collectors {
				_ = c.Stop()
			}
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			h.flush(drainCtx, batch)
			cancel()
			return ctx.Err()
		case <-flushTicker.C:
			h.flush(ctx, batch)
			batch = batch[:0]
		case <-healthTicker.C:
			for _, c := range collectors {
				h.upsertSource(ctx, c.Name(), c, c.Health())
			}
		case <-statsTicker.C:
			pruned := h.pruneSeen(time.Now().UTC())
			log.Info("signal hub stats",
				zap.Uint64("accepted", atomic.LoadUint64(&h.accepted)),
				zap.Uint64("dropped_dedup", atomic.LoadUint64(&h.droppedDedup)),
				zap.Uint64("ingest_failures", atomic.LoadUint64(&h.ingestFailures)),
				zap.Int("dedup_pruned", pruned),
			)
		case ev := <-out:
			if h.shouldDrop(ev, time.Now().UTC()) {
				atomic.AddUint64(&h.droppedDedup, 1)
				continue
			}
			batch = append(batch, ev)
			if len(batch) >= h.batchSize() {
				h.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// CollectOnce polls a pull collector and ingests what it returns in batches.
func (h *Hub) CollectOnce(ctx context.Context, c Collector) (IngestResult, error) {
	var total IngestResult
	if h == nil || c == nil {
		return total, nil
	}
	now := time.Now().UTC()
	events, err := c.Collect(ctx)
	if err != nil {
		msg := err.Error()
		h.upsertSource(ctx, c.Name(), c, HealthStatus{Status: "error", LastPollAt: &now, LastError: &msg})
		return total, fmt.Errorf("collect %s: %w", c.Name(), err)
	}
	h.upsertSource(ctx, c.Name(), c, HealthStatus{Status: "ok", LastPollAt: &now})

	size := h.batchSize()
	for start := 0; start < len(events); start += size {
		end := start + size
		if end > len(events) {
			end = len(events)
		}
		res, err := h.ingest.Ingest(ctx, events[start:end])
		total.Merge(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (h *Hub) flush(ctx context.Context, batch []Event) {
	if len(batch) == 0 || h.ingest == nil {
		return
	}
	res, err := h.ingest.Ingest(ctx, batch)
	atomic.AddUint64(&h.accepted, uint64(res.Accepted))
	if err != nil {
		atomic.AddUint64(&h.ingestFailures, 1)
		logger.OrNop(h.logger).Warn("stream batch ingest failed", zap.Int("size", len(batch)), zap.Error(err))
	}
}

func (h *Hub) shouldDrop(ev Event, now time.Time) bool {
	window := h.DedupWindow
	if window == 0 {
		window = defaultDedupWindow
	}
	if window < 0 {
		return false
	}
	key := dedupKey(ev)
	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()
	if last, ok := h.lastSeen[key]; ok && now.Sub(last) < window {
		return true
	}
	h.lastSeen[key] = now
	return false
}

func (h *Hub) pruneSeen(now time.Time) int {
	window := h.DedupWindow
	if window <= 0 {
		window = defaultDedupWindow
	}
	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()
	n := 0
	for k, t := range h.lastSeen {
		if now.Sub(t) >= window {
			delete(h.lastSeen, k)
			n++
		}
	}
	return n
}

// dedupKey is coarse on purpose: it only suppresses broker redelivery.
func dedupKey(ev Event) string {
	collected := ""
	if !ev.CollectedAt.IsZero() {
		collected = strconv.FormatInt(ev.CollectedAt.UnixNano(), 10)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		ev.Source,
		ev.SignalType,
		normalize.Key(ev.RawProductName),
		strconv.FormatFloat(ev.Value, 'g', -1, 64),
		collected,
	)
}

func (h *Hub) batchSize() int {
	if h.BatchSize > 0 {
		return h.BatchSize
	}
	return defaultHubBatchSize
}

func (h *Hub) flushInterval() time.Duration {
	if h.FlushInterval > 0 {
		return h.FlushInterval
	}
	return defaultHubFlushInterval
}

func (h *Hub) healthInterval() time.Duration {
	if h.HealthInterval > 0 {
		return h.HealthInterval
	}
	return 30 * time.Second
}

func (h *Hub) upsertSource(ctx context.Context, name string, c any, health HealthStatus) {
	if h == nil || h.sources == nil || name == "" {
		return
	}
	info := SourceInfo{SourceType: "push"}
	if p, ok := c.(SourceInfoProvider); ok {
		info = p.SourceInfo()
	}
	hs := health.Status
	if hs == "" {
		hs = "unknown"
	}
	now := time.Now().UTC()
	lastPoll := health.LastPollAt
	if lastPoll == nil {
		lastPoll = &now
	}
	item := &models.SignalSource{
		Name:         name,
		SourceType:   info.SourceType,
		Endpoint:     info.Endpoint,
		PollInterval: durationString(info.PollInterval),
		Enabled:      true,
		LastPollAt:   lastPoll,
		LastError:    health.LastError,
		HealthStatus: hs,
	}
	if err := h.sources.UpsertSignalSource(ctx, item); err != nil {
		logger.OrNop(h.logger).Warn("signal source upsert failed", zap.String("source", name), zap.Error(err))
	}
}

func durationString(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.String()
}
