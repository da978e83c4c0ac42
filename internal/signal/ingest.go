package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"productradar/internal/logger"
	"productradar/internal/metrics"
	"productradar/internal/models"
	"productradar/internal/repository"
	"productradar/internal/resolver"
)

// NameResolver maps a raw product name to a product id.
type NameResolver interface {
	Resolve(ctx context.Context, rawName, source string) (resolver.Resolution, error)
}

// NameCleaner is an optional pre-pass that rewrites raw product names and may
// drop events that do not reference a product. Implementations that fail must
// leave the batch unchanged; the ingestor treats an error the same way.
type NameCleaner interface {
	CleanNames(ctx context.Context, events []Event) ([]Event, error)
}

// IngestStore is the persistence the ingestor writes through.
type IngestStore interface {
	InsertSignal(ctx context.Context, item *models.RawSignal) error
	RecordPrice(ctx context.Context, item *models.PriceObservation) error
	EnrichProduct(ctx context.Context, productID uint64, e repository.ProductEnrichment) error
	IncrementSourceCounters(ctx context.Context, name string, accepted, dropped int64) error
}

type IngestResult struct {
	Accepted        int            `json:"accepted"`
	Dropped         int            `json:"dropped"`
	ProductsCreated int            `json:"products_created"`
	AliasesCreated  int            `json:"aliases_created"`
	DropReasons     map[string]int `json:"drop_reasons,omitempty"`
}

func (r *IngestResult) Merge(o IngestResult) {
	r.Accepted += o.Accepted
	r.Dropped += o.Dropped
	r.ProductsCreated += o.ProductsCreated
	r.AliasesCreated += o.AliasesCreated
	for k, v := range o.DropReasons {
		if r.DropReasons == nil {
			r.DropReasons = map[string]int{}
		}
		r.DropReasons[k] += v
	}
}

// Ingestor validates, cleans, resolves and appends inbound events.
type Ingestor struct {
	Resolver NameResolver
	Store    IngestStore
	Cleaner  NameCleaner
	Logger   *zap.Logger
	Now      func() time.Time
}

// Ingest processes a batch. Malformed events are dropped and counted; a
// resolution or persistence failure aborts the rest of the batch and is returned.
func (i *Ingestor) Ingest(ctx context.Context, events []Event) (IngestResult, error) {
	var res IngestResult
	if i == nil || i.Resolver == nil || i.Store == nil {
		return res, fmt.Errorf("ingestor not configured")
	}
	log := logger.OrNop(i.Logger)
	counts := map[string]*sourceCount{}
	defer i.flushCounts(ctx, counts)

	now := i.now()
	valid := make([]Event, 0, len(events))
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			i.drop(&res, counts, ev.Source, Reason(err), err)
			continue
		}
		if ev.CollectedAt.IsZero() {
			ev.CollectedAt = now
		} else {
			ev.CollectedAt = ev.CollectedAt.UTC()
		}
		valid = append(valid, ev)
	}

	cleaned := i.clean(ctx, valid)
	if len(cleaned) < len(valid) {
		before := map[string]int{}
		for _, ev := range valid {
			before[ev.Source]++
		}
		for _, ev := range cleaned {
			before[ev.Source]--
		}
		for source, n := range before {
			for ; n > 0; n-- {
				i.drop(&res, counts, source, "not_a_product", nil)
			}
		}
	}

	for _, ev := range cleaned {
		if err := i.ingestOne(ctx, ev, &res, counts); err != nil {
			log.Warn("ingest batch aborted",
				zap.String("source", ev.Source),
				zap.Int("accepted", res.Accepted),
				zap.Error(err),
			)
			return res, err
		}
	}
	return res, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, ev Event, res *IngestResult, counts map[string]*sourceCount) error {
	var meta datatypes.JSON
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			i.drop(res, counts, ev.Source, "metadata_encode", err)
			return nil
		}
		meta = datatypes.JSON(raw)
	}

	resolution, err := i.Resolver.Resolve(ctx, ev.RawProductName, ev.Source)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", ev.RawProductName, err)
	}
	if resolution.Created {
		switch resolution.Match {
		case resolver.MatchNew:
			res.ProductsCreated++
		case resolver.MatchFuzzy:
			res.AliasesCreated++
		}
	}

	sig := &models.RawSignal{
		ProductID:   resolution.ProductID,
		Source:      ev.Source,
		SignalType:  ev.SignalType,
		Value:       ev.Value,
		RawName:     truncateRunes(ev.RawProductName, 500),
		Metadata:    meta,
		CollectedAt: ev.CollectedAt,
	}
	if err := i.Store.InsertSignal(ctx, sig); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}

	if ev.Price != nil {
		obs := &models.PriceObservation{
			ProductID:  resolution.ProductID,
			Price:      decimal.NewFromFloat(*ev.Price).Round(2),
			Source:     ev.Source,
			ObservedAt: ev.CollectedAt,
		}
		if err := i.Store.RecordPrice(ctx, obs); err != nil {
			return fmt.Errorf("record price: %w", err)
		}
	}

	if e, ok := enrichmentFrom(ev); ok {
		if err := i.Store.EnrichProduct(ctx, resolution.ProductID, e); err != nil {
			return fmt.Errorf("enrich product: %w", err)
		}
	}

	res.Accepted++
	counts[ev.Source] = counts[ev.Source].add(1, 0)
	metrics.IngestEventsTotal.WithLabelValues(ev.Source, "accepted", "").Inc()
	return nil
}

func (i *Ingestor) clean(ctx context.Context, events []Event) []Event {
	if i.Cleaner == nil || len(events) == 0 {
		return events
	}
	cleaned, err := i.Cleaner.CleanNames(ctx, events)
	if err != nil {
		logger.OrNop(i.Logger).Warn("name cleaner failed, passing batch through", zap.Error(err))
		return events
	}
	return cleaned
}

func (i *Ingestor) drop(res *IngestResult, counts map[string]*sourceCount, source, reason string, err error) {
	res.Dropped++
	if res.DropReasons == nil {
		res.DropReasons = map[string]int{}
	}
	res.DropReasons[reason]++
	if source != "" {
		counts[source] = counts[source].add(0, 1)
	}
	metrics.IngestEventsTotal.WithLabelValues(source, "dropped", reason).Inc()
	fields := []zap.Field{zap.String("source", source), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.OrNop(i.Logger).Info("event dropped", fields...)
}

func (i *Ingestor) flushCounts(ctx context.Context, counts map[string]*sourceCount) {
	for source, c := range counts {
		if err := i.Store.IncrementSourceCounters(ctx, source, c.accepted, c.dropped); err != nil {
			logger.OrNop(i.Logger).Warn("source counters update failed", zap.String("source", source), zap.Error(err))
		}
	}
}

func (i *Ingestor) now() time.Time {
	if i.Now != nil {
		return i.Now().UTC()
	}
	return time.Now().UTC()
}

type sourceCount struct {
	accepted int64
	dropped  int64
}

func (c *sourceCount) add(accepted, dropped int64) *sourceCount {
	if c == nil {
		c = &sourceCount{}
	}
	c.accepted += accepted
	c.dropped += dropped
	return c
}

func enrichmentFrom(ev Event) (repository.ProductEnrichment, bool) {
	var e repository.ProductEnrichment
	if v := truncateRunes(ev.MetadataString("category"), 100); v != "" {
		e.Category = &v
	}
	if v := truncateRunes(ev.MetadataString("image_url", "image"), 1000); v != "" {
		e.ImageURL = &v
	}
	if v := truncateRunes(ev.MetadataString("product_url", "url"), 1000); v != "" {
		e.SourceURL = &v
	}
	return e, e.Category != nil || e.ImageURL != nil || e.SourceURL != nil
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
