// Package cleaner extracts product names from noisy social text before
// identity resolution.
package cleaner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"productradar/internal/client/llm"
	"productradar/internal/logger"
	"productradar/internal/signal"
)

const (
	defaultBatchSize = 25

	// Trend feeds already report search terms, not captions.
	sourceGoogleTrends = "google_trends"
)

// Passthrough leaves every event untouched.
type Passthrough struct{}

func (Passthrough) CleanNames(_ context.Context, events []signal.Event) ([]signal.Event, error) {
	return events, nil
}

const systemPrompt = `You extract physical consumer product names from social media and marketplace text.
For each numbered item, decide whether it refers to a specific purchasable physical product.
Reply with only a JSON array, one object per item, in the same order:
[{"index": 0, "name": "Short Product Name", "relevant": true, "confidence": 0.9}]
Use "name": null and "relevant": false when the text is not about a product.
Names must be concise (2-6 words), without hashtags, emojis, prices or store names.`

type extraction struct {
	Index      *int     `json:"index"`
	Name       *string  `json:"name"`
	Relevant   bool     `json:"relevant"`
	Confidence *float64 `json:"confidence"`
}

// AnthropicCleaner sends events to the LLM in batches. A failed batch is kept
// as-is so ingestion never depends on the model being reachable.
type AnthropicCleaner struct {
	llm       llm.Completer
	batchSize int
	logger    *zap.Logger
}

func NewAnthropicCleaner(completer llm.Completer, batchSize int, logger *zap.Logger) *AnthropicCleaner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &AnthropicCleaner{llm: completer, batchSize: batchSize, logger: logger}
}

func (c *AnthropicCleaner) CleanNames(ctx context.Context, events []signal.Event) ([]signal.Event, error) {
	if c == nil || c.llm == nil || len(events) == 0 {
		return events, nil
	}
	log := logger.OrNop(c.logger)

	out := make([]signal.Event, 0, len(events))
	pending := make([]signal.Event, 0, c.batchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		cleaned, err := c.cleanBatch(ctx, pending)
		if err != nil {
			log.Warn("llm name extraction failed, keeping batch", zap.Int("size", len(pending)), zap.Error(err))
			out = append(out, pending...)
		} else {
			out = append(out, cleaned...)
		}
		pending = pending[:0]
	}

	for _, ev := range events {
		if ev.Source == sourceGoogleTrends || strings.TrimSpace(ev.RawProductName) == "" {
			out = append(out, ev)
			continue
		}
		pending = append(pending, ev)
		if len(pending) >= c.batchSize {
			flush()
		}
	}
	flush()
	return out, nil
}

func (c *AnthropicCleaner) cleanBatch(ctx context.Context, batch []signal.Event) ([]signal.Event, error) {
	text, err := c.llm.Complete(ctx, systemPrompt, buildPrompt(batch))
	if err != nil {
		return nil, err
	}
	results, err := parseExtractions(text)
	if err != nil {
		return nil, err
	}
	return applyExtractions(batch, results), nil
}

func buildPrompt(batch []signal.Event) string {
	var b strings.Builder
	b.WriteString("Items:\n")
	for i, ev := range batch {
		name := []rune(strings.TrimSpace(ev.RawProductName))
		if len(name) > 500 {
			name = name[:500]
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i, ev.Source, strings.ReplaceAll(string(name), "\n", " "))
	}
	return b.String()
}

func parseExtractions(text string) ([]extraction, error) {
	var results []extraction
	if err := json.Unmarshal([]byte(llm.StripFences(text)), &results); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}
	return results, nil
}

// applyExtractions rewrites names in place. Items the model did not answer for
// are kept unchanged; items marked irrelevant or without a name are dropped.
func applyExtractions(batch []signal.Event, results []extraction) []signal.Event {
	byIndex := make(map[int]extraction, len(results))
	for pos, r := range results {
		idx := pos
		if r.Index != nil {
			idx = *r.Index
		}
		if idx < 0 || idx >= len(batch) {
			continue
		}
		byIndex[idx] = r
	}

	out := make([]signal.Event, 0, len(batch))
	for i, ev := range batch {
		r, ok := byIndex[i]
		if !ok {
			out = append(out, ev)
			continue
		}
		if !r.Relevant || r.Name == nil || strings.TrimSpace(*r.Name) == "" {
			continue
		}
		meta := make(map[string]any, len(ev.Metadata)+2)
		for k, v := range ev.Metadata {
			meta[k] = v
		}
		meta["original_name"] = ev.RawProductName
		if r.Confidence != nil {
			meta["llm_confidence"] = *r.Confidence
		}
		ev.Metadata = meta
		ev.RawProductName = strings.TrimSpace(*r.Name)
		out = append(out, ev)
	}
	return out
}
