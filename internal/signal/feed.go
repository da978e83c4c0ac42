package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"productradar/internal/client/feed"
	"productradar/internal/logger"
)

type FeedFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

// FeedCollector polls an HTTP endpoint that returns one event or an array of
// events. Events without a source are attributed to the collector.
type FeedCollector struct {
	name     string
	client   FeedFetcher
	interval time.Duration
	logger   *zap.Logger
}

func NewFeedCollector(name, url string, timeout, interval time.Duration, logger *zap.Logger) *FeedCollector {
	return &FeedCollector{
		name:     strings.ToLower(strings.TrimSpace(name)),
		client:   feed.NewClient(nil, url, timeout),
		interval: interval,
		logger:   logger,
	}
}

func NewFeedCollectorWithFetcher(name string, fetcher FeedFetcher, logger *zap.Logger) *FeedCollector {
	return &FeedCollector{
		name:   strings.ToLower(strings.TrimSpace(name)),
		client: fetcher,
		logger: logger,
	}
}

func (c *FeedCollector) Name() string { return c.name }

func (c *FeedCollector) SourceInfo() SourceInfo {
	return SourceInfo{SourceType: "feed", Endpoint: c.client.URL(), PollInterval: c.interval}
}

func (c *FeedCollector) Collect(ctx context.Context) ([]Event, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("feed collector not configured")
	}
	body, err := c.client.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	events, errs := DecodeEvents(body)
	if len(errs) > 0 {
		logger.OrNop(c.logger).Warn("feed returned undecodable events",
			zap.String("feed", c.name),
			zap.Int("count", len(errs)),
			zap.Error(errs[0]),
		)
		if len(events) == 0 {
			return nil, errs[0]
		}
	}
	for i := range events {
		if strings.TrimSpace(events[i].Source) == "" {
			events[i].Source = c.name
		}
	}
	return events, nil
}
