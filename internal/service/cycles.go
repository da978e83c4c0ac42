package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"productradar/internal/jobs"
	"productradar/internal/logger"
	"productradar/internal/models"
	"productradar/internal/recommend"
	"productradar/internal/scoring"
	"productradar/internal/signal"
)

var (
	ErrFeatureDisabled = errors.New("feature disabled")
	ErrUnknownSource   = errors.New("unknown source")
)

const (
	JobScoring        = "scoring"
	JobRecommendation = "recommendation"
	jobCollectPrefix  = "collect:"
)

// CollectJob is the guard name for one source's collection cycle.
func CollectJob(source string) string {
	return jobCollectPrefix + source
}

// CycleService is the single entry point for scheduled and manual triggers.
// Every cycle runs through the guard so overlapping triggers are skipped.
type CycleService struct {
	Guard       *jobs.Guard
	Engine      *scoring.Engine
	Hub         *signal.Hub
	Settings    *SystemSettingsService
	Recommender *recommend.Recommender
	// RecommendLimit is the list size refreshed by RefreshRecommendations.
	RecommendLimit int
	Logger         *zap.Logger
	Now            func() time.Time

	mu         sync.RWMutex
	collectors map[string]signal.Collector
	guardOnce  sync.Once
}

func (s *CycleService) RegisterCollector(c signal.Collector) {
	if c == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(c.Name()))
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectors == nil {
		s.collectors = map[string]signal.Collector{}
	}
	s.collectors[name] = c
}

// Sources lists registered pull collectors in name order.
func (s *CycleService) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.collectors))
	for name := range s.collectors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RunScoring scores every product with signals in the window ending now.
func (s *CycleService) RunScoring(ctx context.Context) (models.ScoringRun, error) {
	if s.Engine == nil {
		return models.ScoringRun{}, errors.New("scoring engine not configured")
	}
	if !s.Settings.IsEnabled(ctx, FeatureScoring, true) {
		return models.ScoringRun{}, fmt.Errorf("%s: %w", FeatureScoring, ErrFeatureDisabled)
	}
	var run models.ScoringRun
	err := s.guard().Run(ctx, JobScoring, func(ctx context.Context) error {
		var err error
		run, err = s.Engine.RunCycle(ctx, s.now())
		return err
	})
	return run, err
}

// Collect runs one collection cycle for source.
func (s *CycleService) Collect(ctx context.Context, source string) (signal.IngestResult, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	s.mu.RLock()
	c, ok := s.collectors[source]
	s.mu.RUnlock()
	if !ok {
		return signal.IngestResult{}, fmt.Errorf("%q: %w", source, ErrUnknownSource)
	}
	if s.Hub == nil {
		return signal.IngestResult{}, errors.New("signal hub not configured")
	}
	if !s.Settings.IsEnabled(ctx, CollectorSwitch(source), true) {
		return signal.IngestResult{}, fmt.Errorf("%s: %w", CollectorSwitch(source), ErrFeatureDisabled)
	}
	var res signal.IngestResult
	err := s.guard().Run(ctx, CollectJob(source), func(ctx context.Context) error {
		var err error
		res, err = s.Hub.CollectOnce(ctx, c)
		return err
	})
	return res, err
}

// CollectAll runs every enabled collector in turn. Individual failures are
// logged and do not stop the remaining sources.
func (s *CycleService) CollectAll(ctx context.Context) (signal.IngestResult, error) {
	log := logger.OrNop(s.Logger)
	var total signal.IngestResult
	var failed []string
	for _, source := range s.Sources() {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		res, err := s.Collect(ctx, source)
		total.Merge(res)
		switch {
		case err == nil:
		case errors.Is(err, ErrFeatureDisabled), errors.Is(err, jobs.ErrAlreadyRunning):
			log.Debug("collection skipped", zap.String("source", source), zap.Error(err))
		default:
			log.Warn("collection failed", zap.String("source", source), zap.Error(err))
			failed = append(failed, source)
		}
	}
	if len(failed) > 0 {
		return total, fmt.Errorf("collection failed for %s", strings.Join(failed, ", "))
	}
	return total, nil
}

// RefreshRecommendations rebuilds the cached recommendation list.
func (s *CycleService) RefreshRecommendations(ctx context.Context) error {
	if s.Recommender == nil {
		return nil
	}
	if !s.Settings.IsEnabled(ctx, FeatureRecommender, true) {
		return fmt.Errorf("%s: %w", FeatureRecommender, ErrFeatureDisabled)
	}
	return s.guard().Run(ctx, JobRecommendation, func(ctx context.Context) error {
		if err := s.Recommender.Invalidate(ctx, s.RecommendLimit); err != nil {
			logger.OrNop(s.Logger).Warn("recommendation cache invalidate failed", zap.Error(err))
		}
		_, err := s.Recommender.Recommend(ctx, s.RecommendLimit)
		return err
	})
}

func (s *CycleService) guard() *jobs.Guard {
	s.guardOnce.Do(func() {
		if s.Guard == nil {
			s.Guard = jobs.NewGuard(nil, 0, s.Logger)
		}
	})
	return s.Guard
}

func (s *CycleService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
