// Package recommend ranks scored products for dropshipping on top of the latest
// trend score snapshots.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"productradar/internal/cache"
	"productradar/internal/logger"
	"productradar/internal/models"
	"productradar/internal/repository"
)

const (
	DefaultLimit    = 5
	DefaultCacheTTL = 4 * time.Hour
	SparklineLength = 7

	strictMinScore  = 30
	strictMinShape  = 15
	relaxedMinScore = 20
	rankingPage     = 500
	sourcesScan     = 500
)

type Store interface {
	ListRanking(ctx context.Context, params repository.ListRankingParams) ([]repository.RankedProduct, error)
	ListTrendScores(ctx context.Context, productID uint64, limit int) ([]models.TrendScore, error)
	ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.RawSignal, error)
}

type Recommendation struct {
	ProductID     uint64    `json:"product_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	PriceLow      *float64  `json:"price_low,omitempty"`
	PriceHigh     *float64  `json:"price_high,omitempty"`
	Composite     float64   `json:"composite"`
	DSScore       float64   `json:"ds_score"`
	Verdict       string    `json:"verdict"`
	Strengths     []string  `json:"strengths"`
	Risks         []string  `json:"risks"`
	Strategy      string    `json:"strategy"`
	TargetChannel string    `json:"target_channel"`
	Sparkline     []float64 `json:"sparkline"`
	Sources       []string  `json:"sources"`
	ScoredAt      time.Time `json:"scored_at"`
}

// Candidate is the analyst's view of one shortlisted product.
type Candidate struct {
	Name      string
	Category  string
	PriceLow  *float64
	PriceHigh *float64
	DSScore   float64
	Score     models.TrendScore
	Sources   []string
	FirstSeen time.Time
}

type Analysis struct {
	Verdict       string   `json:"verdict"`
	Strengths     []string `json:"strengths"`
	Risks         []string `json:"risks"`
	Strategy      string   `json:"strategy"`
	TargetChannel string   `json:"target_channel"`
}

// Analyst writes a verdict for each candidate. Returning an error or a slice of
// the wrong length falls back to the template analysis.
type Analyst interface {
	Analyze(ctx context.Context, candidates []Candidate) ([]Analysis, error)
}

type Recommender struct {
	Store    Store
	Cache    cache.Store
	Analyst  Analyst
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// DSScore is the dropshipping composite. Platforms are scaled against seven sources.
func DSScore(ts models.TrendScore) float64 {
	platformScore := float64(ts.Platforms) / 7 * 100
	return 0.30*ts.TrendShape +
		0.25*ts.PriceFit +
		0.20*ts.Sentiment +
		0.15*ts.SocialVelocity +
		0.10*platformScore
}

func cacheKey(n int) string {
	return fmt.Sprintf("recommendations:%d", n)
}

// Recommend returns the top n products, served from cache when a list for the same
// n was built within the cache TTL.
func (r *Recommender) Recommend(ctx context.Context, n int) ([]Recommendation, error) {
	if n <= 0 {
		n = DefaultLimit
	}
	log := logger.OrNop(r.Logger)
	if r.Cache != nil {
		var cached []Recommendation
		ok, err := cache.GetJSON(ctx, r.Cache, cacheKey(n), &cached)
		if err != nil {
			log.Warn("recommendation cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	recs, err := r.Build(ctx, n)
	if err != nil {
		return nil, err
	}
	if r.Cache != nil {
		ttl := r.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		if err := cache.SetJSON(ctx, r.Cache, cacheKey(n), recs, ttl); err != nil {
			log.Warn("recommendation cache write failed", zap.Error(err))
		}
	}
	return recs, nil
}

// Invalidate drops the cached list for n.
func (r *Recommender) Invalidate(ctx context.Context, n int) error {
	if r.Cache == nil {
		return nil
	}
	if n <= 0 {
		n = DefaultLimit
	}
	return r.Cache.Delete(ctx, cacheKey(n))
}

type scored struct {
	item repository.RankedProduct
	ds   float64
}

// Build computes recommendations without consulting the cache.
func (r *Recommender) Build(ctx context.Context, n int) ([]Recommendation, error) {
	if r == nil || r.Store == nil {
		return nil, nil
	}
	if n <= 0 {
		n = DefaultLimit
	}
	ranked, err := r.allLatest(ctx)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return []Recommendation{}, nil
	}

	all := make([]scored, 0, len(ranked))
	for _, item := range ranked {
		all = append(all, scored{item: item, ds: DSScore(item.Score)})
	}
	top := shortlist(all, n)

	log := logger.OrNop(r.Logger)
	candidates := make([]Candidate, 0, len(top))
	sparklines := make([][]float64, 0, len(top))
	for _, s := range top {
		p := s.item.Product
		spark, err := r.sparkline(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		sources, err := r.sources(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		low, high := floatPtr(p.PriceLow.Valid, p.PriceLow.Decimal.InexactFloat64()), floatPtr(p.PriceHigh.Valid, p.PriceHigh.Decimal.InexactFloat64())
		candidates = append(candidates, Candidate{
			Name:      p.Name,
			Category:  deref(p.Category),
			PriceLow:  low,
			PriceHigh: high,
			DSScore:   s.ds,
			Score:     s.item.Score,
			Sources:   sources,
			FirstSeen: p.FirstSeenAt,
		})
		sparklines = append(sparklines, spark)
	}

	var analyses []Analysis
	if r.Analyst != nil {
		analyses, err = r.Analyst.Analyze(ctx, candidates)
		if err != nil {
			log.Warn("recommendation analysis failed, using template", zap.Error(err))
			analyses = nil
		} else if len(analyses) != len(candidates) {
			log.Warn("recommendation analysis returned unexpected length, using template",
				zap.Int("want", len(candidates)), zap.Int("got", len(analyses)))
			analyses = nil
		}
	}

	out := make([]Recommendation, 0, len(candidates))
	for i, c := range candidates {
		a := TemplateAnalysis(c)
		if analyses != nil {
			a = merge(analyses[i], a)
		}
		out = append(out, Recommendation{
			ProductID:     top[i].item.Product.ID,
			Name:          c.Name,
			Category:      c.Category,
			PriceLow:      c.PriceLow,
			PriceHigh:     c.PriceHigh,
			Composite:     c.Score.Composite,
			DSScore:       round1(c.DSScore),
			Verdict:       a.Verdict,
			Strengths:     a.Strengths,
			Risks:         a.Risks,
			Strategy:      a.Strategy,
			TargetChannel: a.TargetChannel,
			Sparkline:     sparklines[i],
			Sources:       c.Sources,
			ScoredAt:      c.Score.ComputedAt,
		})
	}
	log.Info("recommendations built", zap.Int("requested", n), zap.Int("returned", len(out)), zap.Int("candidates", len(all)))
	return out, nil
}

// shortlist applies the strict fad filter, relaxes it when too few products pass,
// and falls back to the top n by composite when nothing passes at all.
func shortlist(all []scored, n int) []scored {
	var filtered []scored
	for _, s := range all {
		if s.item.Score.Composite >= strictMinScore && s.item.Score.TrendShape > strictMinShape {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) < n {
		filtered = filtered[:0]
		for _, s := range all {
			if s.item.Score.Composite >= relaxedMinScore {
				filtered = append(filtered, s)
			}
		}
	}
	if len(filtered) == 0 {
		byComposite := append([]scored(nil), all...)
		sort.SliceStable(byComposite, func(i, j int) bool {
			return byComposite[i].item.Score.Composite > byComposite[j].item.Score.Composite
		})
		return head(byComposite, n)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].ds != filtered[j].ds {
			return filtered[i].ds > filtered[j].ds
		}
		return filtered[i].item.Product.ID < filtered[j].item.Product.ID
	})
	return head(filtered, n)
}

func (r *Recommender) allLatest(ctx context.Context) ([]repository.RankedProduct, error) {
	var out []repository.RankedProduct
	for offset := 0; ; offset += rankingPage {
		items, err := r.Store.ListRanking(ctx, repository.ListRankingParams{Limit: rankingPage, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < rankingPage {
			return out, nil
		}
	}
}

func (r *Recommender) sparkline(ctx context.Context, productID uint64) ([]float64, error) {
	rows, err := r.Store.ListTrendScores(ctx, productID, SparklineLength)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row.Composite
	}
	return out, nil
}

func (r *Recommender) sources(ctx context.Context, productID uint64) ([]string, error) {
	pid := productID
	rows, err := r.Store.ListSignals(ctx, repository.ListSignalsParams{ProductID: &pid, Limit: sourcesScan})
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, row := range rows {
		if _, ok := seen[row.Source]; ok {
			continue
		}
		seen[row.Source] = struct{}{}
		out = append(out, row.Source)
	}
	sort.Strings(out)
	return out, nil
}

// TemplateAnalysis is the verdict used when no analyst is configured or it fails.
func TemplateAnalysis(c Candidate) Analysis {
	verdict := "Speculative"
	switch {
	case c.DSScore >= 60:
		verdict = "Strong"
	case c.DSScore >= 40:
		verdict = "Moderate"
	}
	channel := "Google Shopping"
	if c.Score.Platforms >= 3 {
		channel = "TikTok Ads"
	}
	return Analysis{
		Verdict: verdict,
		Strengths: []string{
			fmt.Sprintf("Trend shape score: %.0f/100", c.Score.TrendShape),
			fmt.Sprintf("Price fit score: %.0f/100", c.Score.PriceFit),
			fmt.Sprintf("Present on %d platform(s)", c.Score.Platforms),
		},
		Risks: []string{
			"Automated analysis unavailable",
			"Verify margin before sourcing",
		},
		Strategy:      "Research suppliers and validate margins before launching ad campaigns.",
		TargetChannel: channel,
	}
}

func merge(a, fallback Analysis) Analysis {
	switch a.Verdict {
	case "Strong", "Moderate", "Speculative":
	default:
		a.Verdict = fallback.Verdict
	}
	if a.Strengths == nil {
		a.Strengths = []string{}
	}
	if a.Risks == nil {
		a.Risks = []string{}
	}
	return a
}

func head(items []scored, n int) []scored {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func floatPtr(valid bool, v float64) *float64 {
	if !valid {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
