package recommend

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productradar/internal/cache"
	"productradar/internal/models"
	memoryrepository "productradar/internal/repository/memory"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type seed struct {
	name      string
	composite float64
	shape     float64
	platforms int
	history   []float64
}

func newStore(t *testing.T, seeds ...seed) *memoryrepository.Store {
	t.Helper()
	ctx := context.Background()
	store := memoryrepository.New()
	for _, s := range seeds {
		p := &models.Product{Name: s.name, NameKey: strings.ToLower(s.name), FirstSeenAt: base}
		require.NoError(t, store.CreateProduct(ctx, p))
		require.NoError(t, store.InsertSignal(ctx, &models.RawSignal{ProductID: p.ID, Source: "tiktok", SignalType: "tiktok_popularity", Value: 10, CollectedAt: base}))
		require.NoError(t, store.InsertSignal(ctx, &models.RawSignal{ProductID: p.ID, Source: "amazon", SignalType: "bsr_momentum", Value: 10, CollectedAt: base}))
		history := append(append([]float64(nil), s.history...), s.composite)
		for i, c := range history {
			require.NoError(t, store.InsertTrendScore(ctx, &models.TrendScore{
				ProductID:      p.ID,
				RunID:          "run",
				TrendShape:     s.shape,
				PriceFit:       50,
				Sentiment:      50,
				SocialVelocity: 40,
				Composite:      c,
				Platforms:      s.platforms,
				ComputedAt:     base.Add(time.Duration(i) * time.Hour),
			}))
		}
	}
	return store
}

func TestDSScore(t *testing.T) {
	got := DSScore(models.TrendScore{TrendShape: 100, PriceFit: 100, Sentiment: 100, SocialVelocity: 100, Platforms: 7})
	if math.Abs(got-100) > 1e-9 {
		t.Fatalf("got=%v want=100", got)
	}
	got = DSScore(models.TrendScore{TrendShape: 50, PriceFit: 80, Sentiment: 50, SocialVelocity: 20, Platforms: 0})
	if want := 15 + 20 + 10 + 3.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestTemplateAnalysisVerdicts(t *testing.T) {
	cases := []struct {
		ds      float64
		verdict string
	}{{60, "Strong"}, {59.9, "Moderate"}, {40, "Moderate"}, {39.9, "Speculative"}}
	for _, tc := range cases {
		a := TemplateAnalysis(Candidate{DSScore: tc.ds})
		if a.Verdict != tc.verdict {
			t.Fatalf("ds=%v verdict=%s want=%s", tc.ds, a.Verdict, tc.verdict)
		}
	}
	if ch := TemplateAnalysis(Candidate{Score: models.TrendScore{Platforms: 3}}).TargetChannel; ch != "TikTok Ads" {
		t.Fatalf("channel=%s", ch)
	}
	if ch := TemplateAnalysis(Candidate{Score: models.TrendScore{Platforms: 2}}).TargetChannel; ch != "Google Shopping" {
		t.Fatalf("channel=%s", ch)
	}
}

func TestShortlistFilters(t *testing.T) {
	store := newStore(t,
		seed{name: "Neck Fan", composite: 55, shape: 80, platforms: 4},
		seed{name: "Fidget Spinner", composite: 60, shape: 15, platforms: 5}, // fad
		seed{name: "Desk Mat", composite: 35, shape: 50, platforms: 2},
		seed{name: "Low Interest", composite: 10, shape: 90, platforms: 1},
	)
	r := &Recommender{Store: store}

	recs, err := r.Build(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Neck Fan", recs[0].Name)
	assert.Equal(t, "Desk Mat", recs[1].Name)

	// Only two products pass the strict filter; relaxing to score >= 20 admits the fad.
	recs, err = r.Build(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	names := []string{recs[0].Name, recs[1].Name, recs[2].Name}
	assert.Contains(t, names, "Fidget Spinner")
	assert.NotContains(t, names, "Low Interest")
}

func TestShortlistLastResort(t *testing.T) {
	store := newStore(t,
		seed{name: "A", composite: 5, shape: 50, platforms: 1},
		seed{name: "B", composite: 12, shape: 50, platforms: 1},
	)
	recs, err := (&Recommender{Store: store}).Build(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "B", recs[0].Name)
	assert.Equal(t, "Moderate", recs[0].Verdict)
}

func TestSparklineAndSources(t *testing.T) {
	store := newStore(t, seed{
		name: "Neck Fan", composite: 70, shape: 80, platforms: 4,
		history: []float64{10, 20, 30, 40, 50, 60, 65, 68},
	})
	recs, err := (&Recommender{Store: store}).Build(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []float64{30, 40, 50, 60, 65, 68, 70}, recs[0].Sparkline)
	assert.Equal(t, []string{"amazon", "tiktok"}, recs[0].Sources)
	assert.Equal(t, 70.0, recs[0].Composite)
}

type fakeAnalyst struct {
	calls int
	out   []Analysis
	err   error
}

func (f *fakeAnalyst) Analyze(_ context.Context, c []Candidate) ([]Analysis, error) {
	f.calls++
	return f.out, f.err
}

func TestAnalystFallback(t *testing.T) {
	store := newStore(t, seed{name: "Neck Fan", composite: 55, shape: 80, platforms: 4})

	analyst := &fakeAnalyst{err: errors.New("rate limited")}
	recs, err := (&Recommender{Store: store, Analyst: analyst}).Build(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, TemplateAnalysis(Candidate{DSScore: DSScore(models.TrendScore{TrendShape: 80, PriceFit: 50, Sentiment: 50, SocialVelocity: 40, Platforms: 4})}).Verdict, recs[0].Verdict)

	analyst = &fakeAnalyst{out: []Analysis{{Verdict: "Strong", Strengths: []string{"viral"}, Strategy: "Run UGC ads", TargetChannel: "TikTok Ads"}}}
	recs, err = (&Recommender{Store: store, Analyst: analyst}).Build(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Strong", recs[0].Verdict)
	assert.Equal(t, []string{"viral"}, recs[0].Strengths)
	assert.Equal(t, []string{}, recs[0].Risks)

	analyst = &fakeAnalyst{out: []Analysis{{Verdict: "Excellent"}}}
	recs, err = (&Recommender{Store: store, Analyst: analyst}).Build(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEqual(t, "Excellent", recs[0].Verdict)
}

func TestRecommendUsesCache(t *testing.T) {
	store := newStore(t, seed{name: "Neck Fan", composite: 55, shape: 80, platforms: 4})
	analyst := &fakeAnalyst{err: errors.New("offline")}
	r := &Recommender{Store: store, Cache: cache.NewMemoryStore(), Analyst: analyst}
	ctx := context.Background()

	first, err := r.Recommend(ctx, 5)
	require.NoError(t, err)
	second, err := r.Recommend(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, analyst.calls)
	assert.Equal(t, first[0].Name, second[0].Name)

	// A different n is cached separately.
	_, err = r.Recommend(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, analyst.calls)

	require.NoError(t, r.Invalidate(ctx, 5))
	_, err = r.Recommend(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, analyst.calls)
}

func TestBuildEmpty(t *testing.T) {
	recs, err := (&Recommender{Store: memoryrepository.New()}).Build(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type fakeCompleter struct {
	text string
	err  error
}

func (f fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.text, f.err
}

func TestAnthropicAnalyst(t *testing.T) {
	candidates := []Candidate{{Name: "Neck Fan", DSScore: 61.2}}
	a := AnthropicAnalyst{LLM: fakeCompleter{text: "```json\n[{\"name\":\"Neck Fan\",\"verdict\":\"Strong\",\"strengths\":[\"a\"],\"risks\":[\"b\"],\"strategy\":\"s\",\"target_channel\":\"TikTok Ads\"}]\n```"}}
	out, err := a.Analyze(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Strong", out[0].Verdict)

	_, err = AnthropicAnalyst{LLM: fakeCompleter{text: "[]"}}.Analyze(context.Background(), candidates)
	assert.Error(t, err)
	_, err = AnthropicAnalyst{LLM: fakeCompleter{text: "not json"}}.Analyze(context.Background(), candidates)
	assert.Error(t, err)
	_, err = AnthropicAnalyst{}.Analyze(context.Background(), candidates)
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	low, high := 19.0, 35.0
	got := buildPrompt([]Candidate{{
		Name: "Neck Fan", PriceLow: &low, PriceHigh: &high, DSScore: 61.24,
		Score: models.TrendScore{Platforms: 3}, Sources: []string{"amazon", "tiktok"}, FirstSeen: base,
	}})
	assert.True(t, strings.HasPrefix(got, "1. Neck Fan | category: unknown | price: $19-$35 | ds_score: 61.2"))
	assert.Contains(t, got, "platforms: amazon, tiktok | first_seen: 2026-03-01")
	assert.Equal(t, "unknown", priceLabel(nil, nil))
	assert.Equal(t, "up to $35", priceLabel(nil, &high))
}
