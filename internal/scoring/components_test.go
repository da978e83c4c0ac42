package scoring

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"productradar/internal/models"
	"productradar/internal/signal"
)

var asOf = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func sig(source, signalType string, value float64, meta map[string]any) models.RawSignal {
	s := models.RawSignal{Source: source, SignalType: signalType, Value: value, CollectedAt: asOf.Add(-time.Hour)}
	if meta != nil {
		raw, _ := json.Marshal(meta)
		s.Metadata = raw
	}
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func price(v float64) *float64 { return &v }

func TestPriceFitBoundaries(t *testing.T) {
	cases := []struct {
		low, high *float64
		want      float64
	}{
		{price(20), price(20), 100},
		{price(60), price(60), 100},
		{price(10), price(10), 50},
		{price(80), price(80), 50},
		{price(150), price(150), 0},
		{price(200), price(200), 0},
		{nil, nil, 50},
		{price(15), price(25), 100},
		{price(15), nil, 75},
		{nil, price(70), 75},
		{price(0), price(0), 0},
		{price(5), price(5), 25},
		{price(115), price(115), 25},
	}
	for _, c := range cases {
		got := PriceFit(Input{PriceRange: PriceRange{Low: c.low, High: c.high}})
		if !approx(got, c.want) {
			t.Fatalf("PriceFit(%v,%v)=%v want=%v", deref(c.low), deref(c.high), got, c.want)
		}
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestTrendShape(t *testing.T) {
	cases := []struct {
		name    string
		history []float64
		min     float64
		max     float64
	}{
		{"spike then drop", []float64{50, 70, 55, 60}, 15, 15},
		{"steady incline", []float64{10, 15, 25, 30, 35}, 70, 100},
		{"too short", []float64{10, 90}, 50, 50},
		{"empty", nil, 50, 50},
		{"decline", []float64{80, 70, 60, 50}, 0, 30},
		{"flat", []float64{50, 50, 50}, 50, 50},
		{"jumpy rise", []float64{10, 40, 45}, 50, 50},
	}
	for _, c := range cases {
		got := TrendShape(c.history)
		if got < c.min || got > c.max {
			t.Fatalf("%s: TrendShape=%v want in [%v,%v]", c.name, got, c.min, c.max)
		}
	}
	if got := TrendShape([]float64{10, 15, 25, 30, 35}); !approx(got, 88.75) {
		t.Fatalf("incline score=%v want=88.75", got)
	}
	if got := TrendShape([]float64{80, 70, 60, 50}); !approx(got, 30+(-8.0)/18*30) {
		t.Fatalf("decline score=%v", got)
	}
	if got := TrendShape([]float64{100, 0, 0, 0}); got != 0 {
		t.Fatalf("steep decline should floor at 0, got %v", got)
	}
}

func TestTrendShapeUsesLastTen(t *testing.T) {
	// A spike and drop outside the last ten points no longer counts.
	history := []float64{10, 40, 20}
	for i := 0; i < 10; i++ {
		history = append(history, 20+float64(i))
	}
	if got := TrendShape(history); got < 70 {
		t.Fatalf("TrendShape=%v want incline", got)
	}
}

func TestSearchAccel(t *testing.T) {
	in := Input{Signals: []models.RawSignal{
		sig("google_trends", signal.TypeSearchVelocity, 2500, nil),
		sig("google_trends", signal.TypeSearchVelocity, 900, nil),
		sig("google_trends", signal.TypeBreakout, 1, nil),
	}}
	for i := 0; i < 5; i++ {
		in.Signals = append(in.Signals, sig("google_trends", signal.TypeRising, 1, nil))
	}
	if got := SearchAccel(in); got != 100 {
		t.Fatalf("SearchAccel=%v want=100", got)
	}
	in = Input{Signals: []models.RawSignal{
		sig("google_trends", signal.TypeSearchVelocity, 1000, nil),
		sig("google_trends", signal.TypeRising, 1, nil),
		sig("google_trends", signal.TypeRising, 1, nil),
	}}
	if got := SearchAccel(in); !approx(got, 30) {
		t.Fatalf("SearchAccel=%v want=30", got)
	}
	if got := SearchAccel(Input{Signals: []models.RawSignal{sig("google_trends", signal.TypeSearchVelocity, -400, nil)}}); got != 0 {
		t.Fatalf("negative velocity=%v want=0", got)
	}
}

func TestSocialVelocity(t *testing.T) {
	in := Input{Signals: []models.RawSignal{
		sig("tiktok", signal.TypeTikTokPopularity, 8000, map[string]any{"author": "deskhacks"}),
		sig("tiktok", signal.TypeTikTokPopularity, 3000, map[string]any{"creator": "wfhsetup"}),
		sig("tiktok", signal.TypeTikTokPopularity, 100, map[string]any{"author": "deskhacks"}),
		sig("reddit", signal.TypeUpvoteVelocity, 50, nil),
	}}
	if got := SocialVelocity(in); !approx(got, 0.6*80+0.4*50+10) {
		t.Fatalf("SocialVelocity=%v want=78", got)
	}
	onlyReddit := Input{Signals: []models.RawSignal{sig("reddit", signal.TypeUpvoteVelocity, 500, nil)}}
	if got := SocialVelocity(onlyReddit); !approx(got, 40) {
		t.Fatalf("missing tiktok must count as 0: got %v", got)
	}
	many := Input{}
	for _, a := range []string{"a", "b", "c", "d", "e"} {
		many.Signals = append(many.Signals, sig("tiktok", signal.TypeTikTokPopularity, 20000, map[string]any{"username": a}))
	}
	many.Signals = append(many.Signals, sig("reddit", signal.TypeUpvoteVelocity, 400, nil))
	if got := SocialVelocity(many); got != 100 {
		t.Fatalf("capped social=%v want=100", got)
	}
}

func TestAmazonSentimentPlatformRecency(t *testing.T) {
	in := Input{AsOf: asOf, Signals: []models.RawSignal{
		sig("amazon", signal.TypeBSRMomentum, 450, nil),
		sig("amazon", signal.TypeBSRMomentum, 120, nil),
		sig("reviews", signal.TypeSentiment, 80, nil),
		sig("reviews", signal.TypeSentiment, 120, nil),
		sig("reviews", signal.TypeSentiment, -10, nil),
	}}
	in.Signals[3].CollectedAt = asOf.Add(-48 * time.Hour)
	in.Signals[4].CollectedAt = asOf.Add(-72 * time.Hour)

	if got := AmazonMomentum(in); !approx(got, 45) {
		t.Fatalf("AmazonMomentum=%v want=45", got)
	}
	if got := Sentiment(in); !approx(got, 60) {
		t.Fatalf("Sentiment=%v want=60", got)
	}
	if got := Sentiment(Input{}); got != 50 {
		t.Fatalf("Sentiment without signals=%v want=50", got)
	}
	if got := PlatformCount(in); !approx(got, 50) {
		t.Fatalf("PlatformCount=%v want=50", got)
	}
	if got := Recency(in); !approx(got, 60) {
		t.Fatalf("Recency=%v want=60", got)
	}
	if got := Recency(Input{AsOf: asOf}); got != 0 {
		t.Fatalf("Recency of empty window=%v want=0", got)
	}
}

func TestPlatformCountCaps(t *testing.T) {
	var in Input
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		in.Signals = append(in.Signals, sig(s, signal.TypeRising, 1, nil))
	}
	if got := PlatformCount(in); got != 100 {
		t.Fatalf("PlatformCount=%v want=100", got)
	}
}

func TestPurchaseIntent(t *testing.T) {
	in := Input{Signals: []models.RawSignal{
		sig("reddit", signal.TypeUpvoteVelocity, 10, map[string]any{
			"title": "Where can I buy this lamp?",
			"top_comments": []any{
				"need this in my life",
				map[string]any{"body": "looks cheap honestly"},
				42,
			},
		}),
		sig("tiktok", signal.TypeTikTokPopularity, 10, map[string]any{"caption": "my morning routine"}),
		sig("google_trends", signal.TypeSearchVelocity, 10, map[string]any{"title": "take my money"}),
	}}
	// Four samples from reddit and tiktok, two with intent.
	if got := PurchaseIntent(in); !approx(got, 50) {
		t.Fatalf("PurchaseIntent=%v want=50", got)
	}
	if got := PurchaseIntent(Input{Signals: []models.RawSignal{sig("amazon", signal.TypeBSRMomentum, 1, nil)}}); got != 0 {
		t.Fatalf("no text=%v want=0", got)
	}
}

func TestHasPurchaseIntent(t *testing.T) {
	yes := []string{"WHERE TO BUY", "shut up and take my money", "Link?", "just bought two", "where do I get one", "added to cart lol", "back in stock!", "want it so bad"}
	no := []string{"my cat", "nice lighting", ""}
	for _, s := range yes {
		if !HasPurchaseIntent(s) {
			t.Fatalf("expected intent in %q", s)
		}
	}
	for _, s := range no {
		if HasPurchaseIntent(s) {
			t.Fatalf("unexpected intent in %q", s)
		}
	}
}
