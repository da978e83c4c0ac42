// Package scoring turns a product's windowed signals and score history into
// nine component scores and a weighted composite.
package scoring

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"productradar/internal/models"
	"productradar/internal/signal"
)

// Input is everything a component needs for one product at one as-of time.
type Input struct {
	// Signals in the trailing window, any order.
	Signals []models.RawSignal
	// History holds prior composite scores, oldest first.
	History    []float64
	PriceRange PriceRange
	AsOf       time.Time
}

// PriceRange is the observed price range; either bound may be missing.
type PriceRange struct {
	Low  *float64
	High *float64
}

// Midpoint returns the range midpoint, the single bound present, or false.
func (p PriceRange) Midpoint() (float64, bool) {
	switch {
	case p.Low != nil && p.High != nil:
		return (*p.Low + *p.High) / 2, true
	case p.Low != nil:
		return *p.Low, true
	case p.High != nil:
		return *p.High, true
	default:
		return 0, false
	}
}

// Components holds the nine sub-scores, each in [0,100].
type Components struct {
	SearchAccel    float64 `json:"search_accel"`
	SocialVelocity float64 `json:"social_velocity"`
	AmazonMomentum float64 `json:"amazon_momentum"`
	PriceFit       float64 `json:"price_fit"`
	Sentiment      float64 `json:"sentiment"`
	TrendShape     float64 `json:"trend_shape"`
	PlatformCount  float64 `json:"platform_count"`
	PurchaseIntent float64 `json:"purchase_intent"`
	Recency        float64 `json:"recency"`
}

func SearchAccel(in Input) float64 {
	velocity := maxValue(in.Signals, signal.TypeSearchVelocity)
	score := clamp(velocity/50, 0, 100)
	if countType(in.Signals, signal.TypeBreakout) > 0 {
		score += 30
	}
	score += math.Min(float64(countType(in.Signals, signal.TypeRising))*5, 20)
	return math.Min(score, 100)
}

func SocialVelocity(in Input) float64 {
	tiktok := clamp(maxValue(in.Signals, signal.TypeTikTokPopularity)/100, 0, 100)
	reddit := clamp(maxValue(in.Signals, signal.TypeUpvoteVelocity), 0, 100)

	creators := map[string]struct{}{}
	for _, s := range in.Signals {
		if s.SignalType != signal.TypeTikTokPopularity {
			continue
		}
		meta := metadata(s)
		for _, key := range []string{"author", "creator", "username"} {
			if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
				creators[strings.TrimSpace(v)] = struct{}{}
				break
			}
		}
	}
	diversity := math.Min(float64(len(creators))*5, 15)
	return math.Min(0.6*tiktok+0.4*reddit+diversity, 100)
}

func AmazonMomentum(in Input) float64 {
	return clamp(maxValue(in.Signals, signal.TypeBSRMomentum)/10, 0, 100)
}

// PriceFit favours the $20-60 band and ramps linearly away from it.
func PriceFit(in Input) float64 {
	price, ok := in.PriceRange.Midpoint()
	if !ok {
		return 50
	}
	switch {
	case price >= 20 && price <= 60:
		return 100
	case price >= 10 && price < 20:
		return 50 + (price-10)/10*50
	case price > 60 && price <= 80:
		return 100 - (price-60)/20*50
	case price >= 0 && price < 10:
		return price / 10 * 50
	case price > 80 && price <= 150:
		return math.Max(50-(price-80)/70*50, 0)
	default:
		return 0
	}
}

// Sentiment averages precomputed sentiment signals; 50 when there are none.
func Sentiment(in Input) float64 {
	var sum float64
	var n int
	for _, s := range in.Signals {
		if s.SignalType != signal.TypeSentiment {
			continue
		}
		sum += clamp(s.Value, 0, 100)
		n++
	}
	if n == 0 {
		return 50
	}
	return sum / float64(n)
}

// DistinctSources counts source tags with at least one signal.
func DistinctSources(signals []models.RawSignal) int {
	seen := map[string]struct{}{}
	for _, s := range signals {
		seen[s.Source] = struct{}{}
	}
	return len(seen)
}

func PlatformCount(in Input) float64 {
	return math.Min(float64(DistinctSources(in.Signals))/4*100, 100)
}

// Recency is the share of window signals collected in the last 24 hours.
func Recency(in Input) float64 {
	if len(in.Signals) == 0 {
		return 0
	}
	cutoff := in.AsOf.Add(-24 * time.Hour)
	recent := 0
	for _, s := range in.Signals {
		if !s.CollectedAt.Before(cutoff) && !s.CollectedAt.After(in.AsOf) {
			recent++
		}
	}
	return math.Min(float64(recent)/float64(len(in.Signals))*100, 100)
}

// Compute runs every component against in.
func Compute(in Input) Components {
	return Components{
		SearchAccel:    SearchAccel(in),
		SocialVelocity: SocialVelocity(in),
		AmazonMomentum: AmazonMomentum(in),
		PriceFit:       PriceFit(in),
		Sentiment:      Sentiment(in),
		TrendShape:     TrendShape(in.History),
		PlatformCount:  PlatformCount(in),
		PurchaseIntent: PurchaseIntent(in),
		Recency:        Recency(in),
	}
}

func maxValue(signals []models.RawSignal, signalType string) float64 {
	best := 0.0
	found := false
	for _, s := range signals {
		if s.SignalType != signalType {
			continue
		}
		if !found || s.Value > best {
			best, found = s.Value, true
		}
	}
	return best
}

func countType(signals []models.RawSignal, signalType string) int {
	n := 0
	for _, s := range signals {
		if s.SignalType == signalType {
			n++
		}
	}
	return n
}

func metadata(s models.RawSignal) map[string]any {
	if len(s.Metadata) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(s.Metadata, &m); err != nil {
		return nil
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
