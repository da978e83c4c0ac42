package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightSearchAccel + WeightSocialVelocity + WeightAmazonMomentum + WeightPriceFit +
		WeightSentiment + WeightTrendShape + WeightPlatformCount + WeightPurchaseIntent + WeightRecency
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum=%v want=1", sum)
	}
}

func TestCompositeClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		c := Components{
			SearchAccel:    rng.Float64() * 100,
			SocialVelocity: rng.Float64() * 100,
			AmazonMomentum: rng.Float64() * 100,
			PriceFit:       rng.Float64() * 100,
			Sentiment:      rng.Float64() * 100,
			TrendShape:     rng.Float64() * 100,
			PlatformCount:  rng.Float64() * 100,
			PurchaseIntent: rng.Float64() * 100,
			Recency:        rng.Float64() * 100,
		}
		want := 0.25*c.SearchAccel + 0.18*c.SocialVelocity + 0.12*c.AmazonMomentum + 0.10*c.PriceFit +
			0.10*c.Sentiment + 0.08*c.TrendShape + 0.07*c.PlatformCount + 0.05*c.PurchaseIntent + 0.05*c.Recency
		got := Composite(c)
		if got < 0 || got > 100 {
			t.Fatalf("composite=%v out of range for %+v", got, c)
		}
		if math.Abs(got-want) > 0.005+1e-9 {
			t.Fatalf("composite=%v want~%v", got, want)
		}
	}
	all := Components{100, 100, 100, 100, 100, 100, 100, 100, 100}
	if got := Composite(all); got != 100 {
		t.Fatalf("all 100 => %v", got)
	}
	if got := Composite(Components{}); got != 0 {
		t.Fatalf("all 0 => %v", got)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		12.344:  12.34,
		12.346:  12.35,
		0:       0,
		99.999:  100,
		-0.004:  0,
		33.3333: 33.33,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Fatalf("Round2(%v)=%v want=%v", in, got, want)
		}
	}
}

func TestWindowInclusive(t *testing.T) {
	from, to := Window(asOf, 31)
	if !to.Equal(asOf) {
		t.Fatalf("to=%v want=%v", to, asOf)
	}
	edge := asOf.Add(-31 * 24 * time.Hour)
	if !from.Equal(edge) {
		t.Fatalf("from=%v want=%v", from, edge)
	}
	if def, _ := Window(asOf, 0); !def.Equal(edge) {
		t.Fatalf("default window=%v want=%v", def, edge)
	}
}
