package scoring

import (
	"math"
	"time"
)

// DefaultWindowDays is the trailing window every scorer reads.
const DefaultWindowDays = 31

// Weights per component. They sum to 1.
const (
	WeightSearchAccel    = 0.25
	WeightSocialVelocity = 0.18
	WeightAmazonMomentum = 0.12
	WeightPriceFit       = 0.10
	WeightSentiment      = 0.10
	WeightTrendShape     = 0.08
	WeightPlatformCount  = 0.07
	WeightPurchaseIntent = 0.05
	WeightRecency        = 0.05
)

// Composite is the weighted sum of c, clamped to [0,100] and rounded to cents.
func Composite(c Components) float64 {
	sum := WeightSearchAccel*c.SearchAccel +
		WeightSocialVelocity*c.SocialVelocity +
		WeightAmazonMomentum*c.AmazonMomentum +
		WeightPriceFit*c.PriceFit +
		WeightSentiment*c.Sentiment +
		WeightTrendShape*c.TrendShape +
		WeightPlatformCount*c.PlatformCount +
		WeightPurchaseIntent*c.PurchaseIntent +
		WeightRecency*c.Recency
	return Round2(clamp(sum, 0, 100))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Window returns the inclusive [from, to] range ending at asOf.
func Window(asOf time.Time, days int) (time.Time, time.Time) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	asOf = asOf.UTC()
	return asOf.Add(-time.Duration(days) * 24 * time.Hour), asOf
}
