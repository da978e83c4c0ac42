package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"productradar/internal/client/llm"
)

const analystPrompt = `You are a dropshipping product analyst. Analyze the provided products and
return a JSON array (no markdown fencing). Each element must have exactly these fields:
name (string), verdict (one of: Strong, Moderate, Speculative), strengths (array of 2-4 short strings),
risks (array of 2-3 short strings), strategy (1-2 sentence string),
target_channel (string, e.g. "TikTok Ads", "Google Shopping", "Instagram Influencers").
Order must match input order.`

// AnthropicAnalyst asks the model for a structured verdict per candidate.
type AnthropicAnalyst struct {
	LLM llm.Completer
}

func (a AnthropicAnalyst) Analyze(ctx context.Context, candidates []Candidate) ([]Analysis, error) {
	if a.LLM == nil {
		return nil, llm.ErrNotConfigured
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	text, err := a.LLM.Complete(ctx, analystPrompt, buildPrompt(candidates))
	if err != nil {
		return nil, err
	}
	var out []Analysis
	if err := json.Unmarshal([]byte(llm.StripFences(text)), &out); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if len(out) != len(candidates) {
		return nil, fmt.Errorf("analysis has %d items for %d products", len(out), len(candidates))
	}
	return out, nil
}

func buildPrompt(candidates []Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		category := c.Category
		if category == "" {
			category = "unknown"
		}
		firstSeen := "unknown"
		if !c.FirstSeen.IsZero() {
			firstSeen = c.FirstSeen.UTC().Format("2006-01-02")
		}
		sources := "none"
		if len(c.Sources) > 0 {
			sources = strings.Join(c.Sources, ", ")
		}
		fmt.Fprintf(&b, "%d. %s | category: %s | price: %s | ds_score: %.1f | trend_shape: %.1f | "+
			"price_fit: %.1f | sentiment: %.1f | social_velocity: %.1f | platform_count: %d | "+
			"search_accel: %.1f | purchase_intent: %.1f | platforms: %s | first_seen: %s\n",
			i+1, c.Name, category, priceLabel(c.PriceLow, c.PriceHigh), c.DSScore,
			c.Score.TrendShape, c.Score.PriceFit, c.Score.Sentiment, c.Score.SocialVelocity,
			c.Score.Platforms, c.Score.SearchAccel, c.Score.PurchaseIntent, sources, firstSeen)
	}
	return strings.TrimRight(b.String(), "\n")
}

func priceLabel(low, high *float64) string {
	switch {
	case low != nil && high != nil:
		return fmt.Sprintf("$%.0f-$%.0f", *low, *high)
	case high != nil:
		return fmt.Sprintf("up to $%.0f", *high)
	case low != nil:
		return fmt.Sprintf("from $%.0f", *low)
	default:
		return "unknown"
	}
}
