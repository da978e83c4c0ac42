package scoring

import (
	"math"
	"regexp"
	"strings"
)

var intentPattern = regexp.MustCompile(`(?i)` +
	`where (?:can i|to|do i) buy|` +
	`need this|take my money|shut up and take|` +
	`link\??|just bought|how much|` +
	`where.{0,10}get (?:this|one|it)|` +
	`added to (?:cart|wishlist)|` +
	`in stock|buy (?:this|one|it)|` +
	`price\??|cost\??|` +
	`want (?:this|one|it) so bad`)

// Sources whose metadata carries user-written text.
var intentSources = map[string]struct{}{
	"reddit": {},
	"amazon": {},
	"tiktok": {},
}

// HasPurchaseIntent reports whether text contains a buying-intent phrase.
func HasPurchaseIntent(text string) bool {
	return intentPattern.MatchString(text)
}

// PurchaseIntent is the share of text samples that express buying intent.
func PurchaseIntent(in Input) float64 {
	texts := intentTexts(in)
	if len(texts) == 0 {
		return 0
	}
	matches := 0
	for _, t := range texts {
		if HasPurchaseIntent(t) {
			matches++
		}
	}
	return math.Min(float64(matches)/float64(len(texts))*100, 100)
}

func intentTexts(in Input) []string {
	var texts []string
	add := func(v any) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			texts = append(texts, s)
		}
	}
	for _, s := range in.Signals {
		if _, ok := intentSources[s.Source]; !ok {
			continue
		}
		meta := metadata(s)
		if meta == nil {
			continue
		}
		for _, key := range []string{"title", "caption", "body", "description"} {
			add(meta[key])
		}
		comments, _ := meta["top_comments"].([]any)
		for _, c := range comments {
			switch v := c.(type) {
			case string:
				add(v)
			case map[string]any:
				add(v["body"])
			}
		}
	}
	return texts
}
