// Package resolver maps raw product names onto stable product ids, creating
// products and aliases as new phrasings are observed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"productradar/internal/logger"
	"productradar/internal/metrics"
	"productradar/internal/models"
	"productradar/internal/normalize"
	"productradar/internal/repository"
)

const (
	DefaultThreshold  = 80.0
	DefaultMaxRetries = 3
)

type Match string

const (
	MatchExact Match = "exact"
	MatchAlias Match = "alias"
	MatchFuzzy Match = "fuzzy"
	MatchNew   Match = "new"
)

// Resolution describes how a raw name was mapped to a product.
type Resolution struct {
	ProductID  uint64
	Key        string
	Match      Match
	Similarity float64
	// Created is true only for the call that inserted a product or alias row.
	Created bool
}

type Resolver struct {
	Repo       repository.ProductRepository
	Logger     *zap.Logger
	Threshold  float64
	MaxRetries int
	Now        func() time.Time

	flight singleflight.Group
}

// Resolve maps rawName to a product id. Concurrent calls for the same key share
// one resolution; cross-process races are settled by the store's unique keys and
// a bounded re-resolve.
func (r *Resolver) Resolve(ctx context.Context, rawName, source string) (Resolution, error) {
	if r == nil || r.Repo == nil {
		return Resolution{}, errors.New("resolver not configured")
	}
	key := normalize.Key(rawName)
	// The shared resolution must outlive any single caller's cancellation;
	// each caller still stops waiting on its own context.
	leader := false
	ch := r.flight.DoChan(key, func() (any, error) {
		leader = true
		return r.resolveKey(context.WithoutCancel(ctx), key, rawName, source)
	})
	var out singleflight.Result
	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case out = <-ch:
	}
	if out.Err != nil {
		return Resolution{}, out.Err
	}
	res := out.Val.(Resolution)
	if !leader {
		res = joined(res)
	}
	metrics.ResolutionsTotal.WithLabelValues(string(res.Match)).Inc()
	return res, nil
}

// joined is the view of a shared resolution from a caller that did not run it:
// whatever the leader created already exists under this key.
func joined(res Resolution) Resolution {
	if !res.Created {
		return res
	}
	res.Created = false
	if res.Match == MatchNew {
		res.Match = MatchExact
	} else {
		res.Match = MatchAlias
	}
	return res
}

func (r *Resolver) resolveKey(ctx context.Context, key, rawName, source string) (Resolution, error) {
	retries := r.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	for attempt := 1; attempt <= retries; attempt++ {
		res, err := r.resolveOnce(ctx, key, rawName, source)
		if !errors.Is(err, repository.ErrNameKeyConflict) {
			return res, err
		}
		metrics.ResolverConflictsTotal.Inc()
		logger.OrNop(r.Logger).Debug("name key conflict, re-resolving",
			zap.String("key", key),
			zap.Int("attempt", attempt),
		)
	}
	return Resolution{}, fmt.Errorf("resolve %q: %w", key, repository.ErrNameKeyConflict)
}

func (r *Resolver) resolveOnce(ctx context.Context, key, rawName, source string) (Resolution, error) {
	nk, err := r.Repo.LookupNameKey(ctx, key)
	if err != nil {
		return Resolution{}, err
	}
	if nk != nil {
		match := MatchExact
		if nk.Kind == models.NameKeyAlias {
			match = MatchAlias
		}
		return Resolution{ProductID: nk.ProductID, Key: key, Match: match, Similarity: 100}, nil
	}

	if key != "" {
		candidates, err := r.Repo.ListNameCandidates(ctx)
		if err != nil {
			return Resolution{}, err
		}
		if best, score, ok := BestMatch(key, candidates, r.threshold()); ok {
			alias := &models.ProductAlias{
				ProductID: best.ProductID,
				NameKey:   key,
				RawName:   displayName(rawName, key),
				Source:    source,
			}
			if err := r.Repo.CreateAlias(ctx, alias); err != nil {
				return Resolution{}, err
			}
			logger.OrNop(r.Logger).Info("alias recorded",
				zap.Uint64("product_id", best.ProductID),
				zap.String("alias", key),
				zap.String("matched", best.Key),
				zap.Float64("similarity", score),
			)
			return Resolution{ProductID: best.ProductID, Key: key, Match: MatchFuzzy, Similarity: score, Created: true}, nil
		}
	}

	product := &models.Product{
		Name:        displayName(rawName, key),
		NameKey:     key,
		FirstSeenAt: r.now(),
	}
	if err := r.Repo.CreateProduct(ctx, product); err != nil {
		return Resolution{}, err
	}
	logger.OrNop(r.Logger).Info("product created",
		zap.Uint64("product_id", product.ID),
		zap.String("key", key),
		zap.String("source", source),
	)
	return Resolution{ProductID: product.ID, Key: key, Match: MatchNew, Created: true}, nil
}

// BestMatch returns the candidate most similar to key whose score reaches threshold.
// Ties go to the product first seen earliest, then to the lowest product id.
func BestMatch(key string, candidates []repository.NameCandidate, threshold float64) (repository.NameCandidate, float64, bool) {
	var (
		best      repository.NameCandidate
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		if c.Key == "" {
			continue
		}
		score := Similarity(key, c.Key)
		if score < threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && earlier(c, best)) {
			best, bestScore, found = c, score, true
		}
	}
	return best, bestScore, found
}

func earlier(a, b repository.NameCandidate) bool {
	if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
		return a.FirstSeenAt.Before(b.FirstSeenAt)
	}
	return a.ProductID < b.ProductID
}

func (r *Resolver) threshold() float64 {
	if r.Threshold <= 0 {
		return DefaultThreshold
	}
	return r.Threshold
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// displayName keeps the observed phrasing with whitespace collapsed.
func displayName(rawName, key string) string {
	name := strings.Join(strings.Fields(rawName), " ")
	if name == "" {
		return key
	}
	if runes := []rune(name); len(runes) > 300 {
		name = string(runes[:300])
	}
	return name
}
