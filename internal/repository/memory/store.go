// Package memoryrepository is an in-process Repository used by tests and the
// db.driver=memory mode. Every operation is synchronous, so reads always observe
// earlier writes from the same process.
package memoryrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"productradar/internal/models"
	"productradar/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	products     map[uint64]*models.Product
	nameKeys     map[string]models.NameKey
	aliases      []models.ProductAlias
	signals      []models.RawSignal
	prices       []models.PriceObservation
	scores       []models.TrendScore
	runs         []models.ScoringRun
	sources      map[string]*models.SignalSource
	settings     map[string]*models.SystemSetting
	nextProduct  uint64
	nextAlias    uint64
	nextSignal   uint64
	nextPrice    uint64
	nextScore    uint64
	nextSource   uint64
	nextSettings uint64
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		products: map[uint64]*models.Product{},
		nameKeys: map[string]models.NameKey{},
		sources:  map[string]*models.SignalSource{},
		settings: map[string]*models.SystemSetting{},
	}
}

// --- products ---------------------------------------------------------------

func (s *Store) GetProductByID(ctx context.Context, id uint64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) LookupNameKey(ctx context.Context, key string) (*models.NameKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nk, ok := s.nameKeys[key]
	if !ok {
		return nil, nil
	}
	return &nk, nil
}

func (s *Store) ListNameCandidates(ctx context.Context) ([]repository.NameCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.NameCandidate, 0, len(s.nameKeys))
	for _, nk := range s.nameKeys {
		p := s.products[nk.ProductID]
		if p == nil {
			continue
		}
		out = append(out, repository.NameCandidate{
			Key:         nk.Key,
			Kind:        nk.Kind,
			ProductID:   nk.ProductID,
			FirstSeenAt: p.FirstSeenAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, item *models.Product) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.nameKeys[item.NameKey]; taken {
		return repository.ErrNameKeyConflict
	}
	s.nextProduct++
	now := time.Now().UTC()
	item.ID = s.nextProduct
	if item.FirstSeenAt.IsZero() {
		item.FirstSeenAt = now
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	cp := *item
	s.products[item.ID] = &cp
	s.nameKeys[item.NameKey] = models.NameKey{
		Key:       item.NameKey,
		ProductID: item.ID,
		Kind:      models.NameKeyCanonical,
		CreatedAt: now,
	}
	return nil
}

func (s *Store) CreateAlias(ctx context.Context, item *models.ProductAlias) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.nameKeys[item.NameKey]; taken {
		return repository.ErrNameKeyConflict
	}
	if _, ok := s.products[item.ProductID]; !ok {
		return repository.ErrNotFound
	}
	s.nextAlias++
	now := time.Now().UTC()
	item.ID = s.nextAlias
	item.CreatedAt = now
	s.aliases = append(s.aliases, *item)
	s.nameKeys[item.NameKey] = models.NameKey{
		Key:       item.NameKey,
		ProductID: item.ProductID,
		Kind:      models.NameKeyAlias,
		CreatedAt: now,
	}
	return nil
}

func (s *Store) ListAliases(ctx context.Context, productID uint64) ([]models.ProductAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ProductAlias
	for _, a := range s.aliases {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *Store) EnrichProduct(ctx context.Context, productID uint64, e repository.ProductEnrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Category == nil && e.Category != nil {
		v := *e.Category
		p.Category = &v
	}
	if p.ImageURL == nil && e.ImageURL != nil {
		v := *e.ImageURL
		p.ImageURL = &v
	}
	if p.SourceURL == nil && e.SourceURL != nil {
		v := *e.SourceURL
		p.SourceURL = &v
	}
	return nil
}

func (s *Store) RecordPrice(ctx context.Context, item *models.PriceObservation) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[item.ProductID]
	if !ok {
		return repository.ErrNotFound
	}
	s.nextPrice++
	item.ID = s.nextPrice
	s.prices = append(s.prices, *item)
	p.PriceLow, p.PriceHigh = repository.WidenRange(p.PriceLow, p.PriceHigh, item.Price)
	return nil
}

func (s *Store) ListPriceObservations(ctx context.Context, productID uint64, limit int) ([]models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PriceObservation
	for i := len(s.prices) - 1; i >= 0; i-- {
		if s.prices[i].ProductID == productID {
			out = append(out, s.prices[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	return truncate(out, limit), nil
}

// --- signals ----------------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.RawSignal) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSignal++
	item.ID = s.nextSignal
	item.CreatedAt = time.Now().UTC()
	s.signals = append(s.signals, *item)
	return nil
}

func (s *Store) ListWindowedSignals(ctx context.Context, productID uint64, from, to time.Time) ([]models.RawSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RawSignal
	for _, sig := range s.signals {
		if sig.ProductID != productID {
			continue
		}
		if sig.CollectedAt.Before(from) || sig.CollectedAt.After(to) {
			continue
		}
		out = append(out, sig)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CollectedAt.Before(out[j].CollectedAt) })
	return out, nil
}

func (s *Store) ListProductIDsWithSignals(ctx context.Context, from, to time.Time) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[uint64]struct{}{}
	for _, sig := range s.signals {
		if sig.CollectedAt.Before(from) || sig.CollectedAt.After(to) {
			continue
		}
		seen[sig.ProductID] = struct{}{}
	}
	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.RawSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RawSignal
	for _, sig := range s.signals {
		if params.ProductID != nil && sig.ProductID != *params.ProductID {
			continue
		}
		if params.Source != nil && strings.TrimSpace(*params.Source) != "" && sig.Source != strings.TrimSpace(*params.Source) {
			continue
		}
		if params.SignalType != nil && strings.TrimSpace(*params.SignalType) != "" && sig.SignalType != strings.TrimSpace(*params.SignalType) {
			continue
		}
		if params.Since != nil && sig.CollectedAt.Before(*params.Since) {
			continue
		}
		if params.Until != nil && sig.CollectedAt.After(*params.Until) {
			continue
		}
		out = append(out, sig)
	}
	asc := params.Asc != nil && *params.Asc
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return out[i].CollectedAt.Before(out[j].CollectedAt)
		}
		return out[i].CollectedAt.After(out[j].CollectedAt)
	})
	return page(out, params.Limit, params.Offset, 200), nil
}

func (s *Store) UpsertSignalSource(ctx context.Context, item *models.SignalSource) error {
	if item == nil || strings.TrimSpace(item.Name) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := s.sources[item.Name]
	if !ok {
		s.nextSource++
		cp := *item
		cp.ID = s.nextSource
		cp.CreatedAt = now
		cp.UpdatedAt = now
		s.sources[item.Name] = &cp
		return nil
	}
	existing.SourceType = item.SourceType
	existing.Endpoint = item.Endpoint
	existing.PollInterval = item.PollInterval
	existing.Enabled = item.Enabled
	existing.LastPollAt = item.LastPollAt
	existing.LastError = item.LastError
	existing.HealthStatus = item.HealthStatus
	existing.UpdatedAt = now
	return nil
}

func (s *Store) IncrementSourceCounters(ctx context.Context, name string, accepted, dropped int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[name]
	if !ok {
		s.nextSource++
		src = &models.SignalSource{ID: s.nextSource, Name: name, SourceType: "push", Enabled: true, HealthStatus: "unknown", CreatedAt: time.Now().UTC()}
		s.sources[name] = src
	}
	src.EventsAccepted += accepted
	src.EventsDropped += dropped
	src.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListSignalSources(ctx context.Context) ([]models.SignalSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SignalSource, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- scores -----------------------------------------------------------------

func (s *Store) InsertTrendScore(ctx context.Context, item *models.TrendScore) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextScore++
	item.ID = s.nextScore
	s.scores = append(s.scores, *item)
	return nil
}

func (s *Store) ListTrendScores(ctx context.Context, productID uint64, limit int) ([]models.TrendScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TrendScore
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].ProductID == productID {
			out = append(out, s.scores[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ComputedAt.After(out[j].ComputedAt) })
	return truncate(out, limit), nil
}

func (s *Store) GetLatestTrendScore(ctx context.Context, productID uint64) (*models.TrendScore, error) {
	items, err := s.ListTrendScores(ctx, productID, 1)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (s *Store) latestRanking(params repository.ListRankingParams) []repository.RankedProduct {
	latest := map[uint64]models.TrendScore{}
	for _, sc := range s.scores {
		cur, ok := latest[sc.ProductID]
		if !ok || sc.ID > cur.ID {
			latest[sc.ProductID] = sc
		}
	}
	out := make([]repository.RankedProduct, 0, len(latest))
	for pid, sc := range latest {
		p, ok := s.products[pid]
		if !ok {
			continue
		}
		if params.MinScore != nil && sc.Composite < *params.MinScore {
			continue
		}
		if params.Category != nil && (p.Category == nil || !strings.EqualFold(*p.Category, *params.Category)) {
			continue
		}
		out = append(out, repository.RankedProduct{Product: *p, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score.Composite != out[j].Score.Composite {
			return out[i].Score.Composite > out[j].Score.Composite
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	return out
}

func (s *Store) ListRanking(ctx context.Context, params repository.ListRankingParams) ([]repository.RankedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.latestRanking(params), params.Limit, params.Offset, 50), nil
}

func (s *Store) CountRanking(ctx context.Context, params repository.ListRankingParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.latestRanking(params))), nil
}

func (s *Store) CreateScoringRun(ctx context.Context, item *models.ScoringRun) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *item)
	return nil
}

func (s *Store) FinishScoringRun(ctx context.Context, item *models.ScoringRun) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == item.ID {
			s.runs[i] = *item
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) ListScoringRuns(ctx context.Context, limit int) ([]models.ScoringRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScoringRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
	}
	return truncate(out, limit), nil
}

// --- settings ---------------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if item == nil || strings.TrimSpace(item.Key) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(item.Key)
	now := time.Now().UTC()
	if existing, ok := s.settings[key]; ok {
		existing.Value = item.Value
		existing.Description = item.Description
		existing.UpdatedAt = now
		return nil
	}
	s.nextSettings++
	cp := *item
	cp.ID = s.nextSettings
	cp.Key = key
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.settings[key] = &cp
	return nil
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.settings[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SystemSetting, 0, len(s.settings))
	for _, item := range s.settings {
		if params.Prefix != nil && !strings.HasPrefix(item.Key, strings.TrimSpace(*params.Prefix)) {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return page(out, params.Limit, params.Offset, 500), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func page[T any](items []T, limit, offset, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
