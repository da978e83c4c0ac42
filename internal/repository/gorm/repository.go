package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"productradar/internal/models"
	"productradar/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- products ---------------------------------------------------------------

func (s *Store) GetProductByID(ctx context.Context, id uint64) (*models.Product, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Product
	err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LookupNameKey(ctx context.Context, key string) (*models.NameKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.NameKey
	err := s.db.WithContext(ctx).Model(&models.NameKey{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListNameCandidates(ctx context.Context) ([]repository.NameCandidate, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.NameCandidate
	err := s.db.WithContext(ctx).
		Table("product_name_keys AS k").
		Select("k.key AS key, k.kind AS kind, k.product_id AS product_id, p.first_seen_at AS first_seen_at").
		Joins("JOIN products p ON p.id = k.product_id").
		Order("k.key asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CreateProduct(ctx context.Context, item *models.Product) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.FirstSeenAt.IsZero() {
		item.FirstSeenAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Create(&models.NameKey{
			Key:       item.NameKey,
			ProductID: item.ID,
			Kind:      models.NameKeyCanonical,
		}).Error
	})
	if err != nil {
		item.ID = 0
	}
	return translateConflict(err)
}

func (s *Store) CreateAlias(ctx context.Context, item *models.ProductAlias) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.NameKey{
			Key:       item.NameKey,
			ProductID: item.ProductID,
			Kind:      models.NameKeyAlias,
		}).Error; err != nil {
			return err
		}
		return tx.Create(item).Error
	})
	return translateConflict(err)
}

func (s *Store) ListAliases(ctx context.Context, productID uint64) ([]models.ProductAlias, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ProductAlias
	if err := s.db.WithContext(ctx).
		Model(&models.ProductAlias{}).
		Where("product_id = ?", productID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) EnrichProduct(ctx context.Context, productID uint64, e repository.ProductEnrichment) error {
	if s == nil || s.db == nil {
		return nil
	}
	updates := map[string]any{}
	if e.Category != nil && strings.TrimSpace(*e.Category) != "" {
		updates["category"] = gorm.Expr("COALESCE(category, ?)", strings.TrimSpace(*e.Category))
	}
	if e.ImageURL != nil && strings.TrimSpace(*e.ImageURL) != "" {
		updates["image_url"] = gorm.Expr("COALESCE(image_url, ?)", strings.TrimSpace(*e.ImageURL))
	}
	if e.SourceURL != nil && strings.TrimSpace(*e.SourceURL) != "" {
		updates["source_url"] = gorm.Expr("COALESCE(source_url, ?)", strings.TrimSpace(*e.SourceURL))
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) RecordPrice(ctx context.Context, item *models.PriceObservation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		// Single statement so concurrent observations cannot narrow the range.
		res := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).Updates(map[string]any{
			"price_low":  gorm.Expr("CASE WHEN price_low IS NULL OR price_low > ? THEN ? ELSE price_low END", item.Price, item.Price),
			"price_high": gorm.Expr("CASE WHEN price_high IS NULL OR price_high < ? THEN ? ELSE price_high END", item.Price, item.Price),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListPriceObservations(ctx context.Context, productID uint64, limit int) ([]models.PriceObservation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PriceObservation
	if err := s.db.WithContext(ctx).
		Model(&models.PriceObservation{}).
		Where("product_id = ?", productID).
		Order("observed_at desc, id desc").
		Limit(normalizeLimit(limit, 30)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- signals ----------------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.RawSignal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListWindowedSignals(ctx context.Context, productID uint64, from, to time.Time) ([]models.RawSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RawSignal
	if err := s.db.WithContext(ctx).
		Model(&models.RawSignal{}).
		Where("product_id = ? AND collected_at >= ? AND collected_at <= ?", productID, from.UTC(), to.UTC()).
		Order("collected_at asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListProductIDsWithSignals(ctx context.Context, from, to time.Time) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	if err := s.db.WithContext(ctx).
		Model(&models.RawSignal{}).
		Where("collected_at >= ? AND collected_at <= ?", from.UTC(), to.UTC()).
		Distinct("product_id").
		Order("product_id asc").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.RawSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.RawSignal{})
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.SignalType != nil && strings.TrimSpace(*params.SignalType) != "" {
		query = query.Where("signal_type = ?", strings.TrimSpace(*params.SignalType))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("collected_at >= ?", params.Since.UTC())
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("collected_at <= ?", params.Until.UTC())
	}
	query = applyOrder(query, "collected_at", params.Asc)
	var items []models.RawSignal
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertSignalSource(ctx context.Context, item *models.SignalSource) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source_type",
			"endpoint",
			"poll_interval",
			"enabled",
			"last_poll_at",
			"last_error",
			"health_status",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) IncrementSourceCounters(ctx context.Context, name string, accepted, dropped int64) error {
	if s == nil || s.db == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" || (accepted == 0 && dropped == 0) {
		return nil
	}
	item := &models.SignalSource{
		Name:           name,
		SourceType:     "push",
		Enabled:        true,
		HealthStatus:   "unknown",
		EventsAccepted: accepted,
		EventsDropped:  dropped,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"events_accepted": gorm.Expr("events_accepted + ?", accepted),
			"events_dropped":  gorm.Expr("events_dropped + ?", dropped),
			"updated_at":      time.Now().UTC(),
		}),
	}).Create(item).Error
}

func (s *Store) ListSignalSources(ctx context.Context) ([]models.SignalSource, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SignalSource
	if err := s.db.WithContext(ctx).
		Model(&models.SignalSource{}).
		Order("name asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- scores -----------------------------------------------------------------

func (s *Store) InsertTrendScore(ctx context.Context, item *models.TrendScore) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTrendScores(ctx context.Context, productID uint64, limit int) ([]models.TrendScore, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TrendScore
	if err := s.db.WithContext(ctx).
		Model(&models.TrendScore{}).
		Where("product_id = ?", productID).
		Order("computed_at desc, id desc").
		Limit(normalizeLimit(limit, 30)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetLatestTrendScore(ctx context.Context, productID uint64) (*models.TrendScore, error) {
	items, err := s.ListTrendScores(ctx, productID, 1)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (s *Store) rankingQuery(ctx context.Context, params repository.ListRankingParams) *gorm.DB {
	latest := s.db.Model(&models.TrendScore{}).Select("MAX(id)").Group("product_id")
	query := s.db.WithContext(ctx).Model(&models.TrendScore{}).Where("id IN (?)", latest)
	if params.MinScore != nil {
		query = query.Where("composite >= ?", *params.MinScore)
	}
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		cat := s.db.Model(&models.Product{}).Select("id").Where("LOWER(category) = LOWER(?)", strings.TrimSpace(*params.Category))
		query = query.Where("product_id IN (?)", cat)
	}
	return query
}

func (s *Store) ListRanking(ctx context.Context, params repository.ListRankingParams) ([]repository.RankedProduct, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var scores []models.TrendScore
	if err := s.rankingQuery(ctx, params).
		Order("composite desc, product_id asc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&scores).Error; err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	ids := make([]uint64, 0, len(scores))
	for _, sc := range scores {
		ids = append(ids, sc.ProductID)
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]repository.RankedProduct, 0, len(scores))
	for _, sc := range scores {
		p, ok := byID[sc.ProductID]
		if !ok {
			continue
		}
		out = append(out, repository.RankedProduct{Product: p, Score: sc})
	}
	return out, nil
}

func (s *Store) CountRanking(ctx context.Context, params repository.ListRankingParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.rankingQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreateScoringRun(ctx context.Context, item *models.ScoringRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) FinishScoringRun(ctx context.Context, item *models.ScoringRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.ScoringRun{}).Where("id = ?", item.ID).Updates(map[string]any{
		"status":          item.Status,
		"products_scored": item.ProductsScored,
		"error":           item.Error,
		"finished_at":     item.FinishedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListScoringRuns(ctx context.Context, limit int) ([]models.ScoringRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ScoringRun
	if err := s.db.WithContext(ctx).
		Model(&models.ScoringRun{}).
		Order("started_at desc").
		Limit(normalizeLimit(limit, 20)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- settings ---------------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	asc := true
	query = applyOrder(query, "key", &asc)
	var items []models.SystemSetting
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

// translateConflict maps unique violations from either dialect onto ErrNameKeyConflict.
func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrNameKeyConflict
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") {
		return repository.ErrNameKeyConflict
	}
	return err
}

func applyOrder(query *gorm.DB, column string, asc *bool) *gorm.DB {
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
