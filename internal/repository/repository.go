package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"productradar/internal/models"
)

var (
	// ErrNotFound is returned by lookups that require the row to exist.
	ErrNotFound = errors.New("record not found")
	// ErrNameKeyConflict is returned when a normalised key is already registered
	// to a product, either as its canonical key or as an alias.
	ErrNameKeyConflict = errors.New("name key already registered")
)

// NameCandidate is one registered key considered during fuzzy resolution.
type NameCandidate struct {
	Key         string
	Kind        string
	ProductID   uint64
	FirstSeenAt time.Time
}

// ProductEnrichment carries write-once descriptive fields. Nil fields are ignored and
// fields that are already set on the product are never overwritten.
type ProductEnrichment struct {
	Category  *string
	ImageURL  *string
	SourceURL *string
}

type ProductRepository interface {
	GetProductByID(ctx context.Context, id uint64) (*models.Product, error)
	// LookupNameKey returns the registered key row, or nil when the key is unknown.
	LookupNameKey(ctx context.Context, key string) (*models.NameKey, error)
	ListNameCandidates(ctx context.Context) ([]NameCandidate, error)
	// CreateProduct registers product.NameKey and inserts the product atomically.
	CreateProduct(ctx context.Context, item *models.Product) error
	// CreateAlias registers alias.NameKey and inserts the alias atomically.
	CreateAlias(ctx context.Context, item *models.ProductAlias) error
	ListAliases(ctx context.Context, productID uint64) ([]models.ProductAlias, error)
	CountProducts(ctx context.Context) (int64, error)
	EnrichProduct(ctx context.Context, productID uint64, e ProductEnrichment) error
	// RecordPrice appends an observation and widens the product's price range.
	RecordPrice(ctx context.Context, item *models.PriceObservation) error
	ListPriceObservations(ctx context.Context, productID uint64, limit int) ([]models.PriceObservation, error)
}

type SignalRepository interface {
	InsertSignal(ctx context.Context, item *models.RawSignal) error
	// ListWindowedSignals returns signals with from <= collected_at <= to, oldest first.
	ListWindowedSignals(ctx context.Context, productID uint64, from, to time.Time) ([]models.RawSignal, error)
	ListProductIDsWithSignals(ctx context.Context, from, to time.Time) ([]uint64, error)
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.RawSignal, error)

	UpsertSignalSource(ctx context.Context, item *models.SignalSource) error
	IncrementSourceCounters(ctx context.Context, name string, accepted, dropped int64) error
	ListSignalSources(ctx context.Context) ([]models.SignalSource, error)
}

type ScoreRepository interface {
	InsertTrendScore(ctx context.Context, item *models.TrendScore) error
	// ListTrendScores returns the newest snapshots first.
	ListTrendScores(ctx context.Context, productID uint64, limit int) ([]models.TrendScore, error)
	GetLatestTrendScore(ctx context.Context, productID uint64) (*models.TrendScore, error)
	ListRanking(ctx context.Context, params ListRankingParams) ([]RankedProduct, error)
	CountRanking(ctx context.Context, params ListRankingParams) (int64, error)

	CreateScoringRun(ctx context.Context, item *models.ScoringRun) error
	FinishScoringRun(ctx context.Context, item *models.ScoringRun) error
	ListScoringRuns(ctx context.Context, limit int) ([]models.ScoringRun, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// Repository is the full persistence contract used by the service.
type Repository interface {
	ProductRepository
	SignalRepository
	ScoreRepository
	SettingsRepository
}

type ListSignalsParams struct {
	Limit      int
	Offset     int
	ProductID  *uint64
	Source     *string
	SignalType *string
	Since      *time.Time
	Until      *time.Time
	Asc        *bool
}

type ListRankingParams struct {
	Limit    int
	Offset   int
	MinScore *float64
	Category *string
}

// RankedProduct pairs a product with its most recent snapshot.
type RankedProduct struct {
	Product models.Product
	Score   models.TrendScore
}

type ListSystemSettingsParams struct {
	Limit  int
	Offset int
	Prefix *string
}

// WidenRange returns the price range after observing price.
func WidenRange(low, high decimal.NullDecimal, price decimal.Decimal) (decimal.NullDecimal, decimal.NullDecimal) {
	if !low.Valid || price.LessThan(low.Decimal) {
		low = decimal.NullDecimal{Decimal: price, Valid: true}
	}
	if !high.Valid || price.GreaterThan(high.Decimal) {
		high = decimal.NullDecimal{Decimal: price, Valid: true}
	}
	return low, high
}
