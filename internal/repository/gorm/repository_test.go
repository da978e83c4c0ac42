package gormrepository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productradar/internal/config"
	"productradar/internal/db"
	"productradar/internal/models"
	"productradar/internal/repository"
	gormrepository "productradar/internal/repository/gorm"
)

func openStore(t *testing.T) *gormrepository.Store {
	t.Helper()
	conn, err := db.Open(config.DBConfig{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.AutoMigrate(conn))
	return gormrepository.New(conn.Gorm)
}

func TestStore_NameKeysAreUniqueAcrossProductsAndAliases(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	p := &models.Product{Name: "Standing Desk", NameKey: "standing desk"}
	require.NoError(t, store.CreateProduct(ctx, p))
	require.NotZero(t, p.ID)

	dup := &models.Product{Name: "standing desk", NameKey: "standing desk"}
	err := store.CreateProduct(ctx, dup)
	assert.True(t, errors.Is(err, repository.ErrNameKeyConflict), "err=%v", err)

	err = store.CreateAlias(ctx, &models.ProductAlias{ProductID: p.ID, NameKey: "standing desk"})
	assert.True(t, errors.Is(err, repository.ErrNameKeyConflict), "err=%v", err)

	require.NoError(t, store.CreateAlias(ctx, &models.ProductAlias{ProductID: p.ID, NameKey: "standing-desk", Source: "amazon"}))
	err = store.CreateProduct(ctx, &models.Product{Name: "STANDING-DESK", NameKey: "standing-desk"})
	assert.True(t, errors.Is(err, repository.ErrNameKeyConflict), "err=%v", err)

	total, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	nk, err := store.LookupNameKey(ctx, "standing-desk")
	require.NoError(t, err)
	require.NotNil(t, nk)
	assert.Equal(t, models.NameKeyAlias, nk.Kind)
	assert.Equal(t, p.ID, nk.ProductID)

	candidates, err := store.ListNameCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestStore_WindowedSignalsInclusiveBounds(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := &models.Product{Name: "Neck Fan", NameKey: "neck fan"}
	require.NoError(t, store.CreateProduct(ctx, p))

	asOf := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	from := asOf.Add(-31 * 24 * time.Hour)
	for _, at := range []time.Time{from, from.Add(-24 * time.Hour), asOf, asOf.Add(time.Second)} {
		require.NoError(t, store.InsertSignal(ctx, &models.RawSignal{
			ProductID:   p.ID,
			Source:      "reddit",
			SignalType:  "upvote_velocity",
			Value:       10,
			CollectedAt: at,
		}))
	}

	items, err := store.ListWindowedSignals(ctx, p.ID, from, asOf)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].CollectedAt.Equal(from))
	assert.True(t, items[1].CollectedAt.Equal(asOf))

	ids, err := store.ListProductIDsWithSignals(ctx, from, asOf)
	require.NoError(t, err)
	assert.Equal(t, []uint64{p.ID}, ids)
}

func TestStore_RecordPriceWidensRange(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := &models.Product{Name: "Mini Projector", NameKey: "mini projector"}
	require.NoError(t, store.CreateProduct(ctx, p))

	for _, v := range []string{"49.99", "39.50", "59.00"} {
		require.NoError(t, store.RecordPrice(ctx, &models.PriceObservation{
			ProductID:  p.ID,
			Price:      decimal.RequireFromString(v),
			Source:     "amazon",
			ObservedAt: time.Now().UTC(),
		}))
	}
	got, err := store.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.PriceLow.Valid)
	require.True(t, got.PriceHigh.Valid)
	assert.True(t, got.PriceLow.Decimal.Equal(decimal.RequireFromString("39.50")), "low=%s", got.PriceLow.Decimal)
	assert.True(t, got.PriceHigh.Decimal.Equal(decimal.RequireFromString("59.00")), "high=%s", got.PriceHigh.Decimal)

	obs, err := store.ListPriceObservations(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, obs, 3)
}

func TestStore_RankingUsesLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	a := &models.Product{Name: "Desk Lamp", NameKey: "desk lamp"}
	b := &models.Product{Name: "Ice Roller", NameKey: "ice roller"}
	require.NoError(t, store.CreateProduct(ctx, a))
	require.NoError(t, store.CreateProduct(ctx, b))

	now := time.Now().UTC()
	require.NoError(t, store.InsertTrendScore(ctx, &models.TrendScore{ProductID: a.ID, RunID: "r1", Composite: 90, ComputedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.InsertTrendScore(ctx, &models.TrendScore{ProductID: b.ID, RunID: "r1", Composite: 50, ComputedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.InsertTrendScore(ctx, &models.TrendScore{ProductID: a.ID, RunID: "r2", Composite: 40, ComputedAt: now}))

	ranked, err := store.ListRanking(ctx, repository.ListRankingParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, b.ID, ranked[0].Product.ID)
	assert.Equal(t, 40.0, ranked[1].Score.Composite)

	min := 45.0
	total, err := store.CountRanking(ctx, repository.ListRankingParams{MinScore: &min})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestStore_SourceCounters(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.IncrementSourceCounters(ctx, "tiktok", 3, 1))
	require.NoError(t, store.IncrementSourceCounters(ctx, "tiktok", 2, 0))
	items, err := store.ListSignalSources(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].EventsAccepted)
	assert.Equal(t, int64(1), items[0].EventsDropped)
}
