package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productradar/internal/models"
	"productradar/internal/repository"
	memoryrepository "productradar/internal/repository/memory"
)

func newResolver(repo repository.ProductRepository) *Resolver {
	return &Resolver{Repo: repo, Threshold: DefaultThreshold}
}

func aliasCount(t *testing.T, store *memoryrepository.Store, productID uint64) int {
	t.Helper()
	items, err := store.ListAliases(context.Background(), productID)
	require.NoError(t, err)
	return len(items)
}

func productCount(t *testing.T, store *memoryrepository.Store) int64 {
	t.Helper()
	n, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	return n
}

func TestResolve_ExactMatchIsStable(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	r := newResolver(store)

	first, err := r.Resolve(ctx, "Apple AirPods Pro", "amazon")
	require.NoError(t, err)
	assert.Equal(t, MatchNew, first.Match)
	assert.True(t, first.Created)

	for _, raw := range []string{"Apple AirPods Pro", "apple airpods pro", "  THE Apple AirPods Pro!! "} {
		again, err := r.Resolve(ctx, raw, "reddit")
		require.NoError(t, err)
		assert.Equal(t, first.ProductID, again.ProductID)
		assert.Equal(t, MatchExact, again.Match)
		assert.False(t, again.Created)
	}
	assert.Equal(t, int64(1), productCount(t, store))
	assert.Equal(t, 0, aliasCount(t, store, first.ProductID))
}

func TestResolve_FuzzyMergeCreatesOneAlias(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	r := newResolver(store)

	base, err := r.Resolve(ctx, "Apple AirPods Pro", "amazon")
	require.NoError(t, err)

	variant, err := r.Resolve(ctx, "Apple AirPods Pro 2", "tiktok")
	require.NoError(t, err)
	assert.Equal(t, base.ProductID, variant.ProductID)
	assert.Equal(t, MatchFuzzy, variant.Match)
	assert.GreaterOrEqual(t, variant.Similarity, DefaultThreshold)
	assert.Equal(t, int64(1), productCount(t, store))
	assert.Equal(t, 1, aliasCount(t, store, base.ProductID))

	// The recorded alias now matches exactly and adds nothing.
	again, err := r.Resolve(ctx, "apple airpods pro 2", "reddit")
	require.NoError(t, err)
	assert.Equal(t, base.ProductID, again.ProductID)
	assert.Equal(t, MatchAlias, again.Match)
	assert.Equal(t, 1, aliasCount(t, store, base.ProductID))

	p, err := store.GetProductByID(ctx, base.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "apple airpods pro", p.NameKey, "canonical key must not change")
	assert.Equal(t, "Apple AirPods Pro", p.Name)
}

func TestResolve_BelowThresholdCreatesNewProduct(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	r := newResolver(store)

	a, err := r.Resolve(ctx, "Apple AirPods Pro", "amazon")
	require.NoError(t, err)
	b, err := r.Resolve(ctx, "Ergonomic Office Chair", "walmart")
	require.NoError(t, err)
	c, err := r.Resolve(ctx, "AirPods Pro (2nd Gen)", "reddit")
	require.NoError(t, err)

	assert.Equal(t, MatchNew, b.Match)
	assert.Equal(t, MatchNew, c.Match)
	assert.NotEqual(t, a.ProductID, b.ProductID)
	assert.NotEqual(t, a.ProductID, c.ProductID)
	assert.Equal(t, int64(3), productCount(t, store))
	for _, id := range []uint64{a.ProductID, b.ProductID, c.ProductID} {
		assert.Equal(t, 0, aliasCount(t, store, id))
	}
}

func TestResolve_EmptyNameStillResolves(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	r := newResolver(store)

	first, err := r.Resolve(ctx, "!!!", "tiktok")
	require.NoError(t, err)
	assert.Equal(t, MatchNew, first.Match)
	assert.Equal(t, "", first.Key)

	second, err := r.Resolve(ctx, "   ", "reddit")
	require.NoError(t, err)
	assert.Equal(t, first.ProductID, second.ProductID)
	assert.Equal(t, MatchExact, second.Match)

	// An empty key never becomes a fuzzy target.
	other, err := r.Resolve(ctx, "Desk Lamp", "amazon")
	require.NoError(t, err)
	assert.NotEqual(t, first.ProductID, other.ProductID)
}

func TestResolve_ConcurrentSameNameCreatesOneProduct(t *testing.T) {
	ctx := context.Background()
	store := memoryrepository.New()
	r := newResolver(store)

	const n = 64
	ids := make([]uint64, n)
	errs := make([]error, n)
	created := make([]bool, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := r.Resolve(ctx, "Portable Neck Fan", "tiktok")
			ids[i], errs[i], created[i] = res.ProductID, err, res.Created
		}(i)
	}
	close(start)
	wg.Wait()

	creators := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			creators++
		}
	}
	assert.Equal(t, int64(1), productCount(t, store))
	assert.Equal(t, 1, creators, "only the call that inserted the product reports Created")
}

func TestJoined(t *testing.T) {
	res := joined(Resolution{ProductID: 7, Match: MatchNew, Created: true})
	assert.False(t, res.Created)
	assert.Equal(t, MatchExact, res.Match)

	res = joined(Resolution{ProductID: 7, Match: MatchFuzzy, Created: true})
	assert.False(t, res.Created)
	assert.Equal(t, MatchAlias, res.Match)

	res = joined(Resolution{ProductID: 7, Match: MatchExact})
	assert.Equal(t, MatchExact, res.Match)
}

// gatedRepo holds the first key lookup until released, failing early only if
// the context it was given is cancelled.
type gatedRepo struct {
	*memoryrepository.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedRepo) LookupNameKey(ctx context.Context, key string) (*models.NameKey, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Store.LookupNameKey(ctx, key)
}

func TestResolve_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := memoryrepository.New()
	repo := &gatedRepo{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	r := newResolver(repo)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, "Cloud Slides", "tiktok")
		errA <- err
	}()
	<-repo.entered
	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	type result struct {
		res Resolution
		err error
	}
	doneB := make(chan result, 1)
	go func() {
		res, err := r.Resolve(context.Background(), "cloud slides", "amazon")
		doneB <- result{res, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(repo.release)

	b := <-doneB
	require.NoError(t, b.err)
	assert.NotZero(t, b.res.ProductID)
	assert.Equal(t, int64(1), productCount(t, store))
}

// racingRepo simulates another process inserting the same key between the
// lookup and the create.
type racingRepo struct {
	*memoryrepository.Store
	once sync.Once
}

func (r *racingRepo) CreateProduct(ctx context.Context, item *models.Product) error {
	raced := false
	r.once.Do(func() {
		other := &models.Product{Name: item.Name, NameKey: item.NameKey, FirstSeenAt: time.Now().UTC()}
		_ = r.Store.CreateProduct(ctx, other)
		raced = true
	})
	if raced {
		return repository.ErrNameKeyConflict
	}
	return r.Store.CreateProduct(ctx, item)
}

func TestResolve_ConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{Store: memoryrepository.New()}
	r := newResolver(repo)

	res, err := r.Resolve(ctx, "Cloud Slides", "tiktok")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, res.Match)
	assert.NotZero(t, res.ProductID)
	assert.Equal(t, int64(1), productCount(t, repo.Store))
}

func TestBestMatch_TieBreaksOnFirstSeen(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []repository.NameCandidate{
		{Key: "led desk lamp", ProductID: 7, FirstSeenAt: base.Add(time.Hour)},
		{Key: "desk lamp led", ProductID: 9, FirstSeenAt: base},
		{Key: "lamp led desk", ProductID: 3, FirstSeenAt: base},
		{Key: "yoga mat", ProductID: 1, FirstSeenAt: base.Add(-time.Hour)},
	}
	best, score, ok := BestMatch("desk led lamp", candidates, DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, uint64(3), best.ProductID)

	_, _, ok = BestMatch("espresso machine", candidates, DefaultThreshold)
	assert.False(t, ok)
}
