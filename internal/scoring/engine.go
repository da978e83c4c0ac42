package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"productradar/internal/logger"
	"productradar/internal/metrics"
	"productradar/internal/models"
)

// Store is the persistence a scoring cycle reads and appends to.
type Store interface {
	ListProductIDsWithSignals(ctx context.Context, from, to time.Time) ([]uint64, error)
	ListWindowedSignals(ctx context.Context, productID uint64, from, to time.Time) ([]models.RawSignal, error)
	GetProductByID(ctx context.Context, id uint64) (*models.Product, error)
	ListTrendScores(ctx context.Context, productID uint64, limit int) ([]models.TrendScore, error)
	InsertTrendScore(ctx context.Context, item *models.TrendScore) error
	CreateScoringRun(ctx context.Context, item *models.ScoringRun) error
	FinishScoringRun(ctx context.Context, item *models.ScoringRun) error
}

// RunSummary is published after every scoring run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Status         string    `json:"status"`
	AsOf           time.Time `json:"as_of"`
	ProductsScored int       `json:"products_scored"`
	DurationMS     int64     `json:"duration_ms"`
	Error          string    `json:"error,omitempty"`
}

type Notifier interface {
	RunFinished(ctx context.Context, summary RunSummary)
}

type Engine struct {
	Store        Store
	Logger       *zap.Logger
	WindowDays   int
	HistoryDepth int
	Notifiers    []Notifier
	Now          func() time.Time
}

// RunCycle scores every product with at least one signal in the window ending
// at asOf (zero means now). A persistence error aborts the cycle and marks the
// run failed.
func (e *Engine) RunCycle(ctx context.Context, asOf time.Time) (models.ScoringRun, error) {
	if e == nil || e.Store == nil {
		return models.ScoringRun{}, fmt.Errorf("scoring engine not configured")
	}
	log := logger.OrNop(e.Logger)
	started := e.now()
	if asOf.IsZero() {
		asOf = started
	}
	asOf = asOf.UTC()

	run := models.ScoringRun{
		ID:        uuid.NewString(),
		Status:    models.ScoringRunRunning,
		AsOf:      asOf,
		StartedAt: started,
	}
	if err := e.Store.CreateScoringRun(ctx, &run); err != nil {
		metrics.ScoringRunsTotal.WithLabelValues(models.ScoringRunFailed).Inc()
		return run, fmt.Errorf("create scoring run: %w", err)
	}

	scored, cycleErr := e.scoreAll(ctx, run.ID, asOf)
	run.ProductsScored = scored
	finished := e.now()
	run.FinishedAt = &finished
	run.Status = models.ScoringRunSucceeded
	if cycleErr != nil {
		run.Status = models.ScoringRunFailed
		msg := cycleErr.Error()
		run.Error = &msg
	}
	if err := e.Store.FinishScoringRun(context.WithoutCancel(ctx), &run); err != nil && cycleErr == nil {
		cycleErr = fmt.Errorf("finish scoring run: %w", err)
		run.Status = models.ScoringRunFailed
	}

	duration := finished.Sub(started)
	metrics.ScoringRunsTotal.WithLabelValues(run.Status).Inc()
	metrics.ScoringRunDuration.Observe(duration.Seconds())

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Time("as_of", asOf),
		zap.Int("products_scored", scored),
		zap.Duration("duration", duration),
	}
	if cycleErr != nil {
		log.Warn("scoring run failed", append(fields, zap.Error(cycleErr))...)
	} else {
		log.Info("scoring run finished", fields...)
	}

	summary := RunSummary{
		RunID:          run.ID,
		Status:         run.Status,
		AsOf:           asOf,
		ProductsScored: scored,
		DurationMS:     duration.Milliseconds(),
	}
	if run.Error != nil {
		summary.Error = *run.Error
	}
	for _, n := range e.Notifiers {
		if n != nil {
			n.RunFinished(ctx, summary)
		}
	}
	return run, cycleErr
}

func (e *Engine) scoreAll(ctx context.Context, runID string, asOf time.Time) (int, error) {
	from, to := Window(asOf, e.WindowDays)
	ids, err := e.Store.ListProductIDsWithSignals(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list products in window: %w", err)
	}
	scored := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return scored, err
		}
		if _, err := e.ScoreProduct(ctx, runID, id, asOf); err != nil {
			return scored, fmt.Errorf("score product %d: %w", id, err)
		}
		scored++
		metrics.ProductsScoredTotal.Inc()
	}
	return scored, nil
}

// ScoreProduct computes and appends one snapshot for productID.
func (e *Engine) ScoreProduct(ctx context.Context, runID string, productID uint64, asOf time.Time) (*models.TrendScore, error) {
	in, err := e.LoadInput(ctx, productID, asOf)
	if err != nil {
		return nil, err
	}
	c := Compute(in)
	snapshot := &models.TrendScore{
		ProductID:      productID,
		RunID:          runID,
		SearchAccel:    Round2(c.SearchAccel),
		SocialVelocity: Round2(c.SocialVelocity),
		AmazonMomentum: Round2(c.AmazonMomentum),
		PriceFit:       Round2(c.PriceFit),
		Sentiment:      Round2(c.Sentiment),
		TrendShape:     Round2(c.TrendShape),
		PlatformCount:  Round2(c.PlatformCount),
		PurchaseIntent: Round2(c.PurchaseIntent),
		Recency:        Round2(c.Recency),
		Composite:      Composite(c),
		Platforms:      DistinctSources(in.Signals),
		ComputedAt:     in.AsOf,
	}
	if err := e.Store.InsertTrendScore(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("insert trend score: %w", err)
	}
	return snapshot, nil
}

// LoadInput reads the windowed signals, price range and prior composites for
// one product.
func (e *Engine) LoadInput(ctx context.Context, productID uint64, asOf time.Time) (Input, error) {
	asOf = asOf.UTC()
	from, to := Window(asOf, e.WindowDays)
	signals, err := e.Store.ListWindowedSignals(ctx, productID, from, to)
	if err != nil {
		return Input{}, fmt.Errorf("list windowed signals: %w", err)
	}
	product, err := e.Store.GetProductByID(ctx, productID)
	if err != nil {
		return Input{}, fmt.Errorf("get product: %w", err)
	}
	depth := e.HistoryDepth
	if depth <= 0 || depth > MaxHistory {
		depth = MaxHistory
	}
	prior, err := e.Store.ListTrendScores(ctx, productID, depth*2)
	if err != nil {
		return Input{}, fmt.Errorf("list trend scores: %w", err)
	}
	return Input{
		Signals:    signals,
		History:    priorComposites(prior, asOf, depth),
		PriceRange: priceRangeOf(product),
		AsOf:       asOf,
	}, nil
}

// priorComposites keeps snapshots strictly before asOf (newest-first input)
// and returns up to depth of them oldest first.
func priorComposites(scores []models.TrendScore, asOf time.Time, depth int) []float64 {
	out := make([]float64, 0, depth)
	for _, s := range scores {
		if !s.ComputedAt.Before(asOf) {
			continue
		}
		out = append(out, s.Composite)
		if len(out) == depth {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func priceRangeOf(p *models.Product) PriceRange {
	var r PriceRange
	if p == nil {
		return r
	}
	if p.PriceLow.Valid {
		v := p.PriceLow.Decimal.InexactFloat64()
		r.Low = &v
	}
	if p.PriceHigh.Valid {
		v := p.PriceHigh.Decimal.InexactFloat64()
		r.High = &v
	}
	return r
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
