package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"productradar/internal/models"
)

type productView struct {
	ID          uint64           `json:"id"`
	Name        string           `json:"name"`
	NameKey     string           `json:"name_key"`
	Category    *string          `json:"category,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	SourceURL   *string          `json:"source_url,omitempty"`
	PriceLow    *decimal.Decimal `json:"price_low,omitempty"`
	PriceHigh   *decimal.Decimal `json:"price_high,omitempty"`
	FirstSeenAt time.Time        `json:"first_seen_at"`
}

func toProductView(p models.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		NameKey:     p.NameKey,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		SourceURL:   p.SourceURL,
		PriceLow:    nullDecimal(p.PriceLow),
		PriceHigh:   nullDecimal(p.PriceHigh),
		FirstSeenAt: p.FirstSeenAt,
	}
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

type scoreView struct {
	RunID          string    `json:"run_id"`
	Composite      float64   `json:"composite"`
	SearchAccel    float64   `json:"search_accel"`
	SocialVelocity float64   `json:"social_velocity"`
	AmazonMomentum float64   `json:"amazon_momentum"`
	PriceFit       float64   `json:"price_fit"`
	Sentiment      float64   `json:"sentiment"`
	TrendShape     float64   `json:"trend_shape"`
	PlatformCount  float64   `json:"platform_count"`
	PurchaseIntent float64   `json:"purchase_intent"`
	Recency        float64   `json:"recency"`
	Platforms      int       `json:"platforms"`
	ComputedAt     time.Time `json:"computed_at"`
}

func toScoreView(s models.TrendScore) scoreView {
	return scoreView{
		RunID:          s.RunID,
		Composite:      s.Composite,
		SearchAccel:    s.SearchAccel,
		SocialVelocity: s.SocialVelocity,
		AmazonMomentum: s.AmazonMomentum,
		PriceFit:       s.PriceFit,
		Sentiment:      s.Sentiment,
		TrendShape:     s.TrendShape,
		PlatformCount:  s.PlatformCount,
		PurchaseIntent: s.PurchaseIntent,
		Recency:        s.Recency,
		Platforms:      s.Platforms,
		ComputedAt:     s.ComputedAt,
	}
}

type rankedView struct {
	productView
	Score scoreView `json:"score"`
}

type aliasView struct {
	NameKey   string    `json:"name_key"`
	RawName   string    `json:"raw_name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type priceView struct {
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
	ObservedAt time.Time       `json:"observed_at"`
}

type signalView struct {
	ID          uint64          `json:"id"`
	ProductID   uint64          `json:"product_id"`
	Source      string          `json:"source"`
	SignalType  string          `json:"signal_type"`
	Value       float64         `json:"value"`
	RawName     string          `json:"raw_name"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CollectedAt time.Time       `json:"collected_at"`
}

func toSignalView(s models.RawSignal) signalView {
	v := signalView{
		ID:          s.ID,
		ProductID:   s.ProductID,
		Source:      s.Source,
		SignalType:  s.SignalType,
		Value:       s.Value,
		RawName:     s.RawName,
		CollectedAt: s.CollectedAt,
	}
	if len(s.Metadata) > 0 && json.Valid(s.Metadata) {
		v.Metadata = json.RawMessage(s.Metadata)
	}
	return v
}

type runView struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	AsOf           time.Time  `json:"as_of"`
	ProductsScored int        `json:"products_scored"`
	Error          *string    `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

func toRunView(r models.ScoringRun) runView {
	return runView{
		ID:             r.ID,
		Status:         r.Status,
		AsOf:           r.AsOf,
		ProductsScored: r.ProductsScored,
		Error:          r.Error,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

type sourceView struct {
	Name           string     `json:"name"`
	SourceType     string     `json:"source_type"`
	Endpoint       string     `json:"endpoint,omitempty"`
	PollInterval   string     `json:"poll_interval,omitempty"`
	Enabled        bool       `json:"enabled"`
	HealthStatus   string     `json:"health_status"`
	LastPollAt     *time.Time `json:"last_poll_at,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	EventsAccepted int64      `json:"events_accepted"`
	EventsDropped  int64      `json:"events_dropped"`
}

func toSourceView(s models.SignalSource) sourceView {
	return sourceView{
		Name:           s.Name,
		SourceType:     s.SourceType,
		Endpoint:       s.Endpoint,
		PollInterval:   s.PollInterval,
		Enabled:        s.Enabled,
		HealthStatus:   s.HealthStatus,
		LastPollAt:     s.LastPollAt,
		LastError:      s.LastError,
		EventsAccepted: s.EventsAccepted,
		EventsDropped:  s.EventsDropped,
	}
}
