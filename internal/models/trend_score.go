package models

import "time"

// TrendScore is one scoring snapshot for a product. All nine components are stored
// alongside the composite so later runs can read the trajectory back.
type TrendScore struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID uint64 `gorm:"not null;index:idx_trend_scores_product_computed,priority:1"`
	RunID     string `gorm:"type:varchar(36);not null;index"`

	SearchAccel    float64 `gorm:"not null"`
	SocialVelocity float64 `gorm:"not null"`
	AmazonMomentum float64 `gorm:"not null"`
	PriceFit       float64 `gorm:"not null"`
	Sentiment      float64 `gorm:"not null"`
	TrendShape     float64 `gorm:"not null"`
	PlatformCount  float64 `gorm:"not null"`
	PurchaseIntent float64 `gorm:"not null"`
	Recency        float64 `gorm:"not null"`

	Composite float64 `gorm:"not null;index"`
	// Platforms is the raw number of distinct sources in the window.
	Platforms int `gorm:"not null"`

	ComputedAt time.Time `gorm:"not null;index:idx_trend_scores_product_computed,priority:2"`
}

func (TrendScore) TableName() string {
	return "trend_scores"
}
