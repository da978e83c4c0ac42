package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the identity record every signal resolves to. NameKey is the
// normalised canonical name and never changes after creation.
type Product struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"type:varchar(300);not null"`
	NameKey string `gorm:"type:text;not null;uniqueIndex"`

	Category  *string `gorm:"type:varchar(100);index"`
	ImageURL  *string `gorm:"type:varchar(1000)"`
	SourceURL *string `gorm:"type:varchar(1000)"`

	// Observed price range, widened by every PriceObservation.
	PriceLow  decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	PriceHigh decimal.NullDecimal `gorm:"type:numeric(12,2)"`

	FirstSeenAt time.Time `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}
