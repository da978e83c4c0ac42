package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceObservation struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	ProductID  uint64          `gorm:"not null;index"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Source     string          `gorm:"type:varchar(50);not null"`
	ObservedAt time.Time       `gorm:"not null;index"`
}

func (PriceObservation) TableName() string {
	return "price_observations"
}
