package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawSignal is one observation about a product from one source. Append-only.
type RawSignal struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ProductID  uint64  `gorm:"not null;index:idx_raw_signals_product_collected,priority:1"`
	Source     string  `gorm:"type:varchar(50);not null;index"`
	SignalType string  `gorm:"type:varchar(50);not null;index"`
	Value      float64 `gorm:"not null"`
	RawName    string  `gorm:"type:varchar(500)"`

	Metadata datatypes.JSON

	CollectedAt time.Time `gorm:"not null;index:idx_raw_signals_product_collected,priority:2;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (RawSignal) TableName() string {
	return "raw_signals"
}
