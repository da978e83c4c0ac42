package models

import "time"

// ProductAlias maps an alternate normalised phrasing to a product. Rows are never deleted.
type ProductAlias struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ProductID uint64    `gorm:"not null;index"`
	NameKey   string    `gorm:"type:text;not null;uniqueIndex"`
	RawName   string    `gorm:"type:varchar(500)"`
	Source    string    `gorm:"type:varchar(50)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProductAlias) TableName() string {
	return "product_aliases"
}
