package models

import "time"

const (
	NameKeyCanonical = "canonical"
	NameKeyAlias     = "alias"
)

// NameKey registers every normalised key (canonical and alias) in one table so the
// store can enforce uniqueness across both sets with a single primary key.
type NameKey struct {
	Key       string    `gorm:"type:text;primaryKey"`
	ProductID uint64    `gorm:"not null;index"`
	Kind      string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (NameKey) TableName() string {
	return "product_name_keys"
}
