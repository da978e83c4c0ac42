package models

import "time"

// SignalSource tracks each collector's last poll and health so operators can see
// which platforms are feeding the radar.
type SignalSource struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement"`
	Name           string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	SourceType     string     `gorm:"type:varchar(30);not null"`
	Endpoint       string     `gorm:"type:varchar(500)"`
	PollInterval   string     `gorm:"type:varchar(40)"`
	Enabled        bool       `gorm:"default:true"`
	LastPollAt     *time.Time
	LastError      *string    `gorm:"type:text"`
	HealthStatus   string     `gorm:"type:varchar(20);default:'unknown'"`
	EventsAccepted int64      `gorm:"not null;default:0"`
	EventsDropped  int64      `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (SignalSource) TableName() string {
	return "signal_sources"
}
