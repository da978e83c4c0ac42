package models

import "time"

const (
	ScoringRunRunning   = "running"
	ScoringRunSucceeded = "succeeded"
	ScoringRunFailed    = "failed"
)

type ScoringRun struct {
	ID             string     `gorm:"type:varchar(36);primaryKey"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	AsOf           time.Time  `gorm:"not null"`
	ProductsScored int        `gorm:"not null;default:0"`
	Error          *string    `gorm:"type:text"`
	StartedAt      time.Time  `gorm:"not null;index"`
	FinishedAt     *time.Time
}

func (ScoringRun) TableName() string {
	return "scoring_runs"
}
