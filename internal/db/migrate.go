package db

import (
	"productradar/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Product{},
		&models.NameKey{},
		&models.ProductAlias{},
		&models.RawSignal{},
		&models.PriceObservation{},
		&models.TrendScore{},
		&models.ScoringRun{},
		&models.SignalSource{},
		&models.SystemSetting{},
	)
}
