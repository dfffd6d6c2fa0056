package db

import (
	"github.com/raghuneu/finsage/internal/models"
)

// Models lists every table the warehouse owns.
func Models() []any {
	return []any{
		&models.StockPrice{},
		&models.Fundamental{},
		&models.NewsArticle{},
		&models.SECFact{},
		&models.SECFilingDocument{},
		&models.PipelineRun{},
	}
}

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(Models()...)
}
