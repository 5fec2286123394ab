package database

import (
	"fmt"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects to one of the pipeline's databases. The source row
// store and the warehouse are separate databases, so unlike a service-wide
// singleton each caller owns the handle it opens.
func OpenPostgres(name, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: postgres dsn not configured", name)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Log.WithError(err).WithField("database", name).Error("Failed to connect to PostgreSQL")
		return nil, err
	}

	logger.Log.WithField("database", name).Info("Connected to PostgreSQL")
	return db, nil
}

func ClosePostgres(db *gorm.DB) error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
