package storage

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"store_engine/internal/domain"
)

// Open connects to the configured database. sqlite serves development and
// tests, postgres production; all atomic primitives in this package rely
// only on conditional UPDATEs and row counts, which both dialects honor.
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// sqlite rejects concurrent writers with SQLITE_BUSY; a single
		// connection serializes them without weakening the conditional
		// updates the stores depend on.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Info("database connected", zap.String("driver", driver))
	return db, nil
}

// AutoMigrate creates or updates the engine's tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Account{},
		&domain.PaymentTransaction{},
		&domain.Product{},
		&domain.Credential{},
		&domain.SaleRecord{},
		&domain.Operator{},
	)
}
