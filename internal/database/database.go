package database

import (
	"fmt"
	"log/slog"

	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.SSLMode == "disable" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Company{},
		&models.User{},
		&models.SubscriptionPlan{},
		&models.BrokerSubscription{},
		&models.UsageTracking{},
		&models.AgencyAgreement{},
		&models.CustomsTransaction{},
	}
}

// constraints are enforced by the database in addition to service checks,
// since check-then-insert alone is racy.
var constraints = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_agency_agreements_active_pair
		ON agency_agreements (broker_id, client_id) WHERE status = 'ACTIVE'`,
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating constraint: %w", err)
		}
	}
	return nil
}
