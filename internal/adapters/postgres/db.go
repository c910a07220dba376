// Package postgres implements the record stores and the settings store on
// PostgreSQL through gorm.
package postgres

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL and configures the connection pool.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Database connection established")
	return db, nil
}

// AutoMigrate creates or updates every table the stores use.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("Running database migrations")

	if err := db.AutoMigrate(
		&Donor{},
		&Donation{},
		&Allocation{},
		&DonationLog{},
		&Subscription{},
		&SubscriptionLog{},
		&CampaignPlan{},
		&Option{},
	); err != nil {
		return err
	}

	log.Info("Database migrations completed")
	return nil
}
