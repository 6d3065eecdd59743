package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxRetries = 5
	retryDelay = 5 * time.Second
)

// New connects to MySQL, retrying while the server comes up, and migrates
// the billing tables.
func New(cfg config.Database, log zerolog.Logger) (*gorm.DB, error) {
	dialector := mysql.New(mysql.Config{
		DSN:                       cfg.DSN(),
		DefaultStringSize:         256,
		DisableDatetimePrecision:  true,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	})

	db, err := Open(dialector, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// Open opens a gorm handle with duplicate-key translation enabled so unique
// violations surface as gorm.ErrDuplicatedKey on every driver.
func Open(dialector gorm.Dialector, log zerolog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			return db, nil
		}

		log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries).Msg("failed to connect to database")
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

// Migrate creates or updates the tables this service owns. Schema changes
// for production go through cmd/migrate; this keeps dev and tests in sync.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.Snippet{},
		&models.Subscription{},
		&models.Invoice{},
		&models.BillingWebhookEvent{},
	)
}

// Ping checks that the underlying connection pool is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
