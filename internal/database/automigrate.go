package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
)

// Models lists every persisted type, parents before children so foreign keys
// resolve on postgres
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Client{},
		&domain.Deal{},
		&domain.DealFile{},
		&domain.DealActivity{},
		&domain.DealSchedule{},
		&domain.DealComment{},
	}
}

// AutoMigrate creates or updates the tables of every domain model
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}
	return nil
}

// MigrateWithRetry migrates one table at a time and retries the whole run
// with a linear backoff. A table that already exists is only altered.
func MigrateWithRetry(ctx context.Context, db *gorm.DB, logger *zap.Logger, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = migrateTables(db, logger); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * time.Second
		logger.Warn("Migration failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("migration cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("migration failed after %d attempts: %w", maxAttempts, err)
}

func migrateTables(db *gorm.DB, logger *zap.Logger) error {
	migrator := db.Migrator()
	for _, model := range Models() {
		existed := migrator.HasTable(model)
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
		logger.Debug("Migrated table", zap.String("model", fmt.Sprintf("%T", model)), zap.Bool("existed", existed))
	}
	return nil
}
