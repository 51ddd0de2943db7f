package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crm-pipeline-api/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Client{},
		&domain.Deal{},
		&domain.DealFile{},
		&domain.DealActivity{},
		&domain.DealSchedule{},
		&domain.DealComment{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedClient(t *testing.T, db *gorm.DB, name string) *domain.Client {
	t.Helper()
	client := &domain.Client{CompanyName: name, Country: "USA", Status: domain.ClientStatusActive}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	return client
}

func seedDeal(t *testing.T, db *gorm.DB, client *domain.Client, title string, stage domain.Stage, value int64) *domain.Deal {
	t.Helper()
	deal := &domain.Deal{
		Title:          title,
		ClientID:       client.ID,
		Stage:          stage,
		StageChangedAt: time.Now().UTC(),
		EstimatedValue: decimal.NewNullDecimal(decimal.NewFromInt(value)),
		Probability:    stage.DefaultProbability(),
		OwnerID:        uuid.New(),
		Version:        1,
	}
	if err := db.Omit("Client").Create(deal).Error; err != nil {
		t.Fatalf("failed to seed deal: %v", err)
	}
	return deal
}
