package database

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type queryRecord struct {
	operation string
	table     string
	duration  time.Duration
	err       error
}

type mockMetricsRecorder struct {
	mu      sync.Mutex
	queries []queryRecord
	stats   []sql.DBStats
}

func (m *mockMetricsRecorder) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, queryRecord{operation, table, duration, err})
}

func (m *mockMetricsRecorder) UpdateDBStats(stats sql.DBStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, stats)
}

func (m *mockMetricsRecorder) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = nil
}

func (m *mockMetricsRecorder) snapshot() ([]queryRecord, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queryRecord(nil), m.queries...), len(m.stats)
}

type note struct {
	ID   string `gorm:"type:text;primaryKey"`
	Body string
}

func (note) TableName() string {
	return "notes"
}

func setupTestDB(t *testing.T) (*gorm.DB, *mockMetricsRecorder) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&note{}))

	recorder := &mockMetricsRecorder{}
	require.NoError(t, RegisterMetricsCallbacks(db, recorder))
	return db, recorder
}

func TestRegisterMetricsCallbacks(t *testing.T) {
	db, recorder := setupTestDB(t)
	seeded := note{ID: uuid.NewString(), Body: "call back Tuesday"}
	require.NoError(t, db.Create(&seeded).Error)

	tests := []struct {
		name      string
		run       func(db *gorm.DB) error
		operation string
		table     string
		wantErr   bool
	}{
		{"insert", func(db *gorm.DB) error {
			return db.Create(&note{ID: uuid.NewString(), Body: "site visit"}).Error
		}, "insert", "notes", false},
		{"select", func(db *gorm.DB) error {
			var n note
			return db.First(&n, "id = ?", seeded.ID).Error
		}, "select", "notes", false},
		{"update", func(db *gorm.DB) error {
			return db.Model(&seeded).Update("body", "moved to Wednesday").Error
		}, "update", "notes", false},
		{"row", func(db *gorm.DB) error {
			var count int64
			return db.Raw("SELECT count(*) FROM notes").Scan(&count).Error
		}, "row", "unknown", false},
		{"exec", func(db *gorm.DB) error {
			return db.Exec("UPDATE notes SET body = ?", "bulk").Error
		}, "raw", "unknown", false},
		{"failing statement", func(db *gorm.DB) error {
			return db.Exec("UPDATE missing_table SET x = 1").Error
		}, "raw", "unknown", true},
		{"delete", func(db *gorm.DB) error {
			return db.Delete(&note{ID: seeded.ID}).Error
		}, "delete", "notes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder.reset()
			err := tt.run(db)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			queries, _ := recorder.snapshot()
			require.Len(t, queries, 1)
			assert.Equal(t, tt.operation, queries[0].operation)
			assert.Equal(t, tt.table, queries[0].table)
			assert.Greater(t, queries[0].duration, time.Duration(0))
			assert.Equal(t, tt.wantErr, queries[0].err != nil)
		})
	}
}

func TestRegisterMetricsCallbacks_NotFoundIsNotAnError(t *testing.T) {
	db, recorder := setupTestDB(t)

	var n note
	err := db.First(&n, "id = ?", uuid.NewString()).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	queries, _ := recorder.snapshot()
	require.Len(t, queries, 1)
	assert.Equal(t, "select", queries[0].operation)
	assert.NoError(t, queries[0].err)
}

func TestStartDBStatsCollector(t *testing.T) {
	db, recorder := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	StartDBStatsCollector(ctx, db, recorder, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, samples := recorder.snapshot()
		return samples >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	_, stopped := recorder.snapshot()
	time.Sleep(50 * time.Millisecond)
	_, later := recorder.snapshot()
	assert.Equal(t, stopped, later, "no samples after cancel")
}
