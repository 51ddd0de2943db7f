package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
)

const startedAtKey = "metrics:started_at"

// MetricsRecorder receives query timings and pool statistics
type MetricsRecorder interface {
	RecordDBQuery(operation, table string, duration time.Duration, err error)
	UpdateDBStats(stats sql.DBStats)
}

// RegisterMetricsCallbacks times every statement GORM issues, including raw
// queries and Exec. A lookup that finds no row is not reported as an error.
func RegisterMetricsCallbacks(db *gorm.DB, recorder MetricsRecorder) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("metrics:select_before", startTimer),
		cb.Query().After("gorm:query").Register("metrics:select_after", recordAs("select", recorder)),
		cb.Create().Before("gorm:create").Register("metrics:insert_before", startTimer),
		cb.Create().After("gorm:create").Register("metrics:insert_after", recordAs("insert", recorder)),
		cb.Update().Before("gorm:update").Register("metrics:update_before", startTimer),
		cb.Update().After("gorm:update").Register("metrics:update_after", recordAs("update", recorder)),
		cb.Delete().Before("gorm:delete").Register("metrics:delete_before", startTimer),
		cb.Delete().After("gorm:delete").Register("metrics:delete_after", recordAs("delete", recorder)),
		cb.Row().Before("gorm:row").Register("metrics:row_before", startTimer),
		cb.Row().After("gorm:row").Register("metrics:row_after", recordAs("row", recorder)),
		cb.Raw().Before("gorm:raw").Register("metrics:raw_before", startTimer),
		cb.Raw().After("gorm:raw").Register("metrics:raw_after", recordAs("raw", recorder)),
	)
}

func startTimer(tx *gorm.DB) {
	tx.InstanceSet(startedAtKey, time.Now())
}

func recordAs(operation string, recorder MetricsRecorder) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		started, ok := tx.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		err := tx.Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = nil
		}
		recorder.RecordDBQuery(operation, table, time.Since(started.(time.Time)), err)
	}
}

// StartDBStatsCollector samples the connection pool every interval until ctx
// is cancelled
func StartDBStatsCollector(ctx context.Context, db *gorm.DB, recorder MetricsRecorder, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				recorder.UpdateDBStats(sqlDB.Stats())
			case <-ctx.Done():
				return
			}
		}
	}()
}
