package metrics

import (
	"database/sql"
	"strings"
	"time"
)

// UpdateDBStats copies a connection pool snapshot into the gauges. Wait
// counters in sql.DBStats are cumulative, so only the growth since the
// previous snapshot is added.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.safeExecute("UpdateDBStats", func() {
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
		m.DBConnectionsIdle.Set(float64(stats.Idle))
		m.DBConnectionsMax.Set(float64(stats.MaxOpenConnections))

		m.poolMu.Lock()
		defer m.poolMu.Unlock()
		if stats.WaitCount >= m.lastPool.WaitCount {
			m.DBConnectionWaitTotal.Add(float64(stats.WaitCount - m.lastPool.WaitCount))
		}
		if stats.WaitDuration >= m.lastPool.WaitDuration {
			m.DBConnectionWaitDuration.Add((stats.WaitDuration - m.lastPool.WaitDuration).Seconds())
		}
		m.lastPool = stats
	})
}

// RecordDBQuery records one statement's latency, and an error when it failed
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.safeExecute("RecordDBQuery", func() {
		operation = strings.ToLower(operation)
		m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())

		if err != nil {
			m.DBQueryErrors.WithLabelValues(operation, table).Inc()
		}
	})
}
