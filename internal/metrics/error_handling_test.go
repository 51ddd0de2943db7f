package metrics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestUpdateDBStats_AddsOnlyWaitGrowth(t *testing.T) {
	m := getTestMetrics()

	m.UpdateDBStats(sql.DBStats{OpenConnections: 4, InUse: 1, Idle: 3, MaxOpenConnections: 25, WaitCount: 2, WaitDuration: time.Second})
	m.UpdateDBStats(sql.DBStats{OpenConnections: 6, InUse: 5, Idle: 1, MaxOpenConnections: 25, WaitCount: 5, WaitDuration: 3 * time.Second})

	assert.Equal(t, 6.0, testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DBConnectionsInUse))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.DBConnectionsMax))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DBConnectionWaitTotal))
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.DBConnectionWaitDuration), 1e-9)

	// a pool reopened after a reconnect starts its counters over
	m.UpdateDBStats(sql.DBStats{WaitCount: 1})
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DBConnectionWaitTotal))
	m.UpdateDBStats(sql.DBStats{WaitCount: 3})
	assert.Equal(t, 7.0, testutil.ToFloat64(m.DBConnectionWaitTotal))
}

func TestRecordDBQuery_CountsErrors(t *testing.T) {
	m := getTestMetrics()

	m.RecordDBQuery("SELECT", "deals", 2*time.Millisecond, nil)
	m.RecordDBQuery("insert", "deal_activities", time.Millisecond, errors.New("constraint violation"))

	assert.Zero(t, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("select", "deals")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("insert", "deal_activities")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.DBQueryDuration))
}

func TestSafeExecute_RecoversAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := NewWithRegistry(prometheus.NewRegistry(), zap.New(core))

	assert.NotPanics(t, func() {
		m.safeExecute("RecordStageTransition", func() {
			panic("label cardinality mismatch")
		})
	})
	assert.Equal(t, 1, logs.FilterMessage("Panic in metrics operation").Len())

	// recording keeps working afterwards
	m.RecordStageTransition("NEW_REQUEST", "ENGAGED")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageTransitionsTotal.WithLabelValues("NEW_REQUEST", "ENGAGED")))
}

func TestMetricsWithNilLogger(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry(), nil)

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/api/pipeline/board", 200, time.Millisecond)
		m.RecordDBQuery("select", "deals", time.Millisecond, nil)
		m.IncrementDealCreated()
		m.IncrementDealClosed("won")
		m.SetPipelineValues(100, 50)
	})
}

func TestCollectorWithoutDatabase(t *testing.T) {
	m := getTestMetrics()
	collector := NewBusinessMetricsCollector(nil, m, zap.NewNop())

	assert.NotPanics(t, func() { collector.collect(context.Background()) })
}
