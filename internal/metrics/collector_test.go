package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crm-pipeline-api/internal/domain"
)

func TestBusinessMetricsCollector_Collect(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Deal{}))

	for _, d := range []struct {
		stage domain.Stage
		value int64
	}{
		{domain.StageNewRequest, 1000},
		{domain.StageNegotiation, 500},
		{domain.StageNegotiation, 500},
		{domain.StageClosedWon, 9000},
	} {
		deal := &domain.Deal{
			Title:          "deal",
			ClientID:       uuid.New(),
			Stage:          d.stage,
			StageChangedAt: time.Now().UTC(),
			EstimatedValue: decimal.NewNullDecimal(decimal.NewFromInt(d.value)),
			Probability:    d.stage.DefaultProbability(),
			OwnerID:        uuid.New(),
			Version:        1,
		}
		require.NoError(t, db.Omit("Client").Create(deal).Error)
	}

	m := getTestMetrics()
	collector := NewBusinessMetricsCollector(db, m, zap.NewNop())

	collector.collect(context.Background())

	assert.Equal(t, float64(2), getGaugeValue(t, m.DealsTotal.WithLabelValues("negotiation")))
	assert.Equal(t, float64(0), getGaugeValue(t, m.DealsTotal.WithLabelValues("engaged")))
	assert.Equal(t, float64(2000), getGaugeValue(t, m.ActivePipelineValue))
	assert.Equal(t, float64(850), getGaugeValue(t, m.WeightedPipelineValue))
}

func TestBusinessMetricsCollector_StartStop(t *testing.T) {
	m := getTestMetrics()
	collector := NewBusinessMetricsCollector(nil, m, zap.NewNop())
	collector.interval = 5 * time.Millisecond

	// Stop before Start must not block
	collector.Stop()

	collector.Start()
	collector.Start()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		collector.Stop()
		collector.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
