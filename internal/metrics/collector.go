package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
)

const defaultCollectInterval = time.Minute

// BusinessMetricsCollector refreshes the per-stage deal gauges and pipeline
// values from the database. Counters are updated inline by the services;
// gauges need a full scan, so they run on an interval.
type BusinessMetricsCollector struct {
	db       *gorm.DB
	metrics  *Metrics
	logger   *zap.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBusinessMetricsCollector(db *gorm.DB, metrics *Metrics, logger *zap.Logger) *BusinessMetricsCollector {
	return &BusinessMetricsCollector{
		db:       db,
		metrics:  metrics,
		logger:   logger,
		interval: defaultCollectInterval,
	}
}

// Start collects once immediately and then every interval until Stop.
// Calling Start twice is a no-op.
func (c *BusinessMetricsCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop ends the loop and waits for an in-flight collection
func (c *BusinessMetricsCollector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
}

func (c *BusinessMetricsCollector) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *BusinessMetricsCollector) collect(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in business metrics collection", zap.Any("panic", r))
		}
	}()
	if c.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var deals []*domain.Deal
	if err := c.db.WithContext(ctx).
		Select("stage", "estimated_value", "probability").
		Find(&deals).Error; err != nil {
		c.logger.Error("Failed to load deals for metrics", zap.Error(err))
		return
	}

	board := domain.BuildBoard(deals)
	for _, col := range board.Stages {
		c.metrics.SetDealsByStage(string(col.Stage), col.Count)
	}
	active, _ := board.TotalPipelineValue.Float64()
	weighted, _ := board.WeightedPipelineValue.Float64()
	c.metrics.SetPipelineValues(active, weighted)
}
