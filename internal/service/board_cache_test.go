package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/dto"
)

func TestNewBoardCache_NilClientNeverHits(t *testing.T) {
	cache := NewBoardCache(nil, time.Minute, zap.NewNop())
	ctx := context.Background()

	cache.Set(ctx, "board:all", &dto.BoardResponse{TotalDeals: 3})
	got, ok := cache.Get(ctx, "board:all")
	assert.False(t, ok)
	assert.Nil(t, got)
	cache.Invalidate(ctx)
}

func TestRedisBoardCache_UnreachableServerIsAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewBoardCache(client, 0, zap.NewNop())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		cache.Set(ctx, "board:all", &dto.BoardResponse{TotalDeals: 1})
		cache.Invalidate(ctx)
	})
	got, ok := cache.Get(ctx, "board:all")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestPipelineService_GetBoard_SurvivesCacheOutage(t *testing.T) {
	env := newTestEnv(t)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	pipeline := NewPipelineService(env.dealRepo, env.activity, env.tx,
		NewBoardCache(client, time.Minute, zap.NewNop()), nil, nil, zap.NewNop())
	env.seedDeal(t, env.seedClient(t, "Acme"), "Roof", 1000)

	board, err := pipeline.GetBoard(env.ctx(), dto.BoardFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, board.TotalDeals)
	assert.Len(t, board.Stages, 9)
}
