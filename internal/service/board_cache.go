package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/dto"
)

const boardCachePrefix = "crm:pipeline:"

// BoardCache stores rendered boards between deal mutations. Failures are
// logged and treated as misses.
type BoardCache interface {
	Get(ctx context.Context, key string) (*dto.BoardResponse, bool)
	Set(ctx context.Context, key string, board *dto.BoardResponse)
	Invalidate(ctx context.Context)
}

type redisBoardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewBoardCache returns a Redis backed cache, or a cache that never hits when
// client is nil
func NewBoardCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) BoardCache {
	if client == nil {
		return noopBoardCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisBoardCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisBoardCache) Get(ctx context.Context, key string) (*dto.BoardResponse, bool) {
	data, err := c.client.Get(ctx, boardCachePrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Board cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var board dto.BoardResponse
	if err := json.Unmarshal(data, &board); err != nil {
		c.logger.Warn("Discarding unreadable board cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &board, true
}

func (c *redisBoardCache) Set(ctx context.Context, key string, board *dto.BoardResponse) {
	data, err := json.Marshal(board)
	if err != nil {
		c.logger.Warn("Failed to encode board for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, boardCachePrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Board cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached board, whatever filter produced it
func (c *redisBoardCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, boardCachePrefix+"board:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Board cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Board cache invalidation failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

type noopBoardCache struct{}

func (noopBoardCache) Get(context.Context, string) (*dto.BoardResponse, bool) { return nil, false }
func (noopBoardCache) Set(context.Context, string, *dto.BoardResponse) {}
func (noopBoardCache) Invalidate(context.Context) {}
