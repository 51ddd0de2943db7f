package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

func TestPing(t *testing.T) {
	assert.ErrorIs(t, Ping(context.Background(), nil), ErrNotInitialized)

	db := openSQLite(t)
	assert.NoError(t, Ping(context.Background(), db))

	require.NoError(t, Close(db))
	assert.Error(t, Ping(context.Background(), db))
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func TestConfig_GormLogger(t *testing.T) {
	silent := Config{}.gormLogger()
	assert.Equal(t, logger.Default.LogMode(logger.Silent), silent)

	slow := Config{SlowQueryThreshold: 200 * time.Millisecond}.gormLogger()
	assert.NotEqual(t, silent, slow)
}

func TestConnect_GivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, Config{DSN: "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1"},
		10*time.Millisecond, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable after")
}
