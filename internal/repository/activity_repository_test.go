package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-pipeline-api/internal/domain"
)

func TestActivityRepository_FindRecentNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	dealID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &domain.DealActivity{
			DealID:       dealID,
			ActivityType: domain.ActivityEdited,
			Description:  "edit",
			NewValue:     string(rune('a' + i)),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.DealActivity{DealID: uuid.New(), ActivityType: domain.ActivityCreated, Description: "other"}))

	recent, err := repo.FindRecent(ctx, dealID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].NewValue)
	assert.Equal(t, "c", recent[2].NewValue)

	count, err := repo.CountByDeal(ctx, dealID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}
