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

func TestCommentRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	dealID := uuid.New()
	author := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	root := &domain.DealComment{BaseModel: domain.BaseModel{CreatedAt: base}, DealID: dealID, AuthorID: author, Content: "first"}
	require.NoError(t, repo.Create(ctx, root))
	reply := &domain.DealComment{BaseModel: domain.BaseModel{CreatedAt: base.Add(time.Minute)}, DealID: dealID, ParentID: &root.ID, AuthorID: uuid.New(), Content: "reply"}
	require.NoError(t, repo.Create(ctx, reply))

	comments, err := repo.FindByDeal(ctx, dealID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, root.ID, comments[0].ID)

	root.Content = "edited"
	root.IsEdited = true
	require.NoError(t, repo.Update(ctx, root))
	stored, err := repo.FindByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Content)
	assert.True(t, stored.IsEdited)

	require.NoError(t, repo.DeleteByIDs(ctx, []uuid.UUID{root.ID, reply.ID}))
	comments, err = repo.FindByDeal(ctx, dealID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
