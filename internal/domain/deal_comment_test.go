package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComment(parent *DealComment, at time.Time) *DealComment {
	c := &DealComment{BaseModel: BaseModel{ID: uuid.New(), CreatedAt: at}}
	if parent != nil {
		id := parent.ID
		c.ParentID = &id
	}
	return c
}

func TestBuildCommentTree(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	root1 := newComment(nil, base)
	root2 := newComment(nil, base.Add(time.Hour))
	reply1 := newComment(root1, base.Add(3*time.Minute))
	reply2 := newComment(root1, base.Add(2*time.Minute))
	nested := newComment(reply2, base.Add(5*time.Minute))

	orphanParent := uuid.New()
	orphan := newComment(nil, base.Add(2*time.Hour))
	orphan.ParentID = &orphanParent

	tree := BuildCommentTree([]*DealComment{root2, nested, reply1, orphan, root1, reply2})

	require.Len(t, tree, 3)
	assert.Equal(t, root1.ID, tree[0].Comment.ID)
	assert.Equal(t, root2.ID, tree[1].Comment.ID)
	assert.Equal(t, orphan.ID, tree[2].Comment.ID)

	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, reply2.ID, tree[0].Replies[0].Comment.ID, "replies are oldest first")
	assert.Equal(t, reply1.ID, tree[0].Replies[1].Comment.ID)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, nested.ID, tree[0].Replies[0].Replies[0].Comment.ID)
}

func TestBuildCommentTree_Empty(t *testing.T) {
	assert.Empty(t, BuildCommentTree(nil))
}

func TestDescendantIDs(t *testing.T) {
	now := time.Now()
	root := newComment(nil, now)
	child := newComment(root, now)
	grandchild := newComment(child, now)
	sibling := newComment(nil, now)

	ids := DescendantIDs(root.ID, []*DealComment{root, child, grandchild, sibling})
	assert.ElementsMatch(t, []uuid.UUID{child.ID, grandchild.ID}, ids)

	assert.Empty(t, DescendantIDs(sibling.ID, []*DealComment{root, child, sibling}))
}
