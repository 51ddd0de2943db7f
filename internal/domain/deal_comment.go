package domain

import (
	"sort"

	"github.com/google/uuid"
)

// DealComment is a threaded comment on a deal
type DealComment struct {
	BaseModel
	DealID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_deal_comments_deal_id" json:"dealId"`
	ParentID *uuid.UUID `gorm:"type:uuid;index:idx_deal_comments_parent_id" json:"parentId,omitempty"`
	AuthorID uuid.UUID  `gorm:"type:uuid;not null;index:idx_deal_comments_author_id" json:"authorId"`
	Content  string     `gorm:"type:text;not null" json:"content"`
	IsEdited bool       `gorm:"not null;default:false" json:"isEdited"`
}

// TableName specifies the table name for DealComment
func (DealComment) TableName() string {
	return "deal_comments"
}

// CommentNode is a comment with its replies
type CommentNode struct {
	Comment *DealComment
	Replies []*CommentNode
}

// BuildCommentTree arranges a flat list of comments into threads, oldest
// first at every level. Comments whose parent is missing from the list are
// treated as roots.
func BuildCommentTree(comments []*DealComment) []*CommentNode {
	nodes := make(map[uuid.UUID]*CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &CommentNode{Comment: c}
	}

	var roots []*CommentNode
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok && *c.ParentID != c.ID {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*CommentNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Comment.CreatedAt.Before(nodes[j].Comment.CreatedAt)
	})
	for _, n := range nodes {
		sortNodes(n.Replies)
	}
}

// DescendantIDs returns the ids of every reply below root in comments
func DescendantIDs(root uuid.UUID, comments []*DealComment) []uuid.UUID {
	children := map[uuid.UUID][]uuid.UUID{}
	for _, c := range comments {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	var out []uuid.UUID
	seen := map[uuid.UUID]bool{root: true}
	queue := []uuid.UUID{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
