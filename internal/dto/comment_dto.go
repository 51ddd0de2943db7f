package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateCommentRequest represents the request to add a comment to a deal
// @Description parentId makes the comment a reply; the parent must belong to the same deal.
type CreateCommentRequest struct {
	Content  string     `json:"content" binding:"required,min=1"`
	ParentID *uuid.UUID `json:"parentId,omitempty" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
}

// UpdateCommentRequest represents the request to edit a comment
type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}

// CommentResponse represents the comment response
type CommentResponse struct {
	CommentID uuid.UUID  `json:"commentId"`
	DealID    uuid.UUID  `json:"dealId"`
	ParentID  *uuid.UUID `json:"parentId,omitempty"`
	AuthorID  uuid.UUID  `json:"authorId"`
	Content   string     `json:"content"`
	IsEdited  bool       `json:"isEdited"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CommentThreadResponse is a comment with its nested replies
type CommentThreadResponse struct {
	CommentResponse
	Replies []*CommentThreadResponse `json:"replies"`
}
