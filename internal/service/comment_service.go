package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/client"
	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// commentPreviewLength is how much of a comment goes into its activity entry
const commentPreviewLength = 100

// CommentService defines the interface for deal comment business logic
type CommentService interface {
	AddComment(ctx context.Context, dealID uuid.UUID, req *dto.CreateCommentRequest) (*dto.CommentResponse, error)
	ListComments(ctx context.Context, dealID uuid.UUID) ([]*dto.CommentThreadResponse, error)
	UpdateComment(ctx context.Context, commentID uuid.UUID, req *dto.UpdateCommentRequest) (*dto.CommentResponse, error)
	DeleteComment(ctx context.Context, commentID uuid.UUID) error
}

// commentServiceImpl is the implementation of CommentService
type commentServiceImpl struct {
	commentRepo repository.CommentRepository
	dealRepo    repository.DealRepository
	userRepo    repository.UserRepository
	activity    ActivityService
	tx          repository.Transactor
	notifier    client.NotificationClient
	logger      *zap.Logger
}

// NewCommentService creates a new instance of CommentService
func NewCommentService(
	commentRepo repository.CommentRepository,
	dealRepo repository.DealRepository,
	userRepo repository.UserRepository,
	activity ActivityService,
	tx repository.Transactor,
	notifier client.NotificationClient,
	logger *zap.Logger,
) CommentService {
	if notifier == nil {
		notifier = client.NewNoOpNotificationClient()
	}
	return &commentServiceImpl{
		commentRepo: commentRepo,
		dealRepo:    dealRepo,
		userRepo:    userRepo,
		activity:    activity,
		tx:          tx,
		notifier:    notifier,
		logger:      logger,
	}
}

// AddComment posts a comment or, with a parent, a reply in the same deal
func (s *commentServiceImpl) AddComment(ctx context.Context, dealID uuid.UUID, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	authorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, validationError("Comment content is required", "content")
	}

	comment := &domain.DealComment{
		DealID:   dealID,
		ParentID: req.ParentID,
		AuthorID: authorID,
		Content:  content,
	}
	var deal *domain.Deal
	var parent *domain.DealComment

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.dealRepo.FindByID(ctx, dealID)
		if err != nil {
			return lookupError(err, "Deal not found", "Failed to fetch deal")
		}
		deal = found

		if req.ParentID != nil {
			parent, err = s.commentRepo.FindByID(ctx, *req.ParentID)
			if err != nil {
				if isNotFound(err) {
					return validationError("Parent comment not found", "parentId")
				}
				return response.NewAppError(response.ErrCodeInternal, "Failed to fetch parent comment", err.Error())
			}
			if parent.DealID != dealID {
				return validationError("Parent comment belongs to another deal", "parentId")
			}
		}

		if err := s.commentRepo.Create(ctx, comment); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to create comment", err.Error())
		}

		description := "Comment added"
		if parent != nil {
			description = "Reply added"
		}
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      dealID,
			Type:        domain.ActivityComment,
			Description: description,
			NewValue:    preview(content),
			Metadata:    commentMetadata(comment),
			UserID:      uuidPtr(authorID),
		})
	})
	if err != nil {
		return nil, writeError(err, "Failed to create comment")
	}

	if parent != nil && parent.AuthorID != authorID {
		s.notifyReply(ctx, deal, parent, comment)
	}

	resp := toCommentResponse(comment)
	return &resp, nil
}

// ListComments returns the deal's comments as threads, oldest first
func (s *commentServiceImpl) ListComments(ctx context.Context, dealID uuid.UUID) ([]*dto.CommentThreadResponse, error) {
	if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
		return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
	}

	comments, err := s.commentRepo.FindByDeal(ctx, dealID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch comments", err.Error())
	}
	return toCommentThreads(domain.BuildCommentTree(comments)), nil
}

// UpdateComment edits the content. Only the author may edit.
func (s *commentServiceImpl) UpdateComment(ctx context.Context, commentID uuid.UUID, req *dto.UpdateCommentRequest) (*dto.CommentResponse, error) {
	userID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, validationError("Comment content is required", "content")
	}

	var comment *domain.DealComment
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.commentRepo.FindByID(ctx, commentID)
		if err != nil {
			return lookupError(err, "Comment not found", "Failed to fetch comment")
		}
		if found.AuthorID != userID {
			return response.NewAppError(response.ErrCodeForbidden, "Only the author can edit this comment", "")
		}

		old := found.Content
		found.Content = content
		found.IsEdited = true
		if err := s.commentRepo.Update(ctx, found); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to update comment", err.Error())
		}
		comment = found

		return s.activity.Record(ctx, ActivityEntry{
			DealID:      found.DealID,
			Type:        domain.ActivityComment,
			Description: "Comment edited",
			OldValue:    preview(old),
			NewValue:    preview(content),
			Metadata:    commentMetadata(found),
			UserID:      uuidPtr(userID),
		})
	})
	if err != nil {
		return nil, writeError(err, "Failed to update comment")
	}

	resp := toCommentResponse(comment)
	return &resp, nil
}

// DeleteComment removes a comment and every reply below it. The author and
// administrators may delete.
func (s *commentServiceImpl) DeleteComment(ctx context.Context, commentID uuid.UUID) error {
	userID, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	var removed int
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		comment, err := s.commentRepo.FindByID(ctx, commentID)
		if err != nil {
			return lookupError(err, "Comment not found", "Failed to fetch comment")
		}
		if comment.AuthorID != userID {
			admin, err := s.isAdmin(ctx, userID)
			if err != nil {
				return err
			}
			if !admin {
				return response.NewAppError(response.ErrCodeForbidden, "Only the author or an administrator can delete this comment", "")
			}
		}

		thread, err := s.commentRepo.FindByDeal(ctx, comment.DealID)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch comments", err.Error())
		}
		ids := append([]uuid.UUID{comment.ID}, domain.DescendantIDs(comment.ID, thread)...)
		if err := s.commentRepo.DeleteByIDs(ctx, ids); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to delete comment", err.Error())
		}
		removed = len(ids)

		metadata := commentMetadata(comment)
		metadata["removed"] = removed
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      comment.DealID,
			Type:        domain.ActivityComment,
			Description: "Comment deleted",
			OldValue:    preview(comment.Content),
			Metadata:    metadata,
			UserID:      uuidPtr(userID),
		})
	})
	if err != nil {
		return writeError(err, "Failed to delete comment")
	}

	s.logger.Info("Comment deleted",
		zap.String("comment_id", commentID.String()),
		zap.Int("removed", removed))
	return nil
}

// isAdmin prefers the role claim of the token and falls back to the user
// record
func (s *commentServiceImpl) isAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if role, ok := roleFromContext(ctx); ok {
		return domain.UserRole(role) == domain.RoleAdmin, nil
	}
	if s.userRepo == nil {
		return false, nil
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, response.NewAppError(response.ErrCodeInternal, "Failed to fetch user", err.Error())
	}
	return user.IsAdmin(), nil
}

func (s *commentServiceImpl) notifyReply(ctx context.Context, deal *domain.Deal, parent, reply *domain.DealComment) {
	event := client.NotificationEvent{
		Type:         client.NotificationCommentReply,
		ActorID:      reply.AuthorID,
		TargetUserID: parent.AuthorID,
		ResourceType: client.ResourceComment,
		ResourceID:   reply.ID,
		ResourceName: deal.Title,
		Metadata: map[string]interface{}{
			"dealId":   deal.ID.String(),
			"parentId": parent.ID.String(),
		},
	}
	if err := s.notifier.SendNotification(ctx, event); err != nil {
		s.logger.Warn("Failed to send reply notification",
			zap.String("comment_id", reply.ID.String()),
			zap.Error(err))
	}
}

func commentMetadata(c *domain.DealComment) map[string]interface{} {
	metadata := map[string]interface{}{"commentId": c.ID}
	if c.ParentID != nil {
		metadata["parentId"] = *c.ParentID
	}
	return metadata
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= commentPreviewLength {
		return content
	}
	return fmt.Sprintf("%s...", string([]rune(content)[:commentPreviewLength]))
}
