package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/models"
	apierrors "github.com/agentfails/agentfails-api/pkg/errors"
)

// CommentService handles comment-related operations
type CommentService struct {
	db *gorm.DB
}

// NewCommentService creates a new comment service
func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// ListComments returns all comments on a post, oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, apierrors.DatabaseError("list comments", err)
	}
	return comments, nil
}

// AddComment creates a new comment on a post. The caller is responsible for
// the membership check.
func (s *CommentService) AddComment(ctx context.Context, postID string, req *models.CreateCommentRequest) (*models.Comment, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apierrors.ValidationError("MISSING_CONTENT", "content is required")
	}

	comment := models.Comment{
		CommentID:    "com_" + uuid.New().String(),
		PostID:       postID,
		Content:      strings.TrimSpace(req.Content),
		AuthorWallet: strings.ToLower(req.AuthorWallet),
		AuthorName:   strings.TrimSpace(req.AuthorName),
	}

	if err := s.db.Create(&comment).Error; err != nil {
		return nil, apierrors.DatabaseError("create comment", err)
	}

	return &comment, nil
}
