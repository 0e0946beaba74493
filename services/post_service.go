package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/models"
	apierrors "github.com/agentfails/agentfails-api/pkg/errors"
	"github.com/agentfails/agentfails-api/pkg/monitoring"
)

// Feed tabs. "hot" and "hof" both rank by upvotes, "new" by recency, and the
// agent tabs filter on the agent column before ranking.
const (
	TabHot        = "hot"
	TabNew        = "new"
	TabHallOfFame = "hof"
	TabOpenclaw   = "openclaw"
	TabOther      = "other"
)

// PageSize is the fixed feed page size.
const PageSize = 10

// OpenPhaseLimit is the post count at which the free posting phase ends and
// denials for new posts start advertising the per-post price.
const OpenPhaseLimit = 100

// PostService handles post-related operations
type PostService struct {
	db *gorm.DB
}

// NewPostService creates a new post service
func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// ListPosts returns one feed page for the given tab plus the total post count.
func (s *PostService) ListPosts(ctx context.Context, tab string, page int) (*models.PostListResponse, error) {
	if page < 0 {
		page = 0
	}

	query := s.db.WithContext(ctx).Model(&models.Post{})

	switch tab {
	case TabNew:
		query = query.Order("created_at DESC")
	case TabOpenclaw:
		query = query.Where("agent = ?", TabOpenclaw).Order("upvote_count DESC")
	case TabOther:
		query = query.Where("agent <> ?", TabOpenclaw).Order("upvote_count DESC")
	case TabHot, TabHallOfFame, "":
		query = query.Order("upvote_count DESC")
	default:
		return nil, apierrors.ValidationError("INVALID_TAB", "unknown feed tab")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apierrors.DatabaseError("count posts", err)
	}

	var posts []models.Post
	err := query.Offset(page * PageSize).Limit(PageSize).Find(&posts).Error
	if err != nil {
		return nil, apierrors.DatabaseError("list posts", err)
	}

	return &models.PostListResponse{Posts: posts, Total: total}, nil
}

// GetPost retrieves a single post by ID.
func (s *PostService) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "post_id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFoundError("post")
	}
	if err != nil {
		return nil, apierrors.DatabaseError("fetch post", err)
	}
	return &post, nil
}

// CountPosts returns the total number of posts. Used for phase gating: below
// 100 posts, posting is free for members.
func (s *PostService) CountPosts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error
	if err != nil {
		return 0, apierrors.DatabaseError("count posts", err)
	}
	return count, nil
}

// CreatePost creates a new post. The caller is responsible for the
// membership check; this performs only validation and the write.
func (s *PostService) CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apierrors.ValidationError("MISSING_TITLE", "title is required")
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, apierrors.ValidationError("MISSING_IMAGE", "image_url is required")
	}

	post := models.Post{
		PostID:       "post_" + uuid.New().String(),
		Title:        strings.TrimSpace(req.Title),
		ImageURL:     strings.TrimSpace(req.ImageURL),
		Agent:        strings.TrimSpace(req.Agent),
		Caption:      strings.TrimSpace(req.Caption),
		AuthorWallet: strings.ToLower(req.AuthorWallet),
		AuthorName:   strings.TrimSpace(req.AuthorName),
	}

	if err := s.db.Create(&post).Error; err != nil {
		return nil, apierrors.DatabaseError("create post", err)
	}

	monitoring.RecordBusinessEvent(ctx, "post", "created")
	slog.Info("Created post", "postId", post.PostID, "author", post.AuthorWallet)

	return &post, nil
}
