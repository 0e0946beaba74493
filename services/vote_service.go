package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/models"
	apierrors "github.com/agentfails/agentfails-api/pkg/errors"
	"github.com/agentfails/agentfails-api/pkg/monitoring"
)

// VoteService handles upvotes
type VoteService struct {
	db *gorm.DB
}

// NewVoteService creates a new vote service
func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// Upvote records a vote by walletAddress on postID and bumps the post's
// upvote count. The (post_id, voter_wallet) uniqueness constraint rejects
// duplicates; the count update is a single atomic SQL expression, never a
// read-modify-write.
func (s *VoteService) Upvote(ctx context.Context, postID, walletAddress string) error {
	vote := models.Vote{
		VoteID:      "vote_" + uuid.New().String(),
		PostID:      postID,
		VoterWallet: strings.ToLower(walletAddress),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vote).Error; err != nil {
			if isUniqueViolation(err) {
				return apierrors.ConflictError("Already upvoted")
			}
			return apierrors.DatabaseError("record vote", err)
		}

		result := tx.Model(&models.Post{}).
			Where("post_id = ?", postID).
			UpdateColumn("upvote_count", gorm.Expr("upvote_count + ?", 1))
		if result.Error != nil {
			return apierrors.DatabaseError("increment upvote count", result.Error)
		}
		if result.RowsAffected == 0 {
			return apierrors.NotFoundError("post")
		}
		return nil
	})
	if err != nil {
		return err
	}

	monitoring.RecordBusinessEvent(ctx, "vote", "cast")
	return nil
}
