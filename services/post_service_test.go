package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentfails/agentfails-api/models"
	apierrors "github.com/agentfails/agentfails-api/pkg/errors"
)

func seedPost(t *testing.T, s *PostService, title, agent string) *models.Post {
	t.Helper()
	post, err := s.CreatePost(context.Background(), &models.CreatePostRequest{
		Title:        title,
		ImageURL:     "https://img.example/" + title + ".png",
		Agent:        agent,
		AuthorWallet: testWallet,
	})
	assert.NoError(t, err)
	return post
}

func TestCreatePost_Validation(t *testing.T) {
	service := NewPostService(nil)

	_, err := service.CreatePost(context.Background(), &models.CreatePostRequest{ImageURL: "https://img.example/x.png"})
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, "MISSING_TITLE", apiErr.Code)

	_, err = service.CreatePost(context.Background(), &models.CreatePostRequest{Title: "broke prod"})
	apiErr = apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, "MISSING_IMAGE", apiErr.Code)
}

func TestListPosts_TabsAndPagination(t *testing.T) {
	db := SetupPostgresTestDB(t)
	if db == nil {
		return
	}
	defer CleanupTestDB(t, db)

	service := NewPostService(db)
	voteService := NewVoteService(db)

	openclaw := seedPost(t, service, "openclaw fail", "openclaw")
	other := seedPost(t, service, "other fail", "someagent")
	for i := 0; i < 12; i++ {
		seedPost(t, service, fmt.Sprintf("filler %d", i), "someagent")
	}

	// Give the openclaw post a vote so it ranks first on "hot"
	err := voteService.Upvote(context.Background(), openclaw.PostID, testWallet)
	assert.NoError(t, err)

	feed, err := service.ListPosts(context.Background(), TabHot, 0)
	assert.NoError(t, err)
	assert.Len(t, feed.Posts, PageSize)
	assert.Equal(t, int64(14), feed.Total)
	assert.Equal(t, openclaw.PostID, feed.Posts[0].PostID)

	// Second page holds the remainder
	feed, err = service.ListPosts(context.Background(), TabHot, 1)
	assert.NoError(t, err)
	assert.Len(t, feed.Posts, 4)

	// Agent filters
	feed, err = service.ListPosts(context.Background(), TabOpenclaw, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), feed.Total)
	assert.Equal(t, openclaw.PostID, feed.Posts[0].PostID)

	feed, err = service.ListPosts(context.Background(), TabOther, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(13), feed.Total)

	// "new" ranks by recency: the most recent filler comes first and the
	// two oldest posts fall off the first page
	feed, err = service.ListPosts(context.Background(), TabNew, 0)
	assert.NoError(t, err)
	assert.Equal(t, "filler 11", feed.Posts[0].Title)
	for _, p := range feed.Posts {
		assert.NotEqual(t, other.PostID, p.PostID)
	}

	_, err = service.ListPosts(context.Background(), "bogus", 0)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, "INVALID_TAB", apiErr.Code)
}

func TestGetPost_NotFound(t *testing.T) {
	db := SetupPostgresTestDB(t)
	if db == nil {
		return
	}
	defer CleanupTestDB(t, db)

	service := NewPostService(db)
	_, err := service.GetPost(context.Background(), "post_missing")
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
}

func TestCountPosts(t *testing.T) {
	db := SetupPostgresTestDB(t)
	if db == nil {
		return
	}
	defer CleanupTestDB(t, db)

	service := NewPostService(db)

	count, err := service.CountPosts(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	seedPost(t, service, "one", "openclaw")
	seedPost(t, service, "two", "openclaw")

	count, err = service.CountPosts(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
