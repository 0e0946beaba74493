package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/chain"
	"github.com/agentfails/agentfails-api/config"
	"github.com/agentfails/agentfails-api/models"
	"github.com/agentfails/agentfails-api/services"
)

const (
	testWallet = "0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAA01"
	testTxHash = "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
)

// MockPaymentVerifier is a mock implementation of services.PaymentVerifier
type MockPaymentVerifier struct {
	mock.Mock
}

func (m *MockPaymentVerifier) VerifyTransfer(ctx context.Context, txHash string, minAmount *big.Int) (chain.VerificationResult, error) {
	args := m.Called(ctx, txHash, minAmount)
	return args.Get(0).(chain.VerificationResult), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		RPCURL:              "http://localhost:0",
		TokenAddress:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		CollectorAddress:    "0x615e3faa99dd7de64812128a953215a09509f16a",
		SignupAmount:        big.NewInt(2_000_000),
		PerPostAmount:       big.NewInt(100_000),
		SignupAmountDisplay: "2.00",
		PaymentCurrency:     "USDC",
	}
}

func newTestHandler(t *testing.T, verifier services.PaymentVerifier) (*Handler, *gorm.DB) {
	db := services.SetupPostgresTestDB(t)
	if db == nil {
		return nil, nil
	}
	t.Cleanup(func() { services.CleanupTestDB(t, db) })
	return NewHandler(db, verifier, testConfig()), db
}

func doRequest(handler *Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func admitted(payer string) chain.VerificationResult {
	return chain.VerificationResult{Verified: true, Payer: payer, Amount: big.NewInt(2_000_000)}
}

func signupMember(t *testing.T, handler *Handler) {
	t.Helper()
	w := doRequest(handler, http.MethodPost, "/api/signup", models.SignupRequest{
		WalletAddress: testWallet,
		TxHash:        testTxHash,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSignup_CreatedThenReplayed(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyTransfer", mock.Anything, testTxHash, mock.Anything).
		Return(admitted("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"), nil)

	handler, _ := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	w := doRequest(handler, http.MethodPost, "/api/signup", models.SignupRequest{
		WalletAddress: testWallet,
		TxHash:        testTxHash,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Member models.MemberResponse `json:"member"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01", created.Member.WalletAddress)
	assert.Equal(t, "2.00", created.Member.PaymentAmount)

	// Replaying the same claim is a 200 with the same member, not an error
	w = doRequest(handler, http.MethodPost, "/api/signup", models.SignupRequest{
		WalletAddress: testWallet,
		TxHash:        testTxHash,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var replayed struct {
		Member models.MemberResponse `json:"member"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &replayed))
	assert.Equal(t, created.Member.MemberID, replayed.Member.MemberID)
}

func TestSignup_Validation(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	handler, _ := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	w := doRequest(handler, http.MethodPost, "/api/signup", map[string]string{"tx_hash": testTxHash})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(handler, http.MethodPost, "/api/signup", map[string]string{"wallet_address": testWallet})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(handler, http.MethodPost, "/api/signup", map[string]string{
		"wallet_address": "not-a-wallet",
		"tx_hash":        testTxHash,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(handler, http.MethodGet, "/api/signup", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	verifier.AssertNotCalled(t, "VerifyTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignup_PaymentInvalid(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyTransfer", mock.Anything, testTxHash, mock.Anything).Return(
		chain.VerificationResult{Reason: chain.ReasonNoQualifyingTransfer, Detail: "no token transfer found"}, nil)

	handler, _ := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	w := doRequest(handler, http.MethodPost, "/api/signup", models.SignupRequest{
		WalletAddress: testWallet,
		TxHash:        testTxHash,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(chain.ReasonNoQualifyingTransfer), body["code"])
}

func TestCreatePost_RequiresMembership(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	handler, _ := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	w := doRequest(handler, http.MethodPost, "/api/posts", models.CreatePostRequest{
		Title:        "agent deleted the repo",
		ImageURL:     "https://img.example/fail.png",
		AuthorWallet: testWallet,
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var denial models.PaymentRequiredResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &denial))
	assert.Equal(t, 1, denial.X402Version)
	assert.Equal(t, "/api/signup", denial.SignupEndpoint)
	assert.Len(t, denial.Accepts, 1)
	assert.Equal(t, "2000000", denial.Accepts[0].Amount)
}

func TestCreatePost_DenialAdvertisesPerPostPriceAfterOpenPhase(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	handler, db := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	for i := 0; i < services.OpenPhaseLimit; i++ {
		post := models.Post{
			PostID:       fmt.Sprintf("post_seed_%03d", i),
			Title:        fmt.Sprintf("seed %d", i),
			ImageURL:     "https://img.example/seed.png",
			AuthorWallet: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa99",
		}
		assert.NoError(t, db.Create(&post).Error)
	}

	w := doRequest(handler, http.MethodPost, "/api/posts", models.CreatePostRequest{
		Title:        "agent deleted the repo",
		ImageURL:     "https://img.example/fail.png",
		AuthorWallet: testWallet,
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var denial models.PaymentRequiredResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &denial))
	assert.Len(t, denial.Accepts, 2)
	assert.Equal(t, "2000000", denial.Accepts[0].Amount)
	assert.Equal(t, "100000", denial.Accepts[1].Amount)
}

func TestCreatePost_MemberSucceeds(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyTransfer", mock.Anything, testTxHash, mock.Anything).
		Return(admitted("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"), nil)

	handler, _ := newTestHandler(t, verifier)
	if handler == nil {
		return
	}
	signupMember(t, handler)

	w := doRequest(handler, http.MethodPost, "/api/posts", models.CreatePostRequest{
		Title:        "agent deleted the repo",
		ImageURL:     "https://img.example/fail.png",
		Agent:        "openclaw",
		AuthorWallet: testWallet,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// The new post shows up in the feed
	w = doRequest(handler, http.MethodGet, "/api/posts?tab=new", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var feed models.PostListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	assert.Equal(t, int64(1), feed.Total)
	assert.Equal(t, "agent deleted the repo", feed.Posts[0].Title)
}

func TestUpvote_GatedAndIdempotent(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyTransfer", mock.Anything, testTxHash, mock.Anything).
		Return(admitted("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"), nil)

	handler, db := newTestHandler(t, verifier)
	if handler == nil {
		return
	}
	signupMember(t, handler)

	post := models.Post{PostID: "post_test", Title: "t", ImageURL: "u", AuthorWallet: "0xother"}
	assert.NoError(t, db.Create(&post).Error)

	// Non-member is denied
	w := doRequest(handler, http.MethodPost, "/api/posts/post_test/upvote", models.UpvoteRequest{
		WalletAddress: "0x9999999999999999999999999999999999999999",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = doRequest(handler, http.MethodPost, "/api/posts/post_test/upvote", models.UpvoteRequest{WalletAddress: testWallet})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(handler, http.MethodPost, "/api/posts/post_test/upvote", models.UpvoteRequest{WalletAddress: testWallet})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestComments_PublicReadGatedWrite(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyTransfer", mock.Anything, testTxHash, mock.Anything).
		Return(admitted("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"), nil)

	handler, db := newTestHandler(t, verifier)
	if handler == nil {
		return
	}
	signupMember(t, handler)

	post := models.Post{PostID: "post_test", Title: "t", ImageURL: "u", AuthorWallet: "0xother"}
	assert.NoError(t, db.Create(&post).Error)

	// Reading comments needs no membership
	w := doRequest(handler, http.MethodGet, "/api/posts/post_test/comments", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(handler, http.MethodPost, "/api/posts/post_test/comments", models.CreateCommentRequest{
		Content:      "rookie mistake",
		AuthorWallet: "0x9999999999999999999999999999999999999999",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = doRequest(handler, http.MethodPost, "/api/posts/post_test/comments", models.CreateCommentRequest{
		Content:      "rookie mistake",
		AuthorWallet: testWallet,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestMemberLookup(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyTransfer", mock.Anything, testTxHash, mock.Anything).
		Return(admitted("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"), nil)

	handler, _ := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	w := doRequest(handler, http.MethodGet, "/api/members/"+testWallet, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	signupMember(t, handler)

	w = doRequest(handler, http.MethodGet, "/api/members/"+testWallet, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostCount(t *testing.T) {
	verifier := new(MockPaymentVerifier)
	handler, db := newTestHandler(t, verifier)
	if handler == nil {
		return
	}

	assert.NoError(t, db.Create(&models.Post{PostID: "post_a", Title: "a", ImageURL: "u", AuthorWallet: "0xother"}).Error)
	assert.NoError(t, db.Create(&models.Post{PostID: "post_b", Title: "b", ImageURL: "u", AuthorWallet: "0xother"}).Error)

	w := doRequest(handler, http.MethodGet, "/api/posts/count", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]int64
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body["count"])
}
