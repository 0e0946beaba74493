package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/config"
	"github.com/agentfails/agentfails-api/models"
	apierrors "github.com/agentfails/agentfails-api/pkg/errors"
	"github.com/agentfails/agentfails-api/services"
	"github.com/agentfails/agentfails-api/utils"
)

// Handler wires all API routes to their services.
type Handler struct {
	membershipService *services.MembershipService
	postService       *services.PostService
	commentService    *services.CommentService
	voteService       *services.VoteService
	cfg               *config.Config
}

// NewHandler creates a new API handler
func NewHandler(db *gorm.DB, verifier services.PaymentVerifier, cfg *config.Config) *Handler {
	return &Handler{
		membershipService: services.NewMembershipService(db, verifier, cfg),
		postService:       services.NewPostService(db),
		commentService:    services.NewCommentService(db),
		voteService:       services.NewVoteService(db),
		cfg:               cfg,
	}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("/api/signup", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleSignup)))
	mux.Handle("/api/posts", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handlePosts)))
	mux.Handle("/api/posts/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handlePosts)))
	mux.Handle("/api/members/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleMembers)))
}

// handleSignup handles POST /api/signup: admission after on-chain payment.
// 201 with the member on a fresh admission, 200 with the existing member on
// an idempotent replay or a lost duplicate-signup race, 400 on malformed
// input, 422 when the payment does not qualify.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.WalletAddress == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}
	if req.TxHash == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "tx_hash is required")
		return
	}

	member, created, err := h.membershipService.Admit(r.Context(), req.WalletAddress, req.TxHash)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.RespondWithSuccess(w, status, map[string]interface{}{"member": toMemberResponse(member)})
}

// handleMembers handles GET /api/members/{wallet}: the frontend membership probe.
func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	wallet := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/members"), "/")
	if wallet == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Wallet address is required")
		return
	}

	member, err := h.membershipService.GetMember(r.Context(), wallet)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"member": toMemberResponse(member)})
}

// handlePosts handles post-related routes
func (h *Handler) handlePosts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/posts")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Collection endpoint: GET /api/posts and POST /api/posts
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			h.listPosts(w, r)
		case http.MethodPost:
			h.createPost(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// GET /api/posts/count
	if len(parts) == 1 && parts[0] == "count" {
		if r.Method == http.MethodGet {
			h.countPosts(w, r)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	postID := parts[0]

	// GET /api/posts/{id}
	if len(parts) == 1 {
		if r.Method == http.MethodGet {
			h.getPost(w, r, postID)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// /api/posts/{id}/comments
	if len(parts) == 2 && parts[1] == "comments" {
		switch r.Method {
		case http.MethodGet:
			h.listComments(w, r, postID)
		case http.MethodPost:
			h.addComment(w, r, postID)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// POST /api/posts/{id}/upvote
	if len(parts) == 2 && parts[1] == "upvote" {
		if r.Method == http.MethodPost {
			h.upvotePost(w, r, postID)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return
		}
		page = parsed
	}

	feed, err := h.postService.ListPosts(r.Context(), tab, page)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, feed)
}

func (h *Handler) countPosts(w http.ResponseWriter, r *http.Request) {
	count, err := h.postService.CountPosts(r.Context())
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request, postID string) {
	post, err := h.postService.GetPost(r.Context(), postID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"post": post})
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !h.requireMember(w, r, req.AuthorWallet, "Membership required to post", h.perPostOptions(r)...) {
		return
	}

	post, err := h.postService.CreatePost(r.Context(), &req)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"post": post})
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request, postID string) {
	comments, err := h.commentService.ListComments(r.Context(), postID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request, postID string) {
	var req models.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !h.requireMember(w, r, req.AuthorWallet, "Membership required to comment") {
		return
	}

	comment, err := h.commentService.AddComment(r.Context(), postID, &req)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"comment": comment})
}

func (h *Handler) upvotePost(w http.ResponseWriter, r *http.Request, postID string) {
	var req models.UpvoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !h.requireMember(w, r, req.WalletAddress, "Membership required to vote") {
		return
	}

	if err := h.voteService.Upvote(r.Context(), postID, req.WalletAddress); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireMember is the admission gate for every write action. A missing or
// unregistered wallet is answered with 402 and the payment instructions;
// the caller should stop handling when it returns false.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, wallet, denial string, extra ...models.PaymentOption) bool {
	if wallet == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "wallet address is required for this action")
		return false
	}

	isMember, err := h.membershipService.IsMember(r.Context(), wallet)
	if err != nil {
		h.respondWithServiceError(w, err)
		return false
	}
	if !isMember {
		h.respondPaymentRequired(w, denial, extra...)
		return false
	}
	return true
}

// perPostOptions returns the per-post payment option once the open posting
// phase is over, so post denials advertise both prices. A failed count is
// logged and treated as still-open rather than failing the request.
func (h *Handler) perPostOptions(r *http.Request) []models.PaymentOption {
	count, err := h.postService.CountPosts(r.Context())
	if err != nil {
		slog.Error("Post count lookup failed while building payment options", "error", err)
		return nil
	}
	if count < services.OpenPhaseLimit {
		return nil
	}
	return []models.PaymentOption{
		{
			Scheme:       "exact",
			Network:      "base-mainnet",
			Currency:     h.cfg.PaymentCurrency,
			Amount:       h.cfg.PerPostAmount.String(),
			PayTo:        h.cfg.CollectorAddress,
			TokenAddress: h.cfg.TokenAddress,
			Description:  "agentfails per-post fee",
		},
	}
}

// respondPaymentRequired sends the x402-style 402 body pointing at signup.
func (h *Handler) respondPaymentRequired(w http.ResponseWriter, denial string, extra ...models.PaymentOption) {
	accepts := []models.PaymentOption{
		{
			Scheme:       "exact",
			Network:      "base-mainnet",
			Currency:     h.cfg.PaymentCurrency,
			Amount:       h.cfg.SignupAmount.String(),
			PayTo:        h.cfg.CollectorAddress,
			TokenAddress: h.cfg.TokenAddress,
			Description:  "agentfails membership - one-time signup",
		},
	}
	accepts = append(accepts, extra...)

	body := models.PaymentRequiredResponse{
		X402Version:    1,
		Accepts:        accepts,
		Error:          denial + ". Send USDC on Base then register at POST /api/signup.",
		SignupEndpoint: "/api/signup",
	}
	utils.RespondWithSuccess(w, http.StatusPaymentRequired, body)
}

// respondWithServiceError maps a service error to the HTTP response, keeping
// the structured code and details for client-visible classes.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	apiErr := apierrors.GetAPIError(err)
	if apiErr == nil {
		slog.Error("Unclassified handler error", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("Service failure", "code", apiErr.Code, "error", apiErr.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	if encodeErr := json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   apiErr.Message,
		"code":    apiErr.Code,
		"details": apiErr.Details,
	}); encodeErr != nil {
		slog.Error("Failed to encode error response", "error", encodeErr)
	}
}

func toMemberResponse(member *models.Member) models.MemberResponse {
	return models.MemberResponse{
		MemberID:        member.MemberID,
		WalletAddress:   member.WalletAddress,
		PaymentTxHash:   member.PaymentTxHash,
		PaymentAmount:   member.PaymentAmount,
		PaymentCurrency: member.PaymentCurrency,
		CreatedAt:       member.CreatedAt.Format(time.RFC3339),
	}
}
