package models

// SignupRequest is the admission payload: a claimed payment to verify.
type SignupRequest struct {
	WalletAddress string `json:"wallet_address"`
	TxHash        string `json:"tx_hash"`
}

// MemberResponse is the wire representation of a membership record.
type MemberResponse struct {
	MemberID        string `json:"memberId"`
	WalletAddress   string `json:"walletAddress"`
	PaymentTxHash   string `json:"paymentTxHash"`
	PaymentAmount   string `json:"paymentAmount"`
	PaymentCurrency string `json:"paymentCurrency"`
	CreatedAt       string `json:"createdAt"`
}

// CreatePostRequest is the payload for submitting a new post.
type CreatePostRequest struct {
	Title        string `json:"title"`
	ImageURL     string `json:"image_url"`
	Agent        string `json:"agent"`
	Caption      string `json:"caption"`
	AuthorWallet string `json:"author_wallet"`
	AuthorName   string `json:"author_name"`
}

// PostListResponse is a single feed page plus the overall total.
type PostListResponse struct {
	Posts []Post `json:"posts"`
	Total int64  `json:"total"`
}

// CreateCommentRequest is the payload for commenting on a post.
type CreateCommentRequest struct {
	Content      string `json:"content"`
	AuthorWallet string `json:"author_wallet"`
	AuthorName   string `json:"author_name"`
}

// UpvoteRequest is the payload for upvoting a post.
type UpvoteRequest struct {
	WalletAddress string `json:"wallet_address"`
}

// PaymentRequiredResponse follows the informal x402 shape: it tells a denied
// caller exactly how to pay and where to register.
type PaymentRequiredResponse struct {
	X402Version    int             `json:"x402Version"`
	Accepts        []PaymentOption `json:"accepts"`
	Error          string          `json:"error"`
	SignupEndpoint string          `json:"signup_endpoint"`
}

// PaymentOption describes one accepted payment route.
type PaymentOption struct {
	Scheme       string `json:"scheme"`
	Network      string `json:"network"`
	Currency     string `json:"currency"`
	Amount       string `json:"amount"`
	PayTo        string `json:"payTo"`
	TokenAddress string `json:"tokenAddress"`
	Description  string `json:"description"`
}
