package services

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/chain"
	"github.com/agentfails/agentfails-api/config"
	"github.com/agentfails/agentfails-api/models"
	apierrors "github.com/agentfails/agentfails-api/pkg/errors"
	"github.com/agentfails/agentfails-api/pkg/monitoring"
)

// pgUniqueViolation is the PostgreSQL error code for a unique constraint hit.
const pgUniqueViolation = "23505"

// PaymentVerifier confirms that a transaction carried a qualifying token
// transfer. Implemented by chain.Verifier.
type PaymentVerifier interface {
	VerifyTransfer(ctx context.Context, txHash string, minAmount *big.Int) (chain.VerificationResult, error)
}

// MembershipService handles admission: it turns a verified on-chain payment
// into a durable membership record, and answers the membership question for
// every gated action. Correctness under concurrent duplicate signups rests
// entirely on the two uniqueness constraints of the members table.
type MembershipService struct {
	db       *gorm.DB
	verifier PaymentVerifier
	cfg      *config.Config
}

// NewMembershipService creates a new membership service
func NewMembershipService(db *gorm.DB, verifier PaymentVerifier, cfg *config.Config) *MembershipService {
	return &MembershipService{db: db, verifier: verifier, cfg: cfg}
}

// Admit verifies the claimed payment transaction on-chain and, if it
// qualifies, upserts the membership record for walletAddress. The second
// return value reports whether a new row was created: a replayed transaction
// hash or a concurrently-created wallet row is returned as an existing
// member, never as an error.
func (s *MembershipService) Admit(ctx context.Context, walletAddress, txHash string) (*models.Member, bool, error) {
	if !chain.IsAddress(walletAddress) {
		return nil, false, apierrors.ValidationError("INVALID_WALLET", "wallet_address must be a 0x-prefixed 20-byte hex address")
	}

	result, err := s.verifier.VerifyTransfer(ctx, txHash, s.cfg.SignupAmount)
	if err != nil {
		slog.Error("Chain RPC failure during admission", "txHash", txHash, "error", err)
		return nil, false, apierrors.ChainUnavailableError(err)
	}
	if !result.Verified {
		monitoring.RecordBusinessEvent(ctx, "admission", string(result.Reason))
		return nil, false, apierrors.PaymentInvalidError(string(result.Reason), result.Detail)
	}

	wallet := strings.ToLower(walletAddress)
	// Hex hashes are case-insensitive identifiers, so the stored and
	// replay-checked form is always the lower-cased one. Otherwise a
	// case-variant resubmission would slip past both the replay lookup and
	// the uniqueness constraint.
	txHash = strings.ToLower(txHash)

	// A transaction hash grants membership at most once. If it was already
	// consumed this is an idempotent replay (e.g. a client retry after a lost
	// response), so the original member is returned regardless of which
	// wallet the retry claims.
	var existing models.Member
	err = s.db.WithContext(ctx).First(&existing, "payment_tx_hash = ?", txHash).Error
	if err == nil {
		slog.Info("Admission replay: payment transaction already consumed",
			"txHash", txHash, "memberId", existing.MemberID)
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apierrors.DatabaseError("lookup member by transaction", err)
	}

	member := models.Member{
		MemberID:        "mem_" + uuid.New().String(),
		WalletAddress:   wallet,
		PaymentTxHash:   txHash,
		PaymentAmount:   s.cfg.SignupAmountDisplay,
		PaymentCurrency: s.cfg.PaymentCurrency,
	}

	// The insert runs without the request context: once issued it must
	// complete, so a client disconnect cannot leave half-admitted state.
	if err := s.db.Create(&member).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost a race: either this wallet was admitted concurrently or
			// the same transaction was consumed between lookup and insert.
			// Admission is idempotent per wallet, so surface the winner.
			winner, lookupErr := s.findExisting(wallet, txHash)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			slog.Info("Admission race resolved to existing member",
				"wallet", wallet, "memberId", winner.MemberID)
			return winner, false, nil
		}
		return nil, false, apierrors.DatabaseError("create member", err)
	}

	monitoring.RecordBusinessEvent(ctx, "admission", "admitted")
	slog.Info("Admitted new member",
		"memberId", member.MemberID,
		"wallet", member.WalletAddress,
		"txHash", member.PaymentTxHash,
		"amount", result.Amount.String())

	return &member, true, nil
}

// findExisting resolves a unique-violation race to the surviving row, trying
// the wallet constraint first and the transaction constraint second.
func (s *MembershipService) findExisting(wallet, txHash string) (*models.Member, error) {
	var member models.Member
	err := s.db.First(&member, "wallet_address = ?", wallet).Error
	if err == nil {
		return &member, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.DatabaseError("lookup member by wallet", err)
	}

	if err := s.db.First(&member, "payment_tx_hash = ?", txHash).Error; err != nil {
		return nil, apierrors.DatabaseError("lookup member by transaction", err)
	}
	return &member, nil
}

// IsMember reports whether walletAddress holds a membership. The lookup
// trusts the admission write; no re-verification happens here.
func (s *MembershipService) IsMember(ctx context.Context, walletAddress string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("wallet_address = ?", strings.ToLower(walletAddress)).
		Count(&count).Error
	if err != nil {
		return false, apierrors.DatabaseError("membership lookup", err)
	}
	return count > 0, nil
}

// GetMember retrieves the membership record for a wallet address.
func (s *MembershipService) GetMember(ctx context.Context, walletAddress string) (*models.Member, error) {
	var member models.Member
	err := s.db.WithContext(ctx).First(&member, "wallet_address = ?", strings.ToLower(walletAddress)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFoundError("member")
	}
	if err != nil {
		return nil, apierrors.DatabaseError("fetch member", err)
	}
	return &member, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, either as a raw pgconn error or GORM's translated form.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
