package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

// RejectReason classifies why a claimed payment did not qualify.
type RejectReason string

const (
	// ReasonMalformedHash - the transaction hash is not a 32-byte hex string.
	ReasonMalformedHash RejectReason = "MALFORMED_HASH"
	// ReasonNotFound - no receipt exists; the transaction is unknown or unconfirmed.
	ReasonNotFound RejectReason = "NOT_FOUND"
	// ReasonChainFailure - the transaction was mined but reverted on-chain.
	ReasonChainFailure RejectReason = "CHAIN_FAILURE"
	// ReasonNoQualifyingTransfer - no token transfer to the collector was found.
	ReasonNoQualifyingTransfer RejectReason = "NO_QUALIFYING_TRANSFER"
	// ReasonUnderpayment - a transfer was found but below the required amount.
	ReasonUnderpayment RejectReason = "UNDERPAYMENT"
)

// VerificationResult is the outcome of inspecting a transaction receipt for a
// qualifying token transfer. A rejection is a normal result, not an error;
// only transport-level failures surface as errors from VerifyTransfer.
type VerificationResult struct {
	Verified bool
	Reason   RejectReason
	// Detail is a human-readable elaboration of the rejection.
	Detail string

	// Set only when Verified. Both are derived from the on-chain log, never
	// from anything the client claimed.
	Payer  string
	Amount *big.Int
}

func rejected(reason RejectReason, detail string) VerificationResult {
	return VerificationResult{Reason: reason, Detail: detail}
}

// ReceiptFetcher fetches a transaction's confirmation receipt. A nil receipt
// with a nil error means the transaction is unknown or not yet confirmed.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// Verifier checks that a transaction carries a token transfer of at least a
// minimum amount to an expected recipient.
type Verifier struct {
	fetcher      ReceiptFetcher
	tokenAddress string
	collector    string
}

// NewVerifier creates a Verifier bound to a token contract and collector
// address. Both are compared case-insensitively against receipt logs.
func NewVerifier(fetcher ReceiptFetcher, tokenAddress, collector string) *Verifier {
	return &Verifier{
		fetcher:      fetcher,
		tokenAddress: strings.ToLower(tokenAddress),
		collector:    strings.ToLower(collector),
	}
}

// VerifyTransfer confirms on-chain that txHash transferred at least minAmount
// of the token to the collector. The first log emitted by the token contract
// with a Transfer signature and the collector as recipient is authoritative;
// later transfers in the same transaction are never considered.
func (v *Verifier) VerifyTransfer(ctx context.Context, txHash string, minAmount *big.Int) (VerificationResult, error) {
	if !IsTxHash(txHash) {
		return rejected(ReasonMalformedHash, "invalid transaction hash format"), nil
	}

	receipt, err := v.fetcher.TransactionReceipt(ctx, txHash)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil {
		return rejected(ReasonNotFound, "transaction not found or not yet confirmed"), nil
	}
	if !receipt.Succeeded() {
		return rejected(ReasonChainFailure, "transaction failed on-chain"), nil
	}

	for _, log := range receipt.Logs {
		if strings.ToLower(log.Address) != v.tokenAddress {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != TransferTopic {
			continue
		}
		recipient := topicAddress(log.Topics[2])
		if recipient == "" || strings.ToLower(recipient) != v.collector {
			continue
		}

		amount, ok := new(big.Int).SetString(strings.TrimPrefix(log.Data, "0x"), 16)
		if !ok {
			continue
		}
		if amount.Cmp(minAmount) < 0 {
			return rejected(ReasonUnderpayment,
				fmt.Sprintf("expected at least %s but got %s", minAmount, amount)), nil
		}

		payer := strings.ToLower(topicAddress(log.Topics[1]))
		slog.Info("Verified on-chain payment",
			"txHash", txHash,
			"payer", payer,
			"amount", amount.String())

		return VerificationResult{Verified: true, Payer: payer, Amount: amount}, nil
	}

	return rejected(ReasonNoQualifyingTransfer,
		fmt.Sprintf("no token transfer to %s found in this transaction", v.collector)), nil
}
