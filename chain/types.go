package chain

import (
	"regexp"
	"strings"
)

// TransferTopic is the keccak-256 hash of the ERC-20 event signature
// Transfer(address indexed from, address indexed to, uint256 value).
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// receiptStatusSuccess is the quantity-encoded success status in a receipt.
const receiptStatusSuccess = "0x1"

var (
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex transaction hash.
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// Log is a single event log emitted during transaction execution, as
// returned by eth_getTransactionReceipt. Topics[0] is the event signature
// hash; indexed address parameters are padded to 32 bytes.
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// Receipt is the confirmed execution record of a transaction. A transaction
// that is unknown or not yet mined has no receipt at all, which is distinct
// from a receipt with a failure status.
type Receipt struct {
	Status string `json:"status"`
	Logs   []Log  `json:"logs"`
}

// Succeeded reports whether the transaction executed successfully on-chain.
func (r *Receipt) Succeeded() bool {
	return r.Status == receiptStatusSuccess
}

// topicAddress extracts the 20-byte address encoded in a 32-byte topic slot.
// Returns "" if the topic is not a full 32-byte hex word.
func topicAddress(topic string) string {
	if len(topic) != 66 || !strings.HasPrefix(topic, "0x") {
		return ""
	}
	return "0x" + topic[26:]
}
