package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentfails/agentfails-api/pkg/monitoring"
)

// Client is a minimal JSON-RPC client for the chain endpoint. It performs a
// single round-trip per call and holds no state beyond the shared HTTP client.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates a new chain RPC client.
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type receiptResponse struct {
	Result *Receipt  `json:"result"`
	Error  *rpcError `json:"error"`
}

// TransactionReceipt fetches the confirmation receipt for txHash.
// It returns (nil, nil) when the transaction is unknown or not yet mined.
// Any transport problem, non-2xx response, RPC-level error, or response that
// does not decode into the expected shape is returned as an error, never as
// an absent receipt.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	start := time.Now()
	receipt, err := c.fetchReceipt(ctx, txHash)
	monitoring.RecordExternalCall(ctx, "chain_rpc", "eth_getTransactionReceipt", time.Since(start), err)
	return receipt, err
}

func (c *Client) fetchReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_getTransactionReceipt",
		Params:  []any{txHash},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var decoded receiptResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	return decoded.Result, nil
}
