package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Client is a minimal JSON-RPC 2.0 client for the chain's RPC node.
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64
}

func NewClient(rpcURL string) *Client {
	return &Client{
		url: rpcURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and unmarshals the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("rpc %s: read response: %w", method, err)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("rpc %s: malformed response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc %s: node error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("rpc %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetLatestBlockhash fetches the blockhash new transactions must reference.
func (c *Client) GetLatestBlockhash(ctx context.Context) ([32]byte, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	var hash [32]byte
	if err := c.call(ctx, "getLatestBlockhash", nil, &result); err != nil {
		return hash, err
	}
	raw := base58.Decode(result.Value.Blockhash)
	if len(raw) != 32 {
		return hash, fmt.Errorf("node returned malformed blockhash %q", result.Value.Blockhash)
	}
	copy(hash[:], raw)
	return hash, nil
}

// SendTransaction broadcasts a fully signed transaction and returns its
// signature identifier.
func (c *Client) SendTransaction(ctx context.Context, serialized []byte) (string, error) {
	var sig string
	err := c.call(ctx, "sendTransaction",
		[]any{base64.StdEncoding.EncodeToString(serialized), map[string]any{"encoding": "base64"}},
		&sig)
	return sig, err
}

// TxStatus is the confirmation state of a submitted transaction. A nil
// status from GetTxStatus means the node has not seen the signature yet,
// which is distinct from a confirmed failure.
type TxStatus struct {
	Slot      uint64 `json:"slot"`
	Confirmed bool   `json:"confirmed"`
	Err       string `json:"err,omitempty"`
}

func (c *Client) GetTxStatus(ctx context.Context, signature string) (*TxStatus, error) {
	var result struct {
		Value []*struct {
			Slot               uint64 `json:"slot"`
			ConfirmationStatus string `json:"confirmationStatus"`
			Err                any    `json:"err"`
		} `json:"value"`
	}
	err := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return nil, nil
	}
	entry := result.Value[0]
	status := &TxStatus{
		Slot:      entry.Slot,
		Confirmed: entry.ConfirmationStatus == "confirmed" || entry.ConfirmationStatus == "finalized",
	}
	if entry.Err != nil {
		errJSON, _ := json.Marshal(entry.Err)
		status.Err = string(errJSON)
	}
	return status, nil
}

// AwaitConfirmation polls until the transaction confirms, fails, or the
// context expires.
func (c *Client) AwaitConfirmation(ctx context.Context, signature string) (*TxStatus, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		status, err := c.GetTxStatus(ctx, signature)
		if err != nil {
			return nil, err
		}
		if status != nil {
			if status.Err != "" {
				return status, fmt.Errorf("transaction %s failed on chain: %s", signature, status.Err)
			}
			if status.Confirmed {
				return status, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetBalance returns an address's native balance in base units.
func (c *Client) GetBalance(ctx context.Context, addr Address) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	err := c.call(ctx, "getBalance", []any{addr.String()}, &result)
	return result.Value, err
}

// GetTokenBalance returns a token account's balance in base units.
func (c *Client) GetTokenBalance(ctx context.Context, tokenAccount Address) (uint64, error) {
	var result struct {
		Value struct {
			Amount string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountBalance", []any{tokenAccount.String()}, &result); err != nil {
		return 0, err
	}
	var amount uint64
	if _, err := fmt.Sscanf(result.Value.Amount, "%d", &amount); err != nil {
		return 0, fmt.Errorf("malformed token amount %q", result.Value.Amount)
	}
	return amount, nil
}

// AccountExists reports whether an account has been created on chain.
func (c *Client) AccountExists(ctx context.Context, addr Address) (bool, error) {
	var result struct {
		Value *struct {
			Lamports uint64 `json:"lamports"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", []any{addr.String()}, &result); err != nil {
		return false, err
	}
	return result.Value != nil, nil
}

// Healthcheck logs connectivity at startup; failure is non-fatal because
// the server degrades to off-chain-only mode.
func (c *Client) Healthcheck(ctx context.Context) error {
	var version struct {
		Core string `json:"core"`
	}
	if err := c.call(ctx, "getVersion", nil, &version); err != nil {
		return err
	}
	log.Printf("[Chain] Connected to RPC node (core %s)", version.Core)
	return nil
}
