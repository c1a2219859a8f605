// pkg/network/cosmos/broadcast_rpc.go
package cosmos

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// BroadcastRequest is a CometBFT JSON-RPC request.
type BroadcastRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int64             `json:"id"`
	Method  string            `json:"method"`
	Params  map[string]string `json:"params"`
}

// BroadcastResponse is a CometBFT JSON-RPC response envelope.
type BroadcastResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// checkTxResult is the result of broadcast_tx_sync and broadcast_tx_async.
type checkTxResult struct {
	Code      uint32 `json:"code"`
	Data      string `json:"data"`
	Log       string `json:"log"`
	Codespace string `json:"codespace"`
	Hash      string `json:"hash"`
}

type execTxResult struct {
	Code      uint32 `json:"code"`
	Log       string `json:"log"`
	Codespace string `json:"codespace"`
	GasUsed   string `json:"gas_used"`
}

// commitResult is the result of broadcast_tx_commit. CometBFT 0.38 renamed
// deliver_tx to tx_result; both are accepted.
type commitResult struct {
	CheckTx   execTxResult  `json:"check_tx"`
	TxResult  *execTxResult `json:"tx_result"`
	DeliverTx *execTxResult `json:"deliver_tx"`
	Hash      string        `json:"hash"`
	Height    string        `json:"height"`
}

// txQueryResult is the result of the tx method.
type txQueryResult struct {
	Hash     string       `json:"hash"`
	Height   string       `json:"height"`
	TxResult execTxResult `json:"tx_result"`
}

// RPCClient talks to a CometBFT node's JSON-RPC endpoint.
type RPCClient struct {
	endpoint     string
	client       *http.Client
	pollInterval time.Duration
	blockTimeout time.Duration
	nextID       atomic.Int64
}

var _ network.Broadcaster = (*RPCClient)(nil)

// NewRPCClient creates a CometBFT RPC transport.
func NewRPCClient(cfg ClientConfig) (*RPCClient, error) {
	if cfg.Endpoint == "" {
		return nil, &network.ConfigError{Field: "endpoints.rpc", Message: "RPC endpoint is required"}
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, &network.ConfigError{Field: "endpoints.rpc", Message: err.Error()}
	}
	cfg = cfg.withDefaults()

	return &RPCClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		client:       cfg.HTTPClient,
		pollInterval: cfg.PollInterval,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Endpoint returns the configured RPC URL.
func (c *RPCClient) Endpoint() string {
	return c.endpoint
}

// call performs a JSON-RPC call and decodes the result into out.
// Transport failures are returned as is; RPC-level failures as *RPCError.
func (c *RPCClient) call(ctx context.Context, method string, params map[string]string, out any) error {
	if params == nil {
		params = map[string]string{}
	}
	payload, err := json.Marshal(BroadcastRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp BroadcastResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", method, err)
	}
	return nil
}

// Broadcast submits txBytes through broadcast_tx_sync, _async or _commit.
// If the node's commit wait times out, inclusion is polled for instead.
func (c *RPCClient) Broadcast(ctx context.Context, txBytes []byte, mode network.BroadcastMode) (*network.BroadcastResult, error) {
	txHash := TxHash(txBytes)
	params := map[string]string{"tx": base64.StdEncoding.EncodeToString(txBytes)}

	switch mode {
	case network.BroadcastModeSync, network.BroadcastModeAsync:
		var res checkTxResult
		if err := c.call(ctx, "broadcast_tx_"+string(mode), params, &res); err != nil {
			return nil, &network.NetworkError{Operation: "broadcast", Endpoint: c.endpoint, TxHash: txHash, Err: err}
		}
		hash := strings.ToUpper(res.Hash)
		if hash == "" {
			hash = txHash
		}
		return network.NewBroadcastResult(res.Code, res.Codespace, res.Log, hash, 0, mode), nil

	case network.BroadcastModeBlock:
		var res commitResult
		err := c.call(ctx, "broadcast_tx_commit", params, &res)
		if err != nil {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) && strings.Contains(rpcErr.Data, "timed out") {
				return awaitInclusion(ctx, c.QueryTx, txHash, c.pollInterval, c.blockTimeout)
			}
			if ctx.Err() != nil {
				return nil, &network.OutcomeUnknownError{TxHash: txHash, Err: err}
			}
			return nil, &network.NetworkError{Operation: "broadcast", Endpoint: c.endpoint, TxHash: txHash, Err: err}
		}
		return res.toResult(txHash), nil

	default:
		return nil, &network.ConfigError{Field: "broadcast_mode", Message: fmt.Sprintf("unsupported mode %q", mode)}
	}
}

func (r *commitResult) toResult(fallbackHash string) *network.BroadcastResult {
	hash := strings.ToUpper(r.Hash)
	if hash == "" {
		hash = fallbackHash
	}
	height, _ := strconv.ParseInt(r.Height, 10, 64)

	// A failed CheckTx means the tx never reached a block.
	if r.CheckTx.Code != 0 {
		return network.NewBroadcastResult(r.CheckTx.Code, r.CheckTx.Codespace, r.CheckTx.Log, hash, 0, network.BroadcastModeBlock)
	}

	exec := r.TxResult
	if exec == nil {
		exec = r.DeliverTx
	}
	if exec == nil {
		exec = &r.CheckTx
	}
	result := network.NewBroadcastResult(exec.Code, exec.Codespace, exec.Log, hash, height, network.BroadcastModeBlock)
	result.GasUsed, _ = strconv.ParseInt(exec.GasUsed, 10, 64)
	return result
}

// QueryTx looks up a tx by hash through the tx method.
func (c *RPCClient) QueryTx(ctx context.Context, txHash string) (*network.BroadcastResult, error) {
	hashBytes, err := hex.DecodeString(txHash)
	if err != nil || len(hashBytes) == 0 {
		return nil, &network.InvalidFormatError{Input: txHash, Reason: "tx hash must be hex"}
	}

	var res txQueryResult
	params := map[string]string{"hash": base64.StdEncoding.EncodeToString(hashBytes)}
	if err := c.call(ctx, "tx", params, &res); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && strings.Contains(rpcErr.Data, "not found") {
			return nil, &network.TxNotFoundError{TxHash: txHash}
		}
		return nil, &network.NetworkError{Operation: "tx query", Endpoint: c.endpoint, TxHash: txHash, Err: err}
	}

	hash := strings.ToUpper(res.Hash)
	if hash == "" {
		hash = strings.ToUpper(txHash)
	}
	height, _ := strconv.ParseInt(res.Height, 10, 64)
	result := network.NewBroadcastResult(res.TxResult.Code, res.TxResult.Codespace, res.TxResult.Log, hash, height, network.BroadcastModeBlock)
	result.GasUsed, _ = strconv.ParseInt(res.TxResult.GasUsed, 10, 64)
	return result, nil
}
