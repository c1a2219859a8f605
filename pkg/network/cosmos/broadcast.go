// pkg/network/cosmos/broadcast.go
package cosmos

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// broadcastRequest is the body of POST /cosmos/tx/v1beta1/txs.
type broadcastRequest struct {
	TxBytes string `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

// txResponse mirrors sdk.TxResponse as rendered by the gateway.
// 64-bit integers arrive as strings.
type txResponse struct {
	Height    string `json:"height"`
	TxHash    string `json:"txhash"`
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	RawLog    string `json:"raw_log"`
	GasUsed   string `json:"gas_used"`
}

type broadcastResponse struct {
	TxResponse *txResponse `json:"tx_response"`
}

type getTxResponse struct {
	TxResponse *txResponse `json:"tx_response"`
}

func (r *txResponse) toResult(fallbackHash string, mode network.BroadcastMode) *network.BroadcastResult {
	hash := strings.ToUpper(r.TxHash)
	if hash == "" {
		hash = fallbackHash
	}
	height, _ := strconv.ParseInt(r.Height, 10, 64)
	result := network.NewBroadcastResult(r.Code, r.Codespace, r.RawLog, hash, height, mode)
	result.GasUsed, _ = strconv.ParseInt(r.GasUsed, 10, 64)
	return result
}

// gatewayMode maps a broadcast mode onto the gateway's enum. Block mode is
// submitted as sync and completed by polling, since current nodes no longer
// accept BROADCAST_MODE_BLOCK.
func gatewayMode(mode network.BroadcastMode) string {
	if mode == network.BroadcastModeAsync {
		return "BROADCAST_MODE_ASYNC"
	}
	return "BROADCAST_MODE_SYNC"
}

// Broadcast submits txBytes. A non-zero CheckTx or DeliverTx code is
// returned as a result, not an error.
func (c *RESTClient) Broadcast(ctx context.Context, txBytes []byte, mode network.BroadcastMode) (*network.BroadcastResult, error) {
	txHash := TxHash(txBytes)

	payload, err := json.Marshal(broadcastRequest{
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
		Mode:    gatewayMode(mode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal broadcast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/cosmos/tx/v1beta1/txs", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &network.NetworkError{Operation: "broadcast", Endpoint: c.endpoint, TxHash: txHash, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &network.NetworkError{Operation: "broadcast", Endpoint: c.endpoint, TxHash: txHash, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &network.NetworkError{
			Operation: "broadcast",
			Endpoint:  c.endpoint,
			TxHash:    txHash,
			Err:       fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body)),
		}
	}

	var bcResp broadcastResponse
	if err := json.Unmarshal(body, &bcResp); err != nil || bcResp.TxResponse == nil {
		if err == nil {
			err = errMissingTxResponse
		}
		return nil, &network.NetworkError{
			Operation: "broadcast",
			Endpoint:  c.endpoint,
			TxHash:    txHash,
			Err:       fmt.Errorf("failed to parse broadcast response: %w", err),
		}
	}

	result := bcResp.TxResponse.toResult(txHash, mode)
	if mode != network.BroadcastModeBlock || !result.Success {
		return result, nil
	}
	return awaitInclusion(ctx, c.QueryTx, result.TxHash, c.pollInterval, c.blockTimeout)
}

// QueryTx looks up a tx by hash. Returns *network.TxNotFoundError while the
// node has not indexed it.
func (c *RESTClient) QueryTx(ctx context.Context, txHash string) (*network.BroadcastResult, error) {
	if txHash == "" {
		return nil, &network.InvalidFormatError{Input: txHash, Reason: "tx hash is required"}
	}

	reqURL := fmt.Sprintf("%s/cosmos/tx/v1beta1/txs/%s", c.endpoint, url.PathEscape(txHash))
	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, &network.NetworkError{Operation: "tx query", Endpoint: c.endpoint, TxHash: txHash, Err: err}
	}
	if isNotFound(status, body) {
		return nil, &network.TxNotFoundError{TxHash: txHash}
	}
	if status != http.StatusOK {
		return nil, &network.NetworkError{
			Operation: "tx query",
			Endpoint:  c.endpoint,
			TxHash:    txHash,
			Err:       fmt.Errorf("unexpected status code %d: %s", status, string(body)),
		}
	}

	var txResp getTxResponse
	if err := json.Unmarshal(body, &txResp); err != nil || txResp.TxResponse == nil {
		if err == nil {
			err = errMissingTxResponse
		}
		return nil, &network.NetworkError{
			Operation: "tx query",
			Endpoint:  c.endpoint,
			TxHash:    txHash,
			Err:       fmt.Errorf("failed to parse tx response: %w", err),
		}
	}

	return txResp.TxResponse.toResult(strings.ToUpper(txHash), network.BroadcastModeBlock), nil
}

var errMissingTxResponse = errors.New("missing tx_response")

type txQueryFunc func(ctx context.Context, txHash string) (*network.BroadcastResult, error)

// awaitInclusion polls query until the tx is indexed. Once the node accepted
// the tx, giving up for any reason yields *network.OutcomeUnknownError.
func awaitInclusion(ctx context.Context, query txQueryFunc, txHash string, interval, timeout time.Duration) (*network.BroadcastResult, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return nil, &network.OutcomeUnknownError{TxHash: txHash, Err: ctx.Err()}
		case <-deadline.C:
			err := fmt.Errorf("not included within %s", timeout)
			if lastErr != nil {
				err = fmt.Errorf("%w (last query error: %v)", err, lastErr)
			}
			return nil, &network.OutcomeUnknownError{TxHash: txHash, Err: err}
		case <-ticker.C:
			result, err := query(ctx, txHash)
			if err == nil {
				result.Mode = network.BroadcastModeBlock
				if result.TxHash == "" {
					result.TxHash = txHash
				}
				return result, nil
			}
			if !errors.Is(err, network.ErrTxNotFound) {
				lastErr = err
			}
		}
	}
}
