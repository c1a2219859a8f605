// pkg/network/cosmos/broadcast_rpc_test.go
package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// rpcHandler dispatches JSON-RPC calls by method name.
func rpcHandler(t *testing.T, results map[string]func(params map[string]string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BroadcastRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "2.0", req.JSONRPC)

		fn, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,%s}`, req.ID, fn(req.Params))
	}
}

func newTestRPCClient(t *testing.T, handler http.HandlerFunc) *RPCClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewRPCClient(ClientConfig{
		Endpoint:     server.URL,
		PollInterval: 10 * time.Millisecond,
		BlockTimeout: time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestRPCBroadcast_Sync(t *testing.T) {
	hash := TxHash(testTxBytes)
	client := newTestRPCClient(t, rpcHandler(t, map[string]func(map[string]string) string{
		"broadcast_tx_sync": func(params map[string]string) string {
			require.Equal(t, base64.StdEncoding.EncodeToString(testTxBytes), params["tx"])
			return fmt.Sprintf(`"result":{"code":0,"data":"","log":"","codespace":"","hash":%q}`, hash)
		},
	}))

	result, err := client.Broadcast(context.Background(), testTxBytes, network.BroadcastModeSync)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, hash, result.TxHash)
}

func TestRPCBroadcast_Commit(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		wantCode uint32
		wantH    int64
	}{
		{
			name:     "tx_result",
			result:   `{"check_tx":{"code":0},"tx_result":{"code":0,"gas_used":"5000"},"hash":"AA","height":"77"}`,
			wantCode: 0,
			wantH:    77,
		},
		{
			name:     "legacy deliver_tx",
			result:   `{"check_tx":{"code":0},"deliver_tx":{"code":5,"codespace":"bank","log":"insufficient funds"},"hash":"AA","height":"78"}`,
			wantCode: 5,
			wantH:    78,
		},
		{
			name:     "check_tx failure",
			result:   `{"check_tx":{"code":32,"codespace":"sdk","log":"incorrect account sequence"},"tx_result":{"code":0},"hash":"AA","height":"0"}`,
			wantCode: 32,
			wantH:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestRPCClient(t, rpcHandler(t, map[string]func(map[string]string) string{
				"broadcast_tx_commit": func(map[string]string) string { return `"result":` + tt.result },
			}))

			result, err := client.Broadcast(context.Background(), testTxBytes, network.BroadcastModeBlock)
			require.NoError(t, err)
			require.Equal(t, tt.wantCode, result.Code)
			require.Equal(t, tt.wantH, result.Height)
			require.Equal(t, "AA", result.TxHash)
		})
	}
}

func TestRPCBroadcast_CommitTimeoutFallsBackToPolling(t *testing.T) {
	hash := TxHash(testTxBytes)
	client := newTestRPCClient(t, rpcHandler(t, map[string]func(map[string]string) string{
		"broadcast_tx_commit": func(map[string]string) string {
			return `"error":{"code":-32603,"message":"Internal error","data":"timed out waiting for tx to be included in a block"}`
		},
		"tx": func(params map[string]string) string {
			hashBytes, _ := hex.DecodeString(hash)
			require.Equal(t, base64.StdEncoding.EncodeToString(hashBytes), params["hash"])
			return fmt.Sprintf(`"result":{"hash":%q,"height":"90","tx_result":{"code":0,"gas_used":"1"}}`, hash)
		},
	}))

	result, err := client.Broadcast(context.Background(), testTxBytes, network.BroadcastModeBlock)
	require.NoError(t, err)
	require.Equal(t, int64(90), result.Height)
}

func TestRPCQueryTx_NotFound(t *testing.T) {
	client := newTestRPCClient(t, rpcHandler(t, map[string]func(map[string]string) string{
		"tx": func(map[string]string) string {
			return `"error":{"code":-32603,"message":"Internal error","data":"tx (ABCD) not found"}`
		},
	}))

	_, err := client.QueryTx(context.Background(), "ABCD")
	require.ErrorIs(t, err, network.ErrTxNotFound)

	_, err = client.QueryTx(context.Background(), "not-hex")
	require.ErrorIs(t, err, network.ErrInvalidFormat)
}

func TestRPCBroadcast_RPCErrorIsNetwork(t *testing.T) {
	client := newTestRPCClient(t, rpcHandler(t, map[string]func(map[string]string) string{
		"broadcast_tx_sync": func(map[string]string) string {
			return `"error":{"code":-32603,"message":"Internal error","data":"tx already exists in cache"}`
		},
	}))

	_, err := client.Broadcast(context.Background(), testTxBytes, network.BroadcastModeSync)
	require.True(t, network.IsNetwork(err))
	require.Contains(t, err.Error(), "tx already exists in cache")
}

func TestRPCNodeInfo(t *testing.T) {
	client := newTestRPCClient(t, rpcHandler(t, map[string]func(map[string]string) string{
		"status": func(map[string]string) string {
			return `"result":{"node_info":{"network":"test-1","moniker":"val0","version":"0.38.17"},"sync_info":{"latest_block_height":"1200","catching_up":false}}`
		},
		"abci_info": func(map[string]string) string {
			return `"result":{"response":{"version":"v0.53.4","last_block_height":"1200"}}`
		},
	}))

	info, err := client.NodeInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test-1", info.ChainID)
	require.Equal(t, "v0.53.4", info.AppVersion)
	require.Equal(t, int64(1200), info.LatestHeight)

	require.NoError(t, client.VerifyChainID(context.Background(), "test-1"))
	require.ErrorIs(t, client.VerifyChainID(context.Background(), "other-1"), network.ErrConfig)
}
