// pkg/network/cosmos/broadcast_grpc.go
package cosmos

import (
	"context"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

func grpcMode(mode network.BroadcastMode) txtypes.BroadcastMode {
	if mode == network.BroadcastModeAsync {
		return txtypes.BroadcastMode_BROADCAST_MODE_ASYNC
	}
	return txtypes.BroadcastMode_BROADCAST_MODE_SYNC
}

func resultFromTxResponse(r *sdk.TxResponse, fallbackHash string, mode network.BroadcastMode) *network.BroadcastResult {
	hash := strings.ToUpper(r.TxHash)
	if hash == "" {
		hash = fallbackHash
	}
	result := network.NewBroadcastResult(r.Code, r.Codespace, r.RawLog, hash, r.Height, mode)
	result.GasUsed = r.GasUsed
	return result
}

// Broadcast submits txBytes through the tx service. Block mode is a sync
// submission followed by polling GetTx.
func (c *GRPCClient) Broadcast(ctx context.Context, txBytes []byte, mode network.BroadcastMode) (*network.BroadcastResult, error) {
	txHash := TxHash(txBytes)

	res, err := c.txClient.BroadcastTx(ctx, &txtypes.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    grpcMode(mode),
	})
	if err != nil {
		return nil, &network.NetworkError{Operation: "broadcast", Endpoint: c.target, TxHash: txHash, Err: err}
	}
	if res.TxResponse == nil {
		return nil, &network.NetworkError{Operation: "broadcast", Endpoint: c.target, TxHash: txHash, Err: errMissingTxResponse}
	}

	result := resultFromTxResponse(res.TxResponse, txHash, mode)
	if mode != network.BroadcastModeBlock || !result.Success {
		return result, nil
	}
	return awaitInclusion(ctx, c.QueryTx, result.TxHash, c.pollInterval, c.blockTimeout)
}

// QueryTx looks up a tx by hash through GetTx.
func (c *GRPCClient) QueryTx(ctx context.Context, txHash string) (*network.BroadcastResult, error) {
	if txHash == "" {
		return nil, &network.InvalidFormatError{Input: txHash, Reason: "tx hash is required"}
	}

	res, err := c.txClient.GetTx(ctx, &txtypes.GetTxRequest{Hash: txHash})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &network.TxNotFoundError{TxHash: txHash}
		}
		return nil, &network.NetworkError{Operation: "tx query", Endpoint: c.target, TxHash: txHash, Err: err}
	}
	if res.TxResponse == nil {
		return nil, &network.NetworkError{Operation: "tx query", Endpoint: c.target, TxHash: txHash, Err: errMissingTxResponse}
	}
	return resultFromTxResponse(res.TxResponse, strings.ToUpper(txHash), network.BroadcastModeBlock), nil
}
