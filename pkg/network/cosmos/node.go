// pkg/network/cosmos/node.go
package cosmos

import (
	"context"
	"fmt"
	"strconv"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// NodeInfo summarizes the node behind an RPC endpoint.
type NodeInfo struct {
	ChainID      string `json:"chain_id"`
	Moniker      string `json:"moniker"`
	NodeVersion  string `json:"node_version"`
	AppVersion   string `json:"app_version"`
	LatestHeight int64  `json:"latest_height"`
	CatchingUp   bool   `json:"catching_up"`
}

type statusResult struct {
	NodeInfo struct {
		Network string `json:"network"`
		Moniker string `json:"moniker"`
		Version string `json:"version"`
	} `json:"node_info"`
	SyncInfo struct {
		LatestBlockHeight string `json:"latest_block_height"`
		CatchingUp        bool   `json:"catching_up"`
	} `json:"sync_info"`
}

// abciInfoResult represents the ABCI info response from a Cosmos node.
type abciInfoResult struct {
	Response struct {
		Version         string `json:"version"`
		AppVersion      string `json:"app_version"`
		LastBlockHeight string `json:"last_block_height"`
		Data            string `json:"data"`
	} `json:"response"`
}

// NodeInfo queries status and abci_info.
func (c *RPCClient) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	var status statusResult
	if err := c.call(ctx, "status", nil, &status); err != nil {
		return nil, &network.NetworkError{Operation: "status query", Endpoint: c.endpoint, Err: err}
	}

	var abci abciInfoResult
	if err := c.call(ctx, "abci_info", nil, &abci); err != nil {
		return nil, &network.NetworkError{Operation: "abci_info query", Endpoint: c.endpoint, Err: err}
	}

	height, err := strconv.ParseInt(status.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return nil, &network.InvalidFormatError{Input: status.SyncInfo.LatestBlockHeight, Reason: "latest block height"}
	}

	return &NodeInfo{
		ChainID:      status.NodeInfo.Network,
		Moniker:      status.NodeInfo.Moniker,
		NodeVersion:  status.NodeInfo.Version,
		AppVersion:   abci.Response.Version,
		LatestHeight: height,
		CatchingUp:   status.SyncInfo.CatchingUp,
	}, nil
}

// VerifyChainID returns a *network.ConfigError when the node serves a
// different chain than expected.
func (c *RPCClient) VerifyChainID(ctx context.Context, expected string) error {
	info, err := c.NodeInfo(ctx)
	if err != nil {
		return err
	}
	return info.MatchChain(c.endpoint, expected)
}

// MatchChain returns a *network.ConfigError when info belongs to another
// chain than expected.
func (i *NodeInfo) MatchChain(endpoint, expected string) error {
	if i.ChainID != expected {
		return &network.ConfigError{
			Field:   "chain_id",
			Message: fmt.Sprintf("node at %s serves %q, expected %q", endpoint, i.ChainID, expected),
		}
	}
	return nil
}
