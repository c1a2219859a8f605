// cmd/txpipe/node.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Show the node behind the RPC endpoint",
		Long: `Node queries status and abci_info over CometBFT RPC. When a chain id is
configured, it also checks that the node serves that chain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Endpoints.RPC == "" {
				return &network.ConfigError{Field: "endpoints.rpc", Message: "an rpc endpoint is required"}
			}
			client, err := cosmos.NewRPCClient(cosmos.ClientConfig{Endpoint: cfg.Endpoints.RPC})
			if err != nil {
				return err
			}

			info, err := client.NodeInfo(cmd.Context())
			if err != nil {
				return err
			}

			logger := output.DefaultLogger
			if logger.IsJSONMode() {
				if err := logger.JSON(info); err != nil {
					return err
				}
			} else {
				logger.Bold("%s", info.Moniker)
				logger.Field("chain id", info.ChainID)
				logger.Field("height", info.LatestHeight)
				logger.Field("node", info.NodeVersion)
				logger.Field("app", info.AppVersion)
				if info.CatchingUp {
					logger.Warn("node is catching up; account sequences may be stale")
				}
			}

			if cfg.Chain.ID != "" {
				return info.MatchChain(client.Endpoint(), cfg.Chain.ID)
			}
			return nil
		},
	}
	return cmd
}
