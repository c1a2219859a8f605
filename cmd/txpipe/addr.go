// cmd/txpipe/addr.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

func newAddrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addr <address> <prefix>",
		Short: "Re-encode an address with another bech32 prefix",
		Example: `  txpipe addr cosmos1qy352eufqy352eufqy352eufqy352euf7tmm3x osmo
  txpipe addr cosmos1qy352eufqy352eufqy352eufqy352euf7tmm3x cosmosvaloper`,
		Args: cobra.ExactArgs(2),
		Annotations: map[string]string{
			skipConfig: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cosmos.NewAddressCodec(args[1])
			if err != nil {
				return err
			}
			addr, err := codec.Reencode(args[0])
			if err != nil {
				return err
			}

			logger := output.DefaultLogger
			if logger.IsJSONMode() {
				return logger.JSON(map[string]string{"address": addr})
			}
			logger.Println("%s", addr)
			return nil
		},
	}
	return cmd
}
