// cmd/txpipe/account.go
package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/internal/pipeline"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

type accountResult struct {
	Address       string `json:"address"`
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
	PubKey        string `json:"pub_key,omitempty"`
	Type          string `json:"type,omitempty"`
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account [address]",
		Short: "Show the account number and sequence of an address",
		Long: `Account resolves an address on chain. Without an argument it shows the
configured sender.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := cfg.Signer.Address
			if len(args) == 1 {
				address = args[0]
			}
			if address == "" {
				return &network.ConfigError{Field: "address", Message: "pass an address or set signer.address"}
			}
			return runAccount(cmd, address)
		},
	}
	return cmd
}

func runAccount(cmd *cobra.Command, address string) error {
	codec, err := cosmos.NewAddressCodec(cfg.Chain.Prefix)
	if err != nil {
		return err
	}
	if _, err := codec.Decode(address); err != nil {
		return err
	}

	clients, err := pipeline.Dial(endpoints(cfg))
	if err != nil {
		return err
	}
	defer clients.Close()

	acct, err := clients.Resolver.Resolve(cmd.Context(), address)
	if err != nil {
		return err
	}

	res := accountResult{
		Address:       address,
		AccountNumber: acct.AccountNumber,
		Sequence:      acct.Sequence,
		Type:          acct.Type,
	}
	if len(acct.PubKey) > 0 {
		res.PubKey = hex.EncodeToString(acct.PubKey)
	}

	logger := output.DefaultLogger
	if logger.IsJSONMode() {
		return logger.JSON(res)
	}
	logger.Bold("%s", res.Address)
	logger.Field("account number", res.AccountNumber)
	logger.Field("sequence", res.Sequence)
	if res.Type != "" {
		logger.Field("type", res.Type)
	}
	if res.PubKey != "" {
		logger.Field("pub key", res.PubKey)
	} else {
		logger.Field("pub key", "(not yet on chain)")
	}
	return nil
}
