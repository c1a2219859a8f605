// cmd/txpipe/tx.go
package main

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txpipe/internal/journal"
	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/internal/pipeline"
	"github.com/altuslabsxyz/txpipe/pkg/network"
)

type txResult struct {
	*network.BroadcastResult
	AttemptID string `json:"attempt_id,omitempty"`
	Settled   bool   `json:"journal_updated,omitempty"`
}

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx <hash>",
		Short:   "Query a transaction and settle its journal record",
		Aliases: []string{"status"},
		Long: `Tx looks up a transaction by hash. When the journal holds an attempt for
the hash whose outcome was unknown, the attempt is updated with the ledger's
answer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTx(cmd, strings.ToUpper(strings.TrimSpace(args[0])))
		},
	}
	return cmd
}

func runTx(cmd *cobra.Command, hash string) error {
	ctx := cmd.Context()

	clients, err := pipeline.Dial(endpoints(cfg))
	if err != nil {
		return err
	}
	defer clients.Close()

	var j journal.Journal
	if cfg.Journal.Enabled {
		bj, err := journal.OpenBolt(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer bj.Close()
		j = bj
	}

	r, err := pipeline.Reconcile(ctx, clients.Broadcaster, j, hash)
	if err != nil && r == nil {
		return err
	}
	if err != nil {
		output.Warn("journal update failed: %v", err)
	}

	res := txResult{BroadcastResult: r.Result, Settled: r.Updated}
	if r.Record != nil {
		res.AttemptID = r.Record.ID
	}

	logger := output.DefaultLogger
	if logger.IsJSONMode() {
		return logger.JSON(res)
	}

	if r.Result.Success {
		logger.Success("Transaction %s succeeded", hash)
	} else {
		color.New(color.FgRed).Fprintf(logger.Writer(), "✗ Transaction %s failed\n", hash)
	}
	logger.Field("height", r.Result.Height)
	logger.Field("code", r.Result.Code)
	if r.Result.Codespace != "" {
		logger.Field("codespace", r.Result.Codespace)
	}
	if r.Result.GasUsed > 0 {
		logger.Field("gas used", r.Result.GasUsed)
	}
	if r.Result.RawLog != "" && !r.Result.Success {
		logger.Field("log", r.Result.RawLog)
	}
	if r.Record != nil {
		logger.Field("attempt", r.Record.ID)
		if r.Updated {
			logger.Field("journal", "settled as "+r.Record.State)
		}
	}
	return nil
}
