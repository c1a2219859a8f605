// cmd/txpipe/send.go
package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txpipe/internal/broker"
	"github.com/altuslabsxyz/txpipe/internal/journal"
	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/internal/pipeline"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

type sendOptions struct {
	from           string
	pubKey         string
	signerType     string
	keyName        string
	denom          string
	memo           string
	mode           string
	gas            uint64
	fees           string
	gasPrices      string
	yes            bool
	checkRecipient bool
	noJournal      bool
}

// sendResult is the JSON output of the send command.
type sendResult struct {
	AttemptID string `json:"attempt_id"`
	State     string `json:"state"`
	TxHash    string `json:"tx_hash,omitempty"`
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace,omitempty"`
	RawLog    string `json:"raw_log,omitempty"`
	Height    int64  `json:"height,omitempty"`
	GasUsed   int64  `json:"gas_used,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newSendCmd() *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send <recipient> <amount>",
		Short: "Sign and broadcast a token transfer",
		Long: `Send transfers <amount> of the configured denomination from the signer's
account to <recipient>.

The transaction is signed once and broadcast once. An error after broadcast
leaves the outcome unknown; query it with 'txpipe tx <hash>' before sending
again.`,
		Example: `  txpipe send cosmos1... 1000000 --memo "rent"
  txpipe send cosmos1... 250 --denom uosmo --signer keyring --key-name alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "", "Sender address (derived from keyring and key signers)")
	f.StringVar(&opts.pubKey, "pubkey", "", "Sender public key in hex (bridge signer)")
	f.StringVar(&opts.signerType, "signer", "", "Signer: bridge, keyring or key")
	f.StringVar(&opts.keyName, "key-name", "", "Keyring key name")
	f.StringVar(&opts.denom, "denom", "", "Transfer denomination")
	f.StringVar(&opts.memo, "memo", "", "Transaction memo")
	f.StringVar(&opts.mode, "mode", "", "Broadcast mode: block, sync or async")
	f.Uint64Var(&opts.gas, "gas", 0, "Gas limit")
	f.StringVar(&opts.fees, "fees", "", "Fee amount, e.g. 5000uatom")
	f.StringVar(&opts.gasPrices, "gas-prices", "", "Gas price, e.g. 0.025uatom")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation prompt")
	f.BoolVar(&opts.checkRecipient, "check-recipient", false, "Require the recipient to exist on chain")
	f.BoolVar(&opts.noJournal, "no-journal", false, "Do not record this attempt in the journal")

	return cmd
}

func runSend(cmd *cobra.Command, opts sendOptions, recipient, amount string) error {
	ctx := cmd.Context()
	logger := output.DefaultLogger
	f := cmd.Flags()

	if f.Changed("from") {
		cfg.Signer.Address = opts.from
	}
	if f.Changed("pubkey") {
		cfg.Signer.PubKey = opts.pubKey
	}
	if f.Changed("signer") {
		cfg.Signer.Type = opts.signerType
	}
	if f.Changed("key-name") {
		cfg.Signer.KeyName = opts.keyName
	}
	if f.Changed("denom") {
		cfg.Chain.Denom = opts.denom
	}
	if f.Changed("mode") {
		cfg.Broadcast.Mode = opts.mode
	}
	if f.Changed("gas") {
		cfg.Fee.GasLimit = opts.gas
	}
	if f.Changed("fees") {
		cfg.Fee.Amount = opts.fees
		cfg.Fee.GasPrice = ""
	}
	if f.Changed("gas-prices") {
		cfg.Fee.GasPrice = opts.gasPrices
		if !f.Changed("fees") {
			cfg.Fee.Amount = ""
		}
	}
	if err := requireChainID(cfg); err != nil {
		return err
	}

	codec, err := cosmos.NewAddressCodec(cfg.Chain.Prefix)
	if err != nil {
		return err
	}
	mode, err := network.ParseBroadcastMode(cfg.Broadcast.Mode)
	if err != nil {
		return err
	}
	fee, err := cosmos.NewFee(cfg.Fee.GasLimit, cfg.Fee.Amount, cfg.Fee.GasPrice)
	if err != nil {
		return err
	}

	confirm := cfg.Signer.Confirm && !opts.yes && !logger.IsJSONMode()
	snd, err := openSigner(cfg, codec, confirm)
	if err != nil {
		return err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithBroadcastMode(mode),
		pipeline.WithSignTimeout(cfg.Signer.Timeout),
		pipeline.WithRecipientCheck(opts.checkRecipient),
		pipeline.WithLogger(slog.Default()),
	}

	if cfg.Journal.Enabled && !opts.noJournal {
		j, err := journal.OpenBolt(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		pipeOpts = append(pipeOpts, pipeline.WithJournal(j))
	}

	b, err := broker.Open(ctx, cfg.Broker)
	if err != nil {
		return err
	}
	if b != nil {
		defer b.Close()
		pipeOpts = append(pipeOpts, pipeline.WithBroker(b))
	}

	spinner := output.NewStatusSpinner()
	if logger.IsJSONMode() {
		spinner = output.NewStatusSpinnerWithWriter(logger.ErrWriter(), false)
	}
	defer spinner.Stop()
	pipeOpts = append(pipeOpts, pipeline.WithStateHook(progressHook(spinner, mode)))

	logger.Info("Sending %s%s from %s to %s on %s", amount, cfg.Chain.Denom, snd.address, recipient, cfg.Chain.ID)

	req := pipeline.Request{
		ChainID:      cfg.Chain.ID,
		Prefix:       cfg.Chain.Prefix,
		Sender:       snd.address,
		SenderPubKey: snd.pubKey,
		Recipient:    recipient,
		Denom:        cfg.Chain.Denom,
		Amount:       amount,
		Memo:         opts.memo,
		Fee:          fee,
	}
	outcome, err := pipeline.Send(ctx, endpoints(cfg), req, snd.oracle, pipeOpts...)
	spinner.Stop()

	if outcome != nil && outcome.SideEffectErr != nil {
		logger.Warn("%v", outcome.SideEffectErr)
	}
	if logger.IsJSONMode() {
		if jerr := logger.JSON(newSendResult(outcome, err)); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		if outcome != nil && outcome.TxHash != "" {
			logger.Field("tx hash", outcome.TxHash)
		}
		return err
	}
	printSendOutcome(logger, outcome, mode)
	return nil
}

// progressHook drives the spinner from pipeline transitions. The spinner
// starts only after signing so it never overdraws the confirmation prompt.
func progressHook(spinner *output.StatusSpinner, mode network.BroadcastMode) func(pipeline.State) {
	return func(s pipeline.State) {
		switch s {
		case pipeline.StateAccountResolved:
			output.Debug("Sender account resolved")
		case pipeline.StateEnvelopeBuilt:
			output.Debug("Transaction built, waiting for signature")
		case pipeline.StateSigned:
			if mode == network.BroadcastModeBlock {
				spinner.Start("Broadcasting and waiting for inclusion...")
			} else {
				spinner.Start("Broadcasting...")
			}
		default:
			if s.IsTerminal() {
				spinner.Stop()
			}
		}
	}
}

func printSendOutcome(logger output.LoggerInterface, outcome *pipeline.Outcome, mode network.BroadcastMode) {
	res := outcome.Result
	switch {
	case mode == network.BroadcastModeBlock:
		logger.Success("Transfer included in block %d", res.Height)
	case mode == network.BroadcastModeSync:
		logger.Success("Transfer accepted into the mempool")
	default:
		logger.Success("Transfer submitted")
	}
	logger.Field("tx hash", outcome.TxHash)
	logger.Field("attempt", outcome.AttemptID)
	if res.GasUsed > 0 {
		logger.Field("gas used", res.GasUsed)
	}
	if mode != network.BroadcastModeBlock {
		logger.Println("Check inclusion with: txpipe tx %s", outcome.TxHash)
	}
}

func newSendResult(outcome *pipeline.Outcome, err error) sendResult {
	var r sendResult
	if outcome != nil {
		r.AttemptID = outcome.AttemptID
		r.State = string(outcome.State)
		r.TxHash = outcome.TxHash
		if res := outcome.Result; res != nil {
			r.Code = res.Code
			r.Codespace = res.Codespace
			r.RawLog = res.RawLog
			r.Height = res.Height
			r.GasUsed = res.GasUsed
		}
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
