// Package pipeline runs a transfer through account resolution, envelope
// construction, external signing and a single broadcast.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"

	"github.com/altuslabsxyz/txpipe/internal/broker"
	"github.com/altuslabsxyz/txpipe/internal/journal"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// State is a pipeline phase.
type State string

const (
	StateInit            State = "init"
	StateAccountResolved State = "account_resolved"
	StateEnvelopeBuilt   State = "envelope_built"
	StateSigned          State = "signed"
	StateBroadcast       State = "broadcast"
	StateSuccess         State = "success"
	StateRejected        State = "rejected"
	StateFailed          State = "failed"
)

// IsTerminal reports whether no further transition can happen from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateRejected, StateFailed:
		return true
	}
	return false
}

// Defaults.
const (
	DefaultSignTimeout = 2 * time.Minute

	// sideEffectTimeout bounds journal and publisher writes made after the
	// ledger outcome is known, which run even if the caller's context ended.
	sideEffectTimeout = 10 * time.Second
)

// Request describes one transfer.
type Request struct {
	ChainID string

	// Prefix is the chain's bech32 account prefix, e.g. "cosmos".
	Prefix string

	// Sender is the bech32 address of the signing account.
	Sender string

	// SenderPubKey is the sender's 33-byte compressed secp256k1 key.
	SenderPubKey []byte

	Recipient string
	Denom     string
	Amount    string
	Memo      string
	Fee       network.Fee
}

// Outcome is the result of one attempt. It is returned for every call,
// including failed ones.
type Outcome struct {
	State     State
	AttemptID string
	TxHash    string

	// Result is set once the ledger answered the broadcast.
	Result *network.BroadcastResult

	// SideEffectErr holds journal or publisher failures that happened after
	// the ledger outcome was known. They do not change State.
	SideEffectErr error
}

// Pipeline runs transfers through resolve, build, sign and broadcast.
// It holds no per-attempt state and may be shared across goroutines.
type Pipeline struct {
	resolver        network.AccountResolver
	oracle          network.SigningOracle
	broadcaster     network.Broadcaster
	journal         journal.Journal
	broker          broker.Broker
	mode            network.BroadcastMode
	signTimeout     time.Duration
	verifyRecipient bool
	onTransition    func(State)
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJournal records every attempt in j.
func WithJournal(j journal.Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithBroker publishes an outcome event for every attempt.
func WithBroker(b broker.Broker) Option {
	return func(p *Pipeline) { p.broker = b }
}

// WithBroadcastMode overrides the default block mode.
func WithBroadcastMode(mode network.BroadcastMode) Option {
	return func(p *Pipeline) { p.mode = mode }
}

// WithSignTimeout bounds the signing oracle call.
func WithSignTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.signTimeout = d
		}
	}
}

// WithRecipientCheck resolves the recipient before signing. A recipient the
// ledger has never seen is still accepted.
func WithRecipientCheck(enabled bool) Option {
	return func(p *Pipeline) { p.verifyRecipient = enabled }
}

// WithStateHook calls fn after every state transition, on the calling goroutine.
func WithStateHook(fn func(State)) Option {
	return func(p *Pipeline) { p.onTransition = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.SetLogger(logger) }
}

// New creates a Pipeline. Missing collaborators are reported by Execute as
// configuration errors.
func New(resolver network.AccountResolver, oracle network.SigningOracle, broadcaster network.Broadcaster, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:    resolver,
		oracle:      oracle,
		broadcaster: broadcaster,
		mode:        network.BroadcastModeBlock,
		signTimeout: DefaultSignTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetLogger sets the logger.
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// attempt carries the values derived for one Execute call.
type attempt struct {
	req     Request
	out     *Outcome
	rec     *journal.Record
	stored  bool
	codec   cosmos.AddressCodec
	pubKey  *secp256k1.PubKey
	msg     network.TransferMessage
	logger  *slog.Logger
	started time.Time
}

// Execute runs exactly one attempt. The returned Outcome is never nil; the
// error is nil only when State is StateSuccess.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Outcome, error) {
	a := &attempt{
		req:     req,
		out:     &Outcome{State: StateInit, AttemptID: journal.NewID()},
		started: time.Now(),
	}
	a.logger = p.logger.With("attempt", a.out.AttemptID, "chain_id", req.ChainID)

	if err := p.prepare(a); err != nil {
		return p.setFailed(ctx, a, err)
	}
	a.rec = &journal.Record{
		ID:        a.out.AttemptID,
		ChainID:   req.ChainID,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Denom:     req.Denom,
		Amount:    req.Amount,
		Memo:      req.Memo,
		Mode:      string(p.mode),
		State:     string(StateInit),
		CreatedAt: a.started,
	}

	a.logger.Info("resolving sender account", "sender", req.Sender)
	account, err := p.resolveSender(ctx, a)
	if err != nil {
		return p.setFailed(ctx, a, err)
	}
	if err := p.checkRecipient(ctx, a); err != nil {
		return p.setFailed(ctx, a, err)
	}
	p.transition(a, StateAccountResolved)
	a.rec.AccountNumber = account.AccountNumber
	a.rec.Sequence = account.Sequence

	builder := cosmos.NewBuilder(a.codec)
	unsigned, err := builder.BuildUnsigned(req.ChainID, a.msg, account, a.pubKey, req.Fee, req.Memo)
	if err != nil {
		return p.setFailed(ctx, a, err)
	}
	p.transition(a, StateEnvelopeBuilt)
	a.logger.Debug("envelope built",
		"account_number", account.AccountNumber,
		"sequence", account.Sequence)

	resp, err := p.sign(ctx, a, unsigned)
	if err != nil {
		if network.IsUserRejected(err) {
			return p.setRejected(ctx, a, err)
		}
		return p.setFailed(ctx, a, err)
	}

	signed, err := builder.AttachSignature(unsigned, resp)
	if err != nil {
		return p.setFailed(ctx, a, err)
	}
	txBytes, err := signed.Bytes()
	if err != nil {
		return p.setFailed(ctx, a, err)
	}
	p.transition(a, StateSigned)
	a.out.TxHash = cosmos.TxHash(txBytes)
	a.rec.TxHash = a.out.TxHash

	// The hash must be durable before the bytes leave the process.
	a.rec.State = string(StateBroadcast)
	if err := p.store(ctx, a); err != nil {
		return p.setFailed(ctx, a, fmt.Errorf("failed to journal attempt before broadcast: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return p.setFailed(ctx, a, fmt.Errorf("canceled before broadcast: %w", err))
	}

	p.transition(a, StateBroadcast)
	a.logger.Info("broadcasting transaction", "tx_hash", a.out.TxHash, "mode", p.mode)
	result, err := p.broadcaster.Broadcast(ctx, txBytes, p.mode)
	if err == nil && result == nil {
		err = &network.NetworkError{Operation: "broadcast", Err: errors.New("empty broadcast response")}
	}
	if err != nil {
		return p.setFailed(ctx, a, p.broadcastError(ctx, a, err))
	}
	a.out.Result = result
	if result.TxHash != "" {
		a.out.TxHash = result.TxHash
	}

	if !result.Success {
		return p.setFailed(ctx, a, &network.LedgerRejectedError{
			Code:      result.Code,
			Codespace: result.Codespace,
			RawLog:    result.RawLog,
			TxHash:    a.out.TxHash,
		})
	}
	return p.setSucceeded(ctx, a)
}

func (p *Pipeline) transition(a *attempt, s State) {
	a.out.State = s
	if p.onTransition != nil {
		p.onTransition(s)
	}
}

// prepare validates everything that can be checked without the network.
func (p *Pipeline) prepare(a *attempt) error {
	req := a.req
	switch {
	case p.oracle == nil:
		return &network.ConfigError{Field: "signer", Message: "no signing oracle configured"}
	case p.resolver == nil:
		return &network.ConfigError{Field: "endpoints", Message: "no account resolver configured"}
	case p.broadcaster == nil:
		return &network.ConfigError{Field: "endpoints", Message: "no broadcaster configured"}
	case req.ChainID == "":
		return &network.ConfigError{Field: "chain_id", Message: "cannot be empty"}
	case len(req.SenderPubKey) == 0:
		return &network.ConfigError{Field: "pubkey", Message: "sender public key is required"}
	}
	if _, err := network.ParseBroadcastMode(string(p.mode)); err != nil {
		return err
	}

	codec, err := cosmos.NewAddressCodec(req.Prefix)
	if err != nil {
		return err
	}
	a.codec = codec

	sender, err := codec.Decode(req.Sender)
	if err != nil {
		return err
	}
	recipient, err := codec.Decode(req.Recipient)
	if err != nil {
		return err
	}
	if err := cosmos.ValidateTransferDenom(req.Denom); err != nil {
		return err
	}
	if _, err := cosmos.ParseTransferAmount(req.Amount); err != nil {
		return err
	}

	pubKey, err := cosmos.PubKeyFromBytes(req.SenderPubKey)
	if err != nil {
		return &network.ConfigError{Field: "pubkey", Message: err.Error()}
	}
	if !cosmos.AddressFromPubKey(pubKey).Equal(sender) {
		return &network.ConfigError{Field: "pubkey", Message: fmt.Sprintf("public key does not derive %s", req.Sender)}
	}
	a.pubKey = pubKey

	a.msg = network.TransferMessage{
		Sender:    sender,
		Recipient: recipient,
		Denom:     req.Denom,
		Amount:    req.Amount,
	}
	return nil
}

// resolveSender returns a private snapshot of the sender's account.
func (p *Pipeline) resolveSender(ctx context.Context, a *attempt) (*network.Account, error) {
	account, err := p.resolver.Resolve(ctx, a.req.Sender)
	if err != nil {
		var notFound *network.AccountNotFoundError
		if errors.As(err, &notFound) {
			notFound.Role = "sender"
		}
		return nil, err
	}
	if account == nil {
		return nil, &network.AccountNotFoundError{Address: a.req.Sender, Role: "sender"}
	}

	snapshot := *account
	if snapshot.Address.Empty() {
		snapshot.Address = a.msg.Sender
	}
	if !snapshot.Address.Equal(a.msg.Sender) {
		return nil, fmt.Errorf("resolver returned a different account for %s", a.req.Sender)
	}
	return &snapshot, nil
}

func (p *Pipeline) checkRecipient(ctx context.Context, a *attempt) error {
	if !p.verifyRecipient {
		return nil
	}
	_, err := p.resolver.Resolve(ctx, a.req.Recipient)
	if err == nil {
		return nil
	}
	if network.IsAccountNotFound(err) {
		// First-ever transfer to a fresh address.
		a.logger.Info("recipient has no on-chain account yet", "recipient", a.req.Recipient)
		return nil
	}
	return err
}

// sign enables the oracle and asks for a signature, bounded by the sign timeout.
func (p *Pipeline) sign(ctx context.Context, a *attempt, unsigned *cosmos.UnsignedEnvelope) (*network.SignResponse, error) {
	signCtx, cancel := context.WithTimeout(ctx, p.signTimeout)
	defer cancel()

	a.logger.Info("requesting signature", "signer", a.req.Sender)

	if err := p.oracle.Enable(signCtx, a.req.ChainID); err != nil {
		return nil, p.signerError(ctx, signCtx, "enable", err)
	}
	resp, err := p.oracle.Sign(signCtx, &network.SignRequest{
		ChainID: a.req.ChainID,
		Signer:  a.req.Sender,
		Doc:     unsigned.SignDoc(),
	})
	if err != nil {
		return nil, p.signerError(ctx, signCtx, "sign", err)
	}
	return resp, nil
}

// signerError classifies an oracle failure. Caller cancellation wins over
// whatever the oracle reported; an expired sign timeout is a signer error.
func (p *Pipeline) signerError(ctx, signCtx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("signing aborted, nothing was broadcast: %w", ctxErr)
	}
	if errors.Is(signCtx.Err(), context.DeadlineExceeded) {
		return &network.SignerError{Op: op, Err: fmt.Errorf("no response within %s: %w", p.signTimeout, context.DeadlineExceeded)}
	}
	if network.IsUserRejected(err) || errors.Is(err, network.ErrSigner) ||
		errors.Is(err, network.ErrSignerUnavailable) || errors.Is(err, network.ErrConfig) {
		return err
	}
	return &network.SignerError{Op: op, Err: err}
}

// broadcastError makes sure an error after submission began never reads as
// "not sent" once the caller's context has ended.
func (p *Pipeline) broadcastError(ctx context.Context, a *attempt, err error) error {
	if errors.Is(err, network.ErrOutcomeUnknown) {
		return err
	}
	if ctx.Err() != nil {
		return &network.OutcomeUnknownError{TxHash: a.out.TxHash, Err: err}
	}
	var netErr *network.NetworkError
	if errors.As(err, &netErr) && netErr.TxHash == "" {
		netErr.TxHash = a.out.TxHash
	}
	return err
}

func (p *Pipeline) setSucceeded(ctx context.Context, a *attempt) (*Outcome, error) {
	p.transition(a, StateSuccess)
	if a.out.Result.Height > 0 {
		a.logger.Info("transfer included",
			"tx_hash", a.out.TxHash,
			"height", a.out.Result.Height,
			"duration", time.Since(a.started))
	} else {
		// Sync and async modes only saw the mempool check.
		a.logger.Info("transfer accepted, inclusion not yet confirmed",
			"tx_hash", a.out.TxHash,
			"mode", p.mode,
			"duration", time.Since(a.started))
	}
	p.finish(ctx, a, nil)
	return a.out, nil
}

// setRejected records an explicit user rejection. It is logged at info
// level since it is an expected outcome.
func (p *Pipeline) setRejected(ctx context.Context, a *attempt, err error) (*Outcome, error) {
	p.transition(a, StateRejected)
	a.logger.Info("transfer rejected by user")
	p.finish(ctx, a, err)
	return a.out, err
}

func (p *Pipeline) setFailed(ctx context.Context, a *attempt, err error) (*Outcome, error) {
	from := a.out.State
	p.transition(a, StateFailed)
	a.logger.Error("transfer failed", "phase", from, "tx_hash", a.out.TxHash, "error", err)
	p.finish(ctx, a, err)
	return a.out, err
}

// finish journals the terminal state and publishes the outcome event.
// Attempts that failed validation have no record and are not published.
func (p *Pipeline) finish(ctx context.Context, a *attempt, cause error) {
	if a.rec == nil {
		return
	}
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	a.rec.State = string(a.out.State)
	if res := a.out.Result; res != nil {
		a.rec.Code = res.Code
		a.rec.Codespace = res.Codespace
		a.rec.RawLog = res.RawLog
		a.rec.Height = res.Height
	}
	a.rec.TxHash = a.out.TxHash
	if cause != nil {
		a.rec.Error = cause.Error()
	}

	var errs []error
	if err := p.store(sideCtx, a); err != nil {
		errs = append(errs, fmt.Errorf("journal: %w", err))
	}
	if err := p.publish(sideCtx, a); err != nil {
		errs = append(errs, fmt.Errorf("publish: %w", err))
	}
	if len(errs) > 0 {
		a.out.SideEffectErr = errors.Join(errs...)
		a.logger.Warn("outcome side effects failed", "error", a.out.SideEffectErr)
	}
}

// store creates the attempt record on first use and updates it afterwards.
func (p *Pipeline) store(ctx context.Context, a *attempt) error {
	if p.journal == nil {
		return nil
	}
	a.rec.UpdatedAt = time.Now()
	if a.stored {
		return p.journal.Update(ctx, a.rec)
	}
	if err := p.journal.Create(ctx, a.rec); err != nil {
		return err
	}
	a.stored = true
	return nil
}

func (p *Pipeline) publish(ctx context.Context, a *attempt) error {
	if p.broker == nil {
		return nil
	}
	key := a.out.TxHash
	if key == "" {
		key = a.out.AttemptID
	}
	return broker.PublishJSON(ctx, p.broker, broker.KindTransferOutcome, a.req.ChainID, key, a.rec.Height, newOutcomeEvent(a))
}
