// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txpipe/internal/broker"
	"github.com/altuslabsxyz/txpipe/internal/journal"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

const (
	testChainID = "cosmoshub-test"
	testPrefix  = "cosmos"
)

// fakeResolver serves fixed accounts and counts lookups.
type fakeResolver struct {
	mu       sync.Mutex
	accounts map[string]*network.Account
	errs     map[string]error
	calls    []string
}

func (r *fakeResolver) Resolve(ctx context.Context, address string) (*network.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, address)
	if err, ok := r.errs[address]; ok {
		return nil, err
	}
	if acc, ok := r.accounts[address]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, &network.AccountNotFoundError{Address: address}
}

// fakeBroadcaster returns a fixed result and records submitted bytes.
type fakeBroadcaster struct {
	mu      sync.Mutex
	result  *network.BroadcastResult
	err     error
	hook    func()
	txBytes [][]byte
	modes   []network.BroadcastMode
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, txBytes []byte, mode network.BroadcastMode) (*network.BroadcastResult, error) {
	b.mu.Lock()
	b.txBytes = append(b.txBytes, txBytes)
	b.modes = append(b.modes, mode)
	b.mu.Unlock()

	if b.hook != nil {
		b.hook()
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.result == nil {
		return nil, nil
	}
	res := *b.result
	if res.TxHash == "" {
		res.TxHash = cosmos.TxHash(txBytes)
	}
	return &res, nil
}

func (b *fakeBroadcaster) QueryTx(ctx context.Context, txHash string) (*network.BroadcastResult, error) {
	return nil, &network.TxNotFoundError{TxHash: txHash}
}

func (b *fakeBroadcaster) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.txBytes)
}

// fakeOracle delegates to a KeySigner unless told to fail or block.
type fakeOracle struct {
	signer    *cosmos.KeySigner
	signErr   error
	block     bool
	onSign    func()
	signCalls int
}

func (o *fakeOracle) Enable(ctx context.Context, chainID string) error {
	return nil
}

func (o *fakeOracle) Sign(ctx context.Context, req *network.SignRequest) (*network.SignResponse, error) {
	o.signCalls++
	if o.onSign != nil {
		o.onSign()
	}
	if o.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if o.signErr != nil {
		return nil, o.signErr
	}
	return o.signer.Sign(ctx, req)
}

type party struct {
	priv    *secp256k1.PrivKey
	address string
}

func newParty(t *testing.T, secret string) party {
	t.Helper()
	codec, err := cosmos.NewAddressCodec(testPrefix)
	require.NoError(t, err)
	priv := secp256k1.GenPrivKeyFromSecret([]byte(secret))
	addr, err := codec.Encode(priv.PubKey().Address())
	require.NoError(t, err)
	return party{priv: priv, address: addr}
}

type fixture struct {
	alice       party
	bob         party
	resolver    *fakeResolver
	oracle      *fakeOracle
	broadcaster *fakeBroadcaster
	journal     *journal.MemoryJournal
	broker      *broker.MemoryBroker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alice := newParty(t, "alice")
	bob := newParty(t, "bob")

	codec, err := cosmos.NewAddressCodec(testPrefix)
	require.NoError(t, err)
	signer, err := cosmos.NewKeySigner(alice.priv, codec)
	require.NoError(t, err)

	aliceID, err := codec.Decode(alice.address)
	require.NoError(t, err)
	bobID, err := codec.Decode(bob.address)
	require.NoError(t, err)

	return &fixture{
		alice: alice,
		bob:   bob,
		resolver: &fakeResolver{
			accounts: map[string]*network.Account{
				alice.address: {Address: aliceID, AccountNumber: 12, Sequence: 5},
				bob.address:   {Address: bobID, AccountNumber: 13, Sequence: 0},
			},
			errs: map[string]error{},
		},
		oracle:      &fakeOracle{signer: signer},
		broadcaster: &fakeBroadcaster{result: network.NewBroadcastResult(0, "", "", "", 120, network.BroadcastModeBlock)},
		journal:     journal.NewMemoryJournal(),
		broker:      broker.NewMemoryBroker(),
	}
}

func (f *fixture) pipeline(opts ...Option) *Pipeline {
	opts = append([]Option{WithJournal(f.journal), WithBroker(f.broker)}, opts...)
	return New(f.resolver, f.oracle, f.broadcaster, opts...)
}

func (f *fixture) request() Request {
	return Request{
		ChainID:      testChainID,
		Prefix:       testPrefix,
		Sender:       f.alice.address,
		SenderPubKey: f.alice.priv.PubKey().Bytes(),
		Recipient:    f.bob.address,
		Denom:        "uatom",
		Amount:       "1000000",
		Fee: network.Fee{
			GasLimit: network.DefaultGasLimit,
			Amount:   sdk.NewCoins(sdk.NewInt64Coin("uatom", 5000)),
		},
	}
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(t)

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, out.State)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Success)
	assert.Equal(t, uint32(0), out.Result.Code)
	assert.NotEmpty(t, out.AttemptID)
	assert.NoError(t, out.SideEffectErr)

	require.Equal(t, 1, f.broadcaster.calls())
	assert.Equal(t, network.BroadcastModeBlock, f.broadcaster.modes[0])
	assert.Equal(t, cosmos.TxHash(f.broadcaster.txBytes[0]), out.TxHash)

	// The submitted tx carries the resolved sequence.
	var raw txtypes.TxRaw
	require.NoError(t, raw.Unmarshal(f.broadcaster.txBytes[0]))
	var authInfo txtypes.AuthInfo
	require.NoError(t, authInfo.Unmarshal(raw.AuthInfoBytes))
	require.Len(t, authInfo.SignerInfos, 1)
	assert.Equal(t, uint64(5), authInfo.SignerInfos[0].Sequence)
	require.Len(t, raw.Signatures, 1)

	rec, err := f.journal.Get(context.Background(), out.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, string(StateSuccess), rec.State)
	assert.Equal(t, out.TxHash, rec.TxHash)
	assert.Equal(t, uint64(12), rec.AccountNumber)
	assert.Equal(t, uint64(5), rec.Sequence)
	assert.Equal(t, int64(120), rec.Height)

	msgs := f.broker.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, out.TxHash, msgs[0].Key)

	var env broker.Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	assert.Equal(t, broker.KindTransferOutcome, env.Kind)
	assert.Equal(t, testChainID, env.ChainID)

	var event OutcomeEvent
	require.NoError(t, json.Unmarshal(env.Payload, &event))
	assert.Equal(t, StateSuccess, event.State)
	assert.Equal(t, "1000000", event.Amount)
}

func TestExecuteSenderNotFound(t *testing.T) {
	f := newFixture(t)
	delete(f.resolver.accounts, f.alice.address)

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, network.IsAccountNotFound(err))

	var notFound *network.AccountNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "sender", notFound.Role)

	assert.Zero(t, f.oracle.signCalls)
	assert.Zero(t, f.broadcaster.calls())
	assert.Nil(t, out.Result)
}

func TestExecuteUserRejected(t *testing.T) {
	f := newFixture(t)
	f.oracle.signErr = &network.SignerError{Op: "sign", Err: network.ErrUserRejected}

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.Error(t, err)

	assert.Equal(t, StateRejected, out.State)
	assert.True(t, network.IsUserRejected(err))
	assert.Zero(t, f.broadcaster.calls())
	assert.Empty(t, out.TxHash)

	rec, err := f.journal.Get(context.Background(), out.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, string(StateRejected), rec.State)
}

func TestExecuteLedgerRejected(t *testing.T) {
	f := newFixture(t)
	f.broadcaster.result = network.NewBroadcastResult(5, "sdk", "insufficient funds: 10uatom < 1000000uatom", "", 0, network.BroadcastModeBlock)

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 1, f.broadcaster.calls())
	assert.ErrorIs(t, err, network.ErrLedgerRejected)
	assert.False(t, network.IsNetwork(err))

	var rejected *network.LedgerRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, uint32(5), rejected.Code)
	assert.Equal(t, "insufficient funds: 10uatom < 1000000uatom", rejected.RawLog)
	assert.Equal(t, out.TxHash, rejected.TxHash)

	require.NotNil(t, out.Result)
	assert.False(t, out.Result.Success)
	assert.False(t, IsStaleSequence(err))

	rec, err := f.journal.Get(context.Background(), out.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), rec.Code)
	assert.Equal(t, rejected.RawLog, rec.RawLog)
}

func TestExecuteValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, req *Request) *Pipeline
		target error
	}{
		{
			name: "missing oracle",
			mutate: func(f *fixture, req *Request) *Pipeline {
				return New(f.resolver, nil, f.broadcaster)
			},
			target: network.ErrConfig,
		},
		{
			name: "empty prefix",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.Prefix = ""
				return f.pipeline()
			},
			target: network.ErrConfig,
		},
		{
			name: "empty chain id",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.ChainID = ""
				return f.pipeline()
			},
			target: network.ErrConfig,
		},
		{
			name: "missing public key",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.SenderPubKey = nil
				return f.pipeline()
			},
			target: network.ErrConfig,
		},
		{
			name: "public key of another account",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.SenderPubKey = f.bob.priv.PubKey().Bytes()
				return f.pipeline()
			},
			target: network.ErrConfig,
		},
		{
			name: "addresses with another prefix",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.Prefix = "osmo"
				return f.pipeline()
			},
			target: network.ErrPrefixMismatch,
		},
		{
			name: "malformed recipient",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.Recipient = "cosmos1notanaddress"
				return f.pipeline()
			},
			target: network.ErrInvalidFormat,
		},
		{
			name: "negative amount",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.Amount = "-1"
				return f.pipeline()
			},
			target: network.ErrInvalidFormat,
		},
		{
			name: "malformed denom",
			mutate: func(f *fixture, req *Request) *Pipeline {
				req.Denom = "1atom"
				return f.pipeline()
			},
			target: network.ErrInvalidFormat,
		},
		{
			name: "unknown broadcast mode",
			mutate: func(f *fixture, req *Request) *Pipeline {
				return f.pipeline(WithBroadcastMode("commit"))
			},
			target: network.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			p := tt.mutate(f, &req)

			out, err := p.Execute(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, StateFailed, out.State)

			assert.Empty(t, f.resolver.calls)
			assert.Zero(t, f.oracle.signCalls)
			assert.Zero(t, f.broadcaster.calls())
			assert.Empty(t, f.broker.Messages())
		})
	}
}

func TestExecuteRecipientCheck(t *testing.T) {
	t.Run("fresh recipient is allowed", func(t *testing.T) {
		f := newFixture(t)
		delete(f.resolver.accounts, f.bob.address)

		out, err := f.pipeline(WithRecipientCheck(true)).Execute(context.Background(), f.request())
		require.NoError(t, err)
		assert.Equal(t, StateSuccess, out.State)
		assert.Equal(t, []string{f.alice.address, f.bob.address}, f.resolver.calls)
	})

	t.Run("network failure fails the attempt", func(t *testing.T) {
		f := newFixture(t)
		f.resolver.errs[f.bob.address] = &network.NetworkError{Operation: "account query", Endpoint: "http://node", Err: errors.New("connection refused")}

		out, err := f.pipeline(WithRecipientCheck(true)).Execute(context.Background(), f.request())
		require.Error(t, err)
		assert.Equal(t, StateFailed, out.State)
		assert.True(t, network.IsNetwork(err))
		assert.True(t, IsRetryable(err))
		assert.Zero(t, f.oracle.signCalls)
	})

	t.Run("not checked by default", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline().Execute(context.Background(), f.request())
		require.NoError(t, err)
		assert.Equal(t, []string{f.alice.address}, f.resolver.calls)
	})
}

func TestExecuteCanceledWhileSigning(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.oracle.block = true
	f.oracle.onSign = cancel

	out, err := f.pipeline().Execute(ctx, f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.broadcaster.calls())
	assert.Empty(t, out.TxHash)

	// Side effects still land after cancellation.
	rec, err := f.journal.Get(context.Background(), out.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, string(StateFailed), rec.State)
}

func TestExecuteSignTimeout(t *testing.T) {
	f := newFixture(t)
	f.oracle.block = true

	out, err := f.pipeline(WithSignTimeout(20*time.Millisecond)).Execute(context.Background(), f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, err, network.ErrSigner)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.broadcaster.calls())
}

func TestExecuteSignerFailureIsWrapped(t *testing.T) {
	f := newFixture(t)
	f.oracle.signErr = errors.New("device disconnected")

	_, err := f.pipeline().Execute(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrSigner)
	assert.False(t, network.IsUserRejected(err))
	assert.Zero(t, f.broadcaster.calls())
}

func TestExecuteBroadcastNetworkError(t *testing.T) {
	f := newFixture(t)
	f.broadcaster.err = &network.NetworkError{Operation: "broadcast", Endpoint: "http://node", Err: errors.New("connection reset")}

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, network.IsNetwork(err))
	assert.Equal(t, 1, f.broadcaster.calls())

	var netErr *network.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, out.TxHash, netErr.TxHash)
	assert.False(t, IsRetryable(err))

	rec, err := f.journal.FindByHash(context.Background(), out.TxHash)
	require.NoError(t, err)
	assert.Equal(t, string(StateFailed), rec.State)
}

func TestExecuteEmptyBroadcastResponse(t *testing.T) {
	f := newFixture(t)
	f.broadcaster.result = nil

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.Nil(t, out.Result)
	assert.True(t, network.IsNetwork(err))

	var netErr *network.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.NotEmpty(t, netErr.TxHash)
	assert.Equal(t, out.TxHash, netErr.TxHash)
}

func TestExecuteCanceledDuringBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.broadcaster.hook = cancel
	f.broadcaster.err = &network.NetworkError{Operation: "broadcast", Endpoint: "http://node", Err: context.Canceled}

	out, err := f.pipeline().Execute(ctx, f.request())
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, err, network.ErrOutcomeUnknown)
	assert.NotEmpty(t, out.TxHash)

	var unknown *network.OutcomeUnknownError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, out.TxHash, unknown.TxHash)
}

func TestExecuteSideEffectFailure(t *testing.T) {
	f := newFixture(t)
	f.broker.FailWith(errors.New("broker down"))

	out, err := f.pipeline().Execute(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)
	require.Error(t, out.SideEffectErr)
	assert.Contains(t, out.SideEffectErr.Error(), "broker down")
}

func TestExecuteOracleBytesAreBroadcast(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Memo = "original"

	// The oracle re-encodes the body with a different memo and signs that.
	codec, err := cosmos.NewAddressCodec(testPrefix)
	require.NoError(t, err)
	signer, err := cosmos.NewKeySigner(f.alice.priv, codec)
	require.NoError(t, err)
	oracle := &rewritingOracle{signer: signer, memo: "rewritten"}

	p := New(f.resolver, oracle, f.broadcaster)
	_, err = p.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, f.broadcaster.calls())
	var raw txtypes.TxRaw
	require.NoError(t, raw.Unmarshal(f.broadcaster.txBytes[0]))
	var body txtypes.TxBody
	require.NoError(t, body.Unmarshal(raw.BodyBytes))
	assert.Equal(t, "rewritten", body.Memo)
}

// rewritingOracle changes the memo before signing, like wallets that
// re-canonicalise the document.
type rewritingOracle struct {
	signer *cosmos.KeySigner
	memo   string
}

func (o *rewritingOracle) Enable(ctx context.Context, chainID string) error { return nil }

func (o *rewritingOracle) Sign(ctx context.Context, req *network.SignRequest) (*network.SignResponse, error) {
	var body txtypes.TxBody
	if err := body.Unmarshal(req.Doc.BodyBytes); err != nil {
		return nil, err
	}
	body.Memo = o.memo
	bz, err := body.Marshal()
	if err != nil {
		return nil, err
	}
	rewritten := *req
	rewritten.Doc.BodyBytes = bz
	return o.signer.Sign(ctx, &rewritten)
}

func TestIsStaleSequence(t *testing.T) {
	assert.True(t, IsStaleSequence(&network.LedgerRejectedError{Code: 32, Codespace: "sdk", RawLog: "account sequence mismatch"}))
	assert.False(t, IsStaleSequence(&network.LedgerRejectedError{Code: 32, Codespace: "bank"}))
	assert.False(t, IsStaleSequence(&network.LedgerRejectedError{Code: 5, Codespace: "sdk"}))
	assert.False(t, IsStaleSequence(errors.New("account sequence mismatch")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&network.NetworkError{Operation: "account query", Err: errors.New("refused")}))
	assert.False(t, IsRetryable(&network.NetworkError{Operation: "broadcast", TxHash: "ABCD", Err: errors.New("reset")}))
	assert.False(t, IsRetryable(&network.OutcomeUnknownError{TxHash: "ABCD", Err: context.Canceled}))
	assert.False(t, IsRetryable(&network.LedgerRejectedError{Code: 5}))
}

func TestStateIsTerminal(t *testing.T) {
	for _, s := range []State{StateSuccess, StateRejected, StateFailed} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []State{StateInit, StateAccountResolved, StateEnvelopeBuilt, StateSigned, StateBroadcast} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestExecuteStateHook(t *testing.T) {
	f := newFixture(t)
	var seen []State

	_, err := f.pipeline(WithStateHook(func(s State) { seen = append(seen, s) })).Execute(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, []State{StateAccountResolved, StateEnvelopeBuilt, StateSigned, StateBroadcast, StateSuccess}, seen)

	seen = nil
	f.oracle.signErr = &network.SignerError{Op: "sign", Err: network.ErrUserRejected}
	_, err = f.pipeline(WithStateHook(func(s State) { seen = append(seen, s) })).Execute(context.Background(), f.request())
	require.Error(t, err)
	assert.Equal(t, []State{StateAccountResolved, StateEnvelopeBuilt, StateRejected}, seen)
}
