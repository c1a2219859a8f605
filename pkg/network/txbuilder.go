// Package network defines the chain-neutral types and the ports of the
// transfer pipeline: account resolution, signing and broadcast.
package network

import (
	"bytes"
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// AccountResolver reads the on-chain account state needed to build a transaction.
// Implementations perform exactly one read per call and never retry.
type AccountResolver interface {
	// Resolve returns the account snapshot for a bech32 address.
	// Returns an *AccountNotFoundError when the ledger has no record for it
	// and a *NetworkError when the query itself failed.
	Resolve(ctx context.Context, address string) (*Account, error)
}

// SigningOracle is the boundary to an external signer holding the private key.
// A call to Sign may block on user interaction; callers bound it with ctx.
type SigningOracle interface {
	// Enable asks the signer to expose keys for the given chain.
	Enable(ctx context.Context, chainID string) error

	// Sign signs a SignDoc and returns the signature together with the
	// bytes that were actually signed.
	Sign(ctx context.Context, req *SignRequest) (*SignResponse, error)
}

// Broadcaster submits signed transactions and queries their outcome.
type Broadcaster interface {
	// Broadcast submits the serialized TxRaw. A non-zero ledger code is a
	// successful call and is reported through BroadcastResult.Code.
	Broadcast(ctx context.Context, txBytes []byte, mode BroadcastMode) (*BroadcastResult, error)

	// QueryTx looks up an already submitted transaction by hash.
	QueryTx(ctx context.Context, txHash string) (*BroadcastResult, error)
}

// AccountID is the raw byte form of an account address.
type AccountID []byte

// Equal reports whether two identifiers are byte-identical.
func (id AccountID) Equal(other AccountID) bool {
	return bytes.Equal(id, other)
}

// Empty reports whether the identifier carries no bytes.
func (id AccountID) Empty() bool {
	return len(id) == 0
}

// Account is a read-only snapshot of the ledger's account record.
type Account struct {
	// Address is the account's raw address bytes.
	Address AccountID

	// AccountNumber is assigned once by the ledger and never changes.
	AccountNumber uint64

	// Sequence is the replay-protection nonce expected for the next tx.
	Sequence uint64

	// PubKey is the public key already recorded on chain (nil before the first send).
	PubKey []byte

	// Type is the protobuf type URL of the on-chain record.
	Type string
}

// TransferMessage describes a single token transfer.
type TransferMessage struct {
	Sender    AccountID
	Recipient AccountID

	// Denom is the base denomination, e.g. "uatom".
	Denom string

	// Amount is a non-negative integer in the base denomination.
	Amount string
}

// Fee is the fee limit attached to the auth info.
type Fee struct {
	// GasLimit is the maximum gas the tx may consume.
	GasLimit uint64

	// Amount is the fee paid (may be empty on zero-fee chains).
	Amount sdk.Coins
}

// DefaultGasLimit is the gas limit used when none is configured.
const DefaultGasLimit uint64 = 200000

// SignDoc is the document handed to a signing oracle in SIGN_MODE_DIRECT.
type SignDoc struct {
	BodyBytes     []byte `json:"body_bytes"`
	AuthInfoBytes []byte `json:"auth_info_bytes"`
	ChainID       string `json:"chain_id"`
	AccountNumber uint64 `json:"account_number"`
}

// SignRequest asks an oracle to sign a SignDoc on behalf of Signer.
type SignRequest struct {
	// ChainID is the chain the tx is bound to.
	ChainID string

	// Signer is the bech32 address of the signing account.
	Signer string

	// Doc is the sign document built for the envelope.
	Doc SignDoc
}

// SignResponse is returned by a signing oracle.
// BodyBytes and AuthInfoBytes are authoritative: oracles may re-encode
// the document before signing it.
type SignResponse struct {
	Signature     []byte
	BodyBytes     []byte
	AuthInfoBytes []byte

	// PubKey is the compressed public key reported by the oracle, if any.
	PubKey []byte
}

// BroadcastMode specifies how long a broadcast waits.
type BroadcastMode string

const (
	// BroadcastModeBlock waits until the tx is included in a block.
	BroadcastModeBlock BroadcastMode = "block"
	// BroadcastModeSync waits for CheckTx only.
	BroadcastModeSync BroadcastMode = "sync"
	// BroadcastModeAsync returns immediately after submission.
	BroadcastModeAsync BroadcastMode = "async"
)

// ParseBroadcastMode converts a configuration string into a BroadcastMode.
// An empty string selects BroadcastModeBlock.
func ParseBroadcastMode(s string) (BroadcastMode, error) {
	switch BroadcastMode(s) {
	case "", BroadcastModeBlock:
		return BroadcastModeBlock, nil
	case BroadcastModeSync, BroadcastModeAsync:
		return BroadcastMode(s), nil
	default:
		return "", &ConfigError{Field: "broadcast_mode", Message: "must be one of block, sync, async"}
	}
}

// BroadcastResult is the ledger's answer to a broadcast or tx query.
type BroadcastResult struct {
	// Success is true when Code is zero.
	Success bool `json:"success"`

	// Code is the ledger response code (0 = success).
	Code uint32 `json:"code"`

	// Codespace is the module namespace of Code.
	Codespace string `json:"codespace,omitempty"`

	// RawLog is the ledger log, verbatim.
	RawLog string `json:"raw_log,omitempty"`

	// TxHash is the upper-case hex transaction hash.
	TxHash string `json:"tx_hash,omitempty"`

	// Height is the inclusion height (0 when not yet included).
	Height int64 `json:"height,omitempty"`

	// GasUsed is the gas consumed, when known.
	GasUsed int64 `json:"gas_used,omitempty"`

	// Mode is the broadcast mode that produced the result.
	Mode BroadcastMode `json:"mode,omitempty"`
}

// NewBroadcastResult fills Success from code.
func NewBroadcastResult(code uint32, codespace, rawLog, txHash string, height int64, mode BroadcastMode) *BroadcastResult {
	return &BroadcastResult{
		Success:   code == 0,
		Code:      code,
		Codespace: codespace,
		RawLog:    rawLog,
		TxHash:    txHash,
		Height:    height,
		Mode:      mode,
	}
}
