// pkg/network/cosmos/txbuilder.go
package cosmos

import (
	"fmt"

	cmttypes "github.com/cometbft/cometbft/types"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	"github.com/cosmos/gogoproto/proto"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// Builder assembles transfer transactions in SIGN_MODE_DIRECT.
// It is a pure function of its inputs: no network access, no randomness.
type Builder struct {
	codec AddressCodec
}

// NewBuilder creates a Builder rendering addresses with codec.
func NewBuilder(codec AddressCodec) *Builder {
	return &Builder{codec: codec}
}

// Codec returns the builder's address codec.
func (b *Builder) Codec() AddressCodec {
	return b.codec
}

// UnsignedEnvelope is a transaction ready for signing. It is immutable:
// accessors return copies.
type UnsignedEnvelope struct {
	bodyBytes     []byte
	authInfoBytes []byte
	chainID       string
	accountNumber uint64
	sequence      uint64
	pubKey        []byte
	signMode      signing.SignMode
	fee           network.Fee
}

// BodyBytes returns a copy of the serialized TxBody.
func (e *UnsignedEnvelope) BodyBytes() []byte { return cloneBytes(e.bodyBytes) }

// AuthInfoBytes returns a copy of the serialized AuthInfo.
func (e *UnsignedEnvelope) AuthInfoBytes() []byte { return cloneBytes(e.authInfoBytes) }

// ChainID returns the chain the envelope is bound to.
func (e *UnsignedEnvelope) ChainID() string { return e.chainID }

// AccountNumber returns the signer's account number.
func (e *UnsignedEnvelope) AccountNumber() uint64 { return e.accountNumber }

// Sequence returns the signer sequence baked into the auth info.
func (e *UnsignedEnvelope) Sequence() uint64 { return e.sequence }

// PubKey returns the signer's compressed public key.
func (e *UnsignedEnvelope) PubKey() []byte { return cloneBytes(e.pubKey) }

// SignMode returns the sign mode declared in the auth info.
func (e *UnsignedEnvelope) SignMode() signing.SignMode { return e.signMode }

// Fee returns the fee limit.
func (e *UnsignedEnvelope) Fee() network.Fee { return e.fee }

// SignDoc returns the document handed to the signing oracle.
func (e *UnsignedEnvelope) SignDoc() network.SignDoc {
	return network.SignDoc{
		BodyBytes:     e.BodyBytes(),
		AuthInfoBytes: e.AuthInfoBytes(),
		ChainID:       e.chainID,
		AccountNumber: e.accountNumber,
	}
}

// SignBytes returns the serialized SignDoc, the exact bytes a DIRECT signer signs.
func (e *UnsignedEnvelope) SignBytes() ([]byte, error) {
	return signDocBytes(e.bodyBytes, e.authInfoBytes, e.chainID, e.accountNumber)
}

// SignedEnvelope is a transaction carrying the oracle's canonical bytes and signature.
type SignedEnvelope struct {
	bodyBytes     []byte
	authInfoBytes []byte
	signature     []byte
}

// BodyBytes returns a copy of the canonical TxBody bytes.
func (e *SignedEnvelope) BodyBytes() []byte { return cloneBytes(e.bodyBytes) }

// AuthInfoBytes returns a copy of the canonical AuthInfo bytes.
func (e *SignedEnvelope) AuthInfoBytes() []byte { return cloneBytes(e.authInfoBytes) }

// Signature returns a copy of the signature.
func (e *SignedEnvelope) Signature() []byte { return cloneBytes(e.signature) }

// Bytes serializes the envelope as a TxRaw for broadcast.
func (e *SignedEnvelope) Bytes() ([]byte, error) {
	raw := &txtypes.TxRaw{
		BodyBytes:     e.bodyBytes,
		AuthInfoBytes: e.authInfoBytes,
		Signatures:    [][]byte{e.signature},
	}
	bz, err := proto.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx raw: %w", err)
	}
	return bz, nil
}

// Hash returns the CometBFT hash of the serialized tx as upper-case hex.
func (e *SignedEnvelope) Hash() (string, error) {
	bz, err := e.Bytes()
	if err != nil {
		return "", err
	}
	return TxHash(bz), nil
}

// TxHash returns the upper-case hex hash under which the ledger indexes txBytes.
func TxHash(txBytes []byte) string {
	return fmt.Sprintf("%X", cmttypes.Tx(txBytes).Hash())
}

// BuildUnsigned assembles the body and auth info for a single transfer.
// Identical inputs always produce byte-identical output.
func (b *Builder) BuildUnsigned(
	chainID string,
	msg network.TransferMessage,
	signer *network.Account,
	pubKey *secp256k1.PubKey,
	fee network.Fee,
	memo string,
) (*UnsignedEnvelope, error) {
	if chainID == "" {
		return nil, &network.ConfigError{Field: "chain_id", Message: "cannot be empty"}
	}
	if signer == nil {
		return nil, fmt.Errorf("signer account is required")
	}
	if pubKey == nil {
		return nil, &network.ConfigError{Field: "pubkey", Message: "signer public key is required"}
	}
	if !signer.Address.Equal(msg.Sender) {
		return nil, fmt.Errorf("signer account does not match message sender")
	}
	if !AddressFromPubKey(pubKey).Equal(msg.Sender) {
		return nil, &network.ConfigError{Field: "pubkey", Message: "public key does not derive the sender address"}
	}

	sendMsg, err := NewMsgSend(b.codec, msg)
	if err != nil {
		return nil, err
	}

	msgAny, err := codectypes.NewAnyWithValue(sendMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to pack message: %w", err)
	}
	body := &txtypes.TxBody{
		Messages: []*codectypes.Any{msgAny},
		Memo:     memo,
	}
	bodyBytes, err := proto.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx body: %w", err)
	}

	pubKeyAny, err := codectypes.NewAnyWithValue(pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to pack public key: %w", err)
	}
	authInfo := &txtypes.AuthInfo{
		SignerInfos: []*txtypes.SignerInfo{{
			PublicKey: pubKeyAny,
			ModeInfo: &txtypes.ModeInfo{
				Sum: &txtypes.ModeInfo_Single_{
					Single: &txtypes.ModeInfo_Single{Mode: signing.SignMode_SIGN_MODE_DIRECT},
				},
			},
			Sequence: signer.Sequence,
		}},
		Fee: &txtypes.Fee{
			Amount:   fee.Amount,
			GasLimit: fee.GasLimit,
		},
	}
	authInfoBytes, err := proto.Marshal(authInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth info: %w", err)
	}

	return &UnsignedEnvelope{
		bodyBytes:     bodyBytes,
		authInfoBytes: authInfoBytes,
		chainID:       chainID,
		accountNumber: signer.AccountNumber,
		sequence:      signer.Sequence,
		pubKey:        cloneBytes(pubKey.Key),
		signMode:      signing.SignMode_SIGN_MODE_DIRECT,
		fee:           fee,
	}, nil
}

// AttachSignature combines an unsigned envelope with an oracle response.
// The oracle's body and auth-info bytes are authoritative and replace the
// builder's own copies: they are what was actually signed.
func (b *Builder) AttachSignature(unsigned *UnsignedEnvelope, resp *network.SignResponse) (*SignedEnvelope, error) {
	if unsigned == nil {
		return nil, fmt.Errorf("unsigned envelope is required")
	}
	if resp == nil || len(resp.Signature) == 0 {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("empty signature")}
	}
	if len(resp.BodyBytes) == 0 || len(resp.AuthInfoBytes) == 0 {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("signer returned no canonical bytes")}
	}

	var body txtypes.TxBody
	if err := body.Unmarshal(resp.BodyBytes); err != nil {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("undecodable body bytes: %w", err)}
	}

	var authInfo txtypes.AuthInfo
	if err := authInfo.Unmarshal(resp.AuthInfoBytes); err != nil {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("undecodable auth info bytes: %w", err)}
	}
	if len(authInfo.SignerInfos) != 1 {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("expected one signer info, got %d", len(authInfo.SignerInfos))}
	}
	if seq := authInfo.SignerInfos[0].Sequence; seq != unsigned.sequence {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("signer changed sequence from %d to %d", unsigned.sequence, seq)}
	}

	return &SignedEnvelope{
		bodyBytes:     cloneBytes(resp.BodyBytes),
		authInfoBytes: cloneBytes(resp.AuthInfoBytes),
		signature:     cloneBytes(resp.Signature),
	}, nil
}

func signDocBytes(bodyBytes, authInfoBytes []byte, chainID string, accountNumber uint64) ([]byte, error) {
	doc := &txtypes.SignDoc{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		ChainId:       chainID,
		AccountNumber: accountNumber,
	}
	bz, err := proto.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign doc: %w", err)
	}
	return bz, nil
}

// SignDocBytes serializes a network.SignDoc the way DIRECT signers do.
func SignDocBytes(doc network.SignDoc) ([]byte, error) {
	return signDocBytes(doc.BodyBytes, doc.AuthInfoBytes, doc.ChainID, doc.AccountNumber)
}

func cloneBytes(bz []byte) []byte {
	if bz == nil {
		return nil
	}
	return append([]byte(nil), bz...)
}
