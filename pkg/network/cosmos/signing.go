// pkg/network/cosmos/signing.go
package cosmos

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// LoadPrivateKey loads a secp256k1 private key from bytes.
// Expects 32 bytes for secp256k1.
func LoadPrivateKey(privKeyBytes []byte) (cryptotypes.PrivKey, error) {
	if len(privKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32, got %d", len(privKeyBytes))
	}
	privKey := &secp256k1.PrivKey{Key: privKeyBytes}
	return privKey, nil
}

// SignBytes signs arbitrary bytes with the private key.
func SignBytes(privKey cryptotypes.PrivKey, signDoc []byte) ([]byte, error) {
	signature, err := privKey.Sign(signDoc)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return signature, nil
}

// KeySigner is a signing oracle backed by an in-process private key.
// It signs the SignDoc unchanged, so its canonical bytes equal its input.
// Intended for development chains and tests.
type KeySigner struct {
	privKey cryptotypes.PrivKey
	address string
}

var _ network.SigningOracle = (*KeySigner)(nil)

// NewKeySigner creates a KeySigner; the key's address is rendered with codec.
func NewKeySigner(privKey cryptotypes.PrivKey, codec AddressCodec) (*KeySigner, error) {
	if privKey == nil {
		return nil, &network.ConfigError{Field: "signer", Message: "private key is required"}
	}
	address, err := codec.Encode(privKey.PubKey().Address())
	if err != nil {
		return nil, err
	}
	return &KeySigner{privKey: privKey, address: address}, nil
}

// NewKeySignerFromHex loads a hex-encoded private key (optional 0x prefix).
func NewKeySignerFromHex(s string, codec AddressCodec) (*KeySigner, error) {
	normalized := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	bz, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, &network.ConfigError{Field: "signer.private_key", Message: "not valid hex"}
	}
	privKey, err := LoadPrivateKey(bz)
	if err != nil {
		return nil, &network.ConfigError{Field: "signer.private_key", Message: err.Error()}
	}
	return NewKeySigner(privKey, codec)
}

// Address returns the bech32 address controlled by the key.
func (s *KeySigner) Address() string {
	return s.address
}

// PubKey returns the compressed public key.
func (s *KeySigner) PubKey() *secp256k1.PubKey {
	return &secp256k1.PubKey{Key: s.privKey.PubKey().Bytes()}
}

// Enable is a no-op for in-process keys.
func (s *KeySigner) Enable(ctx context.Context, chainID string) error {
	return ctx.Err()
}

// Sign signs the serialized SignDoc.
func (s *KeySigner) Sign(ctx context.Context, req *network.SignRequest) (*network.SignResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Signer != s.address {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("no key for signer %s", req.Signer)}
	}

	signBytes, err := SignDocBytes(req.Doc)
	if err != nil {
		return nil, &network.SignerError{Op: "sign", Err: err}
	}
	signature, err := SignBytes(s.privKey, signBytes)
	if err != nil {
		return nil, &network.SignerError{Op: "sign", Err: err}
	}

	return &network.SignResponse{
		Signature:     signature,
		BodyBytes:     cloneBytes(req.Doc.BodyBytes),
		AuthInfoBytes: cloneBytes(req.Doc.AuthInfoBytes),
		PubKey:        s.privKey.PubKey().Bytes(),
	}, nil
}
