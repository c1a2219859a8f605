// internal/signer/keyring.go
package signer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"

	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// KeyringConfig locates a key in a Cosmos SDK keyring.
type KeyringConfig struct {
	// AppName namespaces the keyring (the chain daemon's name, e.g. "gaiad").
	AppName string

	// Backend is "os", "file", "test" or "memory".
	Backend string

	// Dir is the keyring home directory (ignored by "os" and "memory").
	Dir string

	// KeyName is the uid of the signing key.
	KeyName string
}

// Keyring is a signing oracle backed by a Cosmos SDK keyring.
type Keyring struct {
	kr    keyring.Keyring
	uid   string
	codec cosmos.AddressCodec
}

var _ network.SigningOracle = (*Keyring)(nil)

// OpenKeyring opens the keyring described by cfg. input feeds passphrase
// prompts of the file backend.
func OpenKeyring(cfg KeyringConfig, codec cosmos.AddressCodec, input io.Reader) (*Keyring, error) {
	if cfg.KeyName == "" {
		return nil, &network.ConfigError{Field: "signer.key_name", Message: "key name is required"}
	}
	appName := cfg.AppName
	if appName == "" {
		appName = "txpipe"
	}

	var (
		kr  keyring.Keyring
		err error
	)
	if cfg.Backend == keyring.BackendMemory {
		kr = keyring.NewInMemory(cosmos.NewCodec())
	} else {
		kr, err = keyring.New(appName, cfg.Backend, cfg.Dir, input, cosmos.NewCodec())
		if err != nil {
			return nil, &network.ConfigError{Field: "signer.keyring_backend", Message: err.Error()}
		}
	}
	return NewKeyring(kr, cfg.KeyName, codec), nil
}

// NewKeyring wraps an existing keyring.
func NewKeyring(kr keyring.Keyring, uid string, codec cosmos.AddressCodec) *Keyring {
	return &Keyring{kr: kr, uid: uid, codec: codec}
}

// Address returns the bech32 address of the configured key.
func (k *Keyring) Address() (string, error) {
	rec, err := k.kr.Key(k.uid)
	if err != nil {
		return "", k.keyError("address", err)
	}
	pub, err := rec.GetPubKey()
	if err != nil {
		return "", &network.SignerError{Op: "address", Err: err}
	}
	return k.codec.Encode(pub.Address())
}

// PubKey returns the compressed public key of the configured key.
func (k *Keyring) PubKey() ([]byte, error) {
	rec, err := k.kr.Key(k.uid)
	if err != nil {
		return nil, k.keyError("pubkey", err)
	}
	pub, err := rec.GetPubKey()
	if err != nil {
		return nil, &network.SignerError{Op: "pubkey", Err: err}
	}
	return pub.Bytes(), nil
}

// Enable checks that the key exists.
func (k *Keyring) Enable(ctx context.Context, chainID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := k.kr.Key(k.uid); err != nil {
		return k.keyError("enable", err)
	}
	return nil
}

// Sign signs the SignDoc with the configured key after checking that the key
// controls req.Signer.
func (k *Keyring) Sign(ctx context.Context, req *network.SignRequest) (*network.SignResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr, err := k.Address()
	if err != nil {
		return nil, err
	}
	if addr != req.Signer {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("key %q controls %s, not %s", k.uid, addr, req.Signer)}
	}

	signBytes, err := cosmos.SignDocBytes(req.Doc)
	if err != nil {
		return nil, &network.SignerError{Op: "sign", Err: err}
	}

	sig, pub, err := k.kr.Sign(k.uid, signBytes, signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return nil, &network.SignerError{Op: "sign", Err: err}
	}

	return &network.SignResponse{
		Signature:     sig,
		BodyBytes:     append([]byte(nil), req.Doc.BodyBytes...),
		AuthInfoBytes: append([]byte(nil), req.Doc.AuthInfoBytes...),
		PubKey:        pub.Bytes(),
	}, nil
}

func (k *Keyring) keyError(op string, err error) error {
	if errors.Is(err, sdkerrors.ErrKeyNotFound) {
		return &network.SignerError{Op: op, Err: fmt.Errorf("%w: key %q not in keyring", network.ErrSignerUnavailable, k.uid)}
	}
	return &network.SignerError{Op: op, Err: err}
}
