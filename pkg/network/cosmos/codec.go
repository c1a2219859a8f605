// Package cosmos implements the network ports for Cosmos SDK chains.
package cosmos

import (
	"encoding/hex"
	"fmt"
	"strings"

	"cosmossdk.io/core/address"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// maxAddressLen mirrors the SDK's address length limit.
const maxAddressLen = 255

// AddressCodec converts between bech32 strings and raw account bytes for a
// single human-readable prefix. It carries its prefix explicitly, so codecs
// for different chains can be used concurrently.
type AddressCodec struct {
	prefix string
}

var _ address.Codec = AddressCodec{}

// NewAddressCodec creates a codec bound to prefix (e.g. "cosmos", "osmo").
func NewAddressCodec(prefix string) (AddressCodec, error) {
	if prefix == "" {
		return AddressCodec{}, &network.ConfigError{Field: "bech32_prefix", Message: "cannot be empty"}
	}
	if strings.ToLower(prefix) != prefix {
		return AddressCodec{}, &network.ConfigError{Field: "bech32_prefix", Message: fmt.Sprintf("%q must be lower case", prefix)}
	}
	return AddressCodec{prefix: prefix}, nil
}

// Prefix returns the configured human-readable prefix.
func (c AddressCodec) Prefix() string {
	return c.prefix
}

// Decode parses a bech32 address and enforces the codec's prefix.
func (c AddressCodec) Decode(s string) (network.AccountID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &network.InvalidFormatError{Input: s, Reason: "empty address"}
	}

	hrp, bz, err := bech32.DecodeAndConvert(s)
	if err != nil {
		return nil, &network.InvalidFormatError{Input: s, Reason: err.Error()}
	}
	if hrp != c.prefix {
		return nil, &network.PrefixMismatchError{Address: s, Expected: c.prefix, Got: hrp}
	}
	if err := verifyAddressLen(bz); err != nil {
		return nil, &network.InvalidFormatError{Input: s, Reason: err.Error()}
	}

	return network.AccountID(bz), nil
}

// Encode renders raw account bytes as a bech32 string.
func (c AddressCodec) Encode(bz []byte) (string, error) {
	if err := verifyAddressLen(bz); err != nil {
		return "", &network.InvalidFormatError{Input: hex.EncodeToString(bz), Reason: err.Error()}
	}

	s, err := bech32.ConvertAndEncode(c.prefix, bz)
	if err != nil {
		return "", &network.InvalidFormatError{Input: hex.EncodeToString(bz), Reason: err.Error()}
	}
	return s, nil
}

// StringToBytes implements address.Codec.
func (c AddressCodec) StringToBytes(text string) ([]byte, error) {
	return c.Decode(text)
}

// BytesToString implements address.Codec.
func (c AddressCodec) BytesToString(bz []byte) (string, error) {
	return c.Encode(bz)
}

// Reencode converts an address from any prefix into this codec's prefix.
func (c AddressCodec) Reencode(s string) (string, error) {
	bz, err := decodeAnyPrefix(s)
	if err != nil {
		return "", &network.InvalidFormatError{Input: s, Reason: err.Error()}
	}
	return c.Encode(bz)
}

// decodeAnyPrefix returns the payload of a bech32 address without
// checking its prefix.
func decodeAnyPrefix(s string) (network.AccountID, error) {
	_, bz, err := bech32.DecodeAndConvert(s)
	if err != nil {
		return nil, err
	}
	return network.AccountID(bz), verifyAddressLen(bz)
}

func verifyAddressLen(bz []byte) error {
	if len(bz) == 0 {
		return fmt.Errorf("empty address bytes")
	}
	if len(bz) > maxAddressLen {
		return fmt.Errorf("address length %d exceeds maximum %d", len(bz), maxAddressLen)
	}
	return nil
}

// PubKeyFromHex parses a compressed secp256k1 public key from hex.
// A leading "0x" is accepted.
func PubKeyFromHex(s string) (*secp256k1.PubKey, error) {
	normalized := strings.TrimSpace(s)
	if strings.HasPrefix(normalized, "0x") || strings.HasPrefix(normalized, "0X") {
		normalized = normalized[2:]
	}

	bz, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, &network.InvalidFormatError{Input: s, Reason: "public key is not valid hex"}
	}
	return PubKeyFromBytes(bz)
}

// PubKeyFromBytes wraps a 33-byte compressed secp256k1 key.
func PubKeyFromBytes(bz []byte) (*secp256k1.PubKey, error) {
	if len(bz) != secp256k1.PubKeySize {
		return nil, &network.InvalidFormatError{
			Input:  hex.EncodeToString(bz),
			Reason: fmt.Sprintf("public key must be %d bytes, got %d", secp256k1.PubKeySize, len(bz)),
		}
	}
	if bz[0] != 0x02 && bz[0] != 0x03 {
		return nil, &network.InvalidFormatError{Input: hex.EncodeToString(bz), Reason: "public key is not in compressed form"}
	}
	return &secp256k1.PubKey{Key: append([]byte(nil), bz...)}, nil
}

// AddressFromPubKey derives the account bytes controlled by pubKey.
func AddressFromPubKey(pubKey *secp256k1.PubKey) network.AccountID {
	return network.AccountID(pubKey.Address())
}
