// pkg/network/cosmos/helpers_test.go
package cosmos

import (
	"testing"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

const testChainID = "test-1"

type testKey struct {
	priv    *secp256k1.PrivKey
	pub     *secp256k1.PubKey
	id      network.AccountID
	address string
}

func newTestKey(t *testing.T, codec AddressCodec, secret string) testKey {
	t.Helper()
	priv := secp256k1.GenPrivKeyFromSecret([]byte(secret))
	pub := &secp256k1.PubKey{Key: priv.PubKey().Bytes()}
	id := AddressFromPubKey(pub)
	addr, err := codec.Encode(id)
	require.NoError(t, err)
	return testKey{priv: priv, pub: pub, id: id, address: addr}
}

func mustCodec(t *testing.T, prefix string) AddressCodec {
	t.Helper()
	codec, err := NewAddressCodec(prefix)
	require.NoError(t, err)
	return codec
}
