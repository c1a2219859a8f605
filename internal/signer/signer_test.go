// internal/signer/signer_test.go
package signer

import (
	"testing"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// newSignRequest builds a real transfer SignRequest from pub to a fixed recipient.
func newSignRequest(t *testing.T, codec cosmos.AddressCodec, pub *secp256k1.PubKey, memo string) *network.SignRequest {
	t.Helper()
	sender := cosmos.AddressFromPubKey(pub)
	recipient := cosmos.AddressFromPubKey(&secp256k1.PubKey{Key: secp256k1.GenPrivKeyFromSecret([]byte("bob")).PubKey().Bytes()})

	unsigned, err := cosmos.NewBuilder(codec).BuildUnsigned(
		"test-1",
		network.TransferMessage{Sender: sender, Recipient: recipient, Denom: "uatom", Amount: "1000"},
		&network.Account{Address: sender, AccountNumber: 3, Sequence: 1},
		pub,
		network.Fee{GasLimit: 200000, Amount: sdk.NewCoins(sdk.NewInt64Coin("uatom", 5000))},
		memo,
	)
	require.NoError(t, err)

	addr, err := codec.Encode(sender)
	require.NoError(t, err)
	return &network.SignRequest{ChainID: "test-1", Signer: addr, Doc: unsigned.SignDoc()}
}

func mustCodec(t *testing.T) cosmos.AddressCodec {
	t.Helper()
	codec, err := cosmos.NewAddressCodec("cosmos")
	require.NoError(t, err)
	return codec
}
