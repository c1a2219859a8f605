// cmd/txpipe/signer.go
package main

import (
	"fmt"
	"os"

	"github.com/altuslabsxyz/txpipe/internal/config"
	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/internal/signer"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// sender is the signing identity resolved from the signer settings.
type sender struct {
	oracle  network.SigningOracle
	address string
	pubKey  []byte
}

// openSigner builds the configured signing oracle and the sender identity
// it signs for. With confirm set, every signature needs interactive approval.
func openSigner(c *config.Config, codec cosmos.AddressCodec, confirm bool) (*sender, error) {
	s, err := openOracle(c, codec)
	if err != nil {
		return nil, err
	}
	if c.Signer.Address != "" {
		if _, err := codec.Decode(c.Signer.Address); err != nil {
			return nil, err
		}
		s.address = c.Signer.Address
	}
	if s.address == "" {
		return nil, &network.ConfigError{Field: "signer.address", Message: "sender address is required"}
	}
	if confirm {
		s.oracle = signer.NewConfirm(s.oracle, signer.WithSummaryWriter(output.DefaultLogger.ErrWriter()))
	}
	return s, nil
}

func openOracle(c *config.Config, codec cosmos.AddressCodec) (*sender, error) {
	switch c.Signer.Type {
	case config.SignerBridge:
		bridge, err := signer.NewBridge(c.Signer.BridgeURL, nil)
		if err != nil {
			return nil, err
		}
		if c.Signer.PubKey == "" {
			return nil, &network.ConfigError{Field: "signer.pubkey", Message: "the bridge signer needs the sender's public key (hex)"}
		}
		pub, err := cosmos.PubKeyFromHex(c.Signer.PubKey)
		if err != nil {
			return nil, err
		}
		return &sender{oracle: bridge, pubKey: pub.Bytes()}, nil

	case config.SignerKeyring:
		kr, err := signer.OpenKeyring(signer.KeyringConfig{
			Backend: c.Signer.KeyringBackend,
			Dir:     c.Signer.KeyringDir,
			KeyName: c.Signer.KeyName,
		}, codec, os.Stdin)
		if err != nil {
			return nil, err
		}
		addr, err := kr.Address()
		if err != nil {
			return nil, err
		}
		pub, err := kr.PubKey()
		if err != nil {
			return nil, err
		}
		return &sender{oracle: kr, address: addr, pubKey: pub}, nil

	case config.SignerKey:
		if c.Signer.PrivateKey == "" {
			return nil, &network.ConfigError{
				Field:   "signer.private_key",
				Message: fmt.Sprintf("the key signer reads its key from %s", config.EnvPrivateKey),
			}
		}
		ks, err := cosmos.NewKeySignerFromHex(c.Signer.PrivateKey, codec)
		if err != nil {
			return nil, err
		}
		return &sender{oracle: ks, address: ks.Address(), pubKey: ks.PubKey().Bytes()}, nil

	default:
		return nil, &network.ConfigError{Field: "signer.type", Message: fmt.Sprintf("unknown signer %q", c.Signer.Type)}
	}
}
