// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/altuslabsxyz/txpipe/internal/broker"
)

// Signer types.
const (
	SignerBridge  = "bridge"
	SignerKeyring = "keyring"
	SignerKey     = "key"
)

// Config is the single source of truth for txpipe configuration.
// Priority: defaults < config file < environment variables < CLI flags
type Config struct {
	Chain     ChainConfig
	Endpoints EndpointsConfig
	Broadcast BroadcastConfig
	Fee       FeeConfig
	Signer    SignerConfig
	Journal   JournalConfig
	Broker    broker.Config
	Log       LogConfig
}

// ChainConfig identifies the target chain.
type ChainConfig struct {
	ID     string
	Prefix string

	// Denom is the default transfer denomination.
	Denom string
}

// EndpointsConfig holds node addresses.
type EndpointsConfig struct {
	REST string
	GRPC string
	RPC  string

	// Transport selects the broadcast transport (rest, grpc or rpc).
	Transport string
}

// BroadcastConfig controls submission.
type BroadcastConfig struct {
	Mode         string
	PollInterval time.Duration
	BlockTimeout time.Duration
}

// FeeConfig holds the fee limit. Amount and GasPrice are mutually exclusive.
type FeeConfig struct {
	GasLimit uint64
	Amount   string
	GasPrice string
}

// SignerConfig selects and configures the signing oracle.
type SignerConfig struct {
	Type string

	// Address is the sender's bech32 address.
	Address string

	// PubKey is the sender's compressed public key in hex. Required for the
	// bridge signer; keyring and key signers derive it.
	PubKey string

	// BridgeURL is the wallet bridge base URL.
	BridgeURL string

	KeyringBackend string
	KeyringDir     string
	KeyName        string

	// PrivateKey is a hex private key for the key signer. It is only read
	// from the environment, never from or to a file.
	PrivateKey string

	// Confirm asks for interactive confirmation before every signature.
	Confirm bool

	Timeout time.Duration
}

// JournalConfig controls the attempt journal.
type JournalConfig struct {
	Enabled bool
	Path    string
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string
}

// DefaultHomeDir returns the default txpipe home directory.
func DefaultHomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".txpipe")
}

// DefaultConfigPath returns the default profile path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultHomeDir(), "config.yaml")
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	home := DefaultHomeDir()
	return &Config{
		Chain: ChainConfig{
			Prefix: "cosmos",
			Denom:  "uatom",
		},
		Broadcast: BroadcastConfig{
			Mode:         "block",
			PollInterval: time.Second,
			BlockTimeout: 60 * time.Second,
		},
		Fee: FeeConfig{
			GasLimit: 200000,
		},
		Signer: SignerConfig{
			Type:           SignerBridge,
			BridgeURL:      "http://127.0.0.1:8765",
			KeyringBackend: "os",
			KeyringDir:     home,
			Confirm:        true,
			Timeout:        2 * time.Minute,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(home, "journal.db"),
		},
		Broker: broker.Config{
			Driver: "none",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}
