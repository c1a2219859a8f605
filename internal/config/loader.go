// internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// Environment variable names
const (
	EnvConfig         = "TXPIPE_CONFIG"
	EnvChainID        = "TXPIPE_CHAIN_ID"
	EnvPrefix         = "TXPIPE_PREFIX"
	EnvDenom          = "TXPIPE_DENOM"
	EnvREST           = "TXPIPE_REST"
	EnvGRPC           = "TXPIPE_GRPC"
	EnvRPC            = "TXPIPE_RPC"
	EnvTransport      = "TXPIPE_TRANSPORT"
	EnvBroadcastMode  = "TXPIPE_BROADCAST_MODE"
	EnvBlockTimeout   = "TXPIPE_BLOCK_TIMEOUT"
	EnvGasLimit       = "TXPIPE_GAS_LIMIT"
	EnvFee            = "TXPIPE_FEE"
	EnvGasPrice       = "TXPIPE_GAS_PRICE"
	EnvSigner         = "TXPIPE_SIGNER"
	EnvFrom           = "TXPIPE_FROM"
	EnvPubKey         = "TXPIPE_PUBKEY"
	EnvBridgeURL      = "TXPIPE_BRIDGE_URL"
	EnvKeyringBackend = "TXPIPE_KEYRING_BACKEND"
	EnvKeyringDir     = "TXPIPE_KEYRING_DIR"
	EnvKeyName        = "TXPIPE_KEY_NAME"
	EnvPrivateKey     = "TXPIPE_PRIVATE_KEY" //nolint:gosec // This is an env var name, not a credential
	EnvJournalPath    = "TXPIPE_JOURNAL_PATH"
	EnvBrokerDriver   = "TXPIPE_BROKER_DRIVER"
	EnvBrokerURL      = "TXPIPE_BROKER_URL"
	EnvBrokerTopic    = "TXPIPE_BROKER_TOPIC"
	EnvLogLevel       = "TXPIPE_LOG_LEVEL"
)

// Loader loads configuration from file, environment, and applies defaults.
type Loader struct {
	configPath string // explicit config path (empty = TXPIPE_CONFIG or default)
}

// NewLoader creates a new config loader. An explicit configPath must exist;
// the default path may be missing.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Path returns the profile path the loader reads.
func (l *Loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	if v := os.Getenv(EnvConfig); v != "" {
		return v
	}
	return DefaultConfigPath()
}

// Load loads configuration with priority: defaults < file < env.
// Returns fully populated Config ready for use.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	fileCfg, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergeFileConfig(cfg, fileCfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile loads and parses the profile. The format follows the extension:
// .toml is TOML, anything else YAML.
// Returns nil if the default profile does not exist (not an error).
func (l *Loader) loadFile() (*FileConfig, error) {
	path := l.Path()
	explicit := l.configPath != "" || os.Getenv(EnvConfig) != ""

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, nil
		}
		return nil, &network.ConfigError{Field: "config", Message: fmt.Sprintf("failed to read %s: %v", path, err)}
	}

	var fileCfg FileConfig
	if isTOML(path) {
		if err := toml.Unmarshal(data, &fileCfg); err != nil {
			return nil, &network.ConfigError{Field: "config", Message: fmt.Sprintf("invalid TOML in %s: %v", path, err)}
		}
	} else {
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, &network.ConfigError{Field: "config", Message: fmt.Sprintf("invalid YAML in %s: %v", path, err)}
		}
	}
	return &fileCfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(ToFile(cfg))
	} else {
		data, err = yaml.Marshal(ToFile(cfg))
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// mergeFileConfig merges non-nil FileConfig values into Config.
func mergeFileConfig(cfg *Config, file *FileConfig) error {
	setString(&cfg.Chain.ID, file.Chain.ID)
	setString(&cfg.Chain.Prefix, file.Chain.Prefix)
	setString(&cfg.Chain.Denom, file.Chain.Denom)

	setString(&cfg.Endpoints.REST, file.Endpoints.REST)
	setString(&cfg.Endpoints.GRPC, file.Endpoints.GRPC)
	setString(&cfg.Endpoints.RPC, file.Endpoints.RPC)
	setString(&cfg.Endpoints.Transport, file.Endpoints.Transport)

	setString(&cfg.Broadcast.Mode, file.Broadcast.Mode)
	if err := setDuration(&cfg.Broadcast.PollInterval, file.Broadcast.PollInterval, "broadcast.poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Broadcast.BlockTimeout, file.Broadcast.BlockTimeout, "broadcast.block_timeout"); err != nil {
		return err
	}

	if file.Fee.GasLimit != nil {
		cfg.Fee.GasLimit = *file.Fee.GasLimit
	}
	setString(&cfg.Fee.Amount, file.Fee.Amount)
	setString(&cfg.Fee.GasPrice, file.Fee.GasPrice)

	setString(&cfg.Signer.Type, file.Signer.Type)
	setString(&cfg.Signer.Address, file.Signer.Address)
	setString(&cfg.Signer.PubKey, file.Signer.PubKey)
	setString(&cfg.Signer.BridgeURL, file.Signer.BridgeURL)
	setString(&cfg.Signer.KeyringBackend, file.Signer.KeyringBackend)
	setString(&cfg.Signer.KeyringDir, file.Signer.KeyringDir)
	setString(&cfg.Signer.KeyName, file.Signer.KeyName)
	if file.Signer.Confirm != nil {
		cfg.Signer.Confirm = *file.Signer.Confirm
	}
	if err := setDuration(&cfg.Signer.Timeout, file.Signer.Timeout, "signer.timeout"); err != nil {
		return err
	}

	if file.Journal.Enabled != nil {
		cfg.Journal.Enabled = *file.Journal.Enabled
	}
	setString(&cfg.Journal.Path, file.Journal.Path)

	setString(&cfg.Broker.Driver, file.Broker.Driver)
	setString(&cfg.Broker.URL, file.Broker.URL)
	setString(&cfg.Broker.Topic, file.Broker.Topic)

	setString(&cfg.Log.Level, file.Log.Level)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return &network.ConfigError{Field: field, Message: fmt.Sprintf("invalid duration %q", *v)}
	}
	*dst = d
	return nil
}

// applyEnvVars applies environment variable overrides to config.
func applyEnvVars(cfg *Config) error {
	envString(&cfg.Chain.ID, EnvChainID)
	envString(&cfg.Chain.Prefix, EnvPrefix)
	envString(&cfg.Chain.Denom, EnvDenom)

	envString(&cfg.Endpoints.REST, EnvREST)
	envString(&cfg.Endpoints.GRPC, EnvGRPC)
	envString(&cfg.Endpoints.RPC, EnvRPC)
	envString(&cfg.Endpoints.Transport, EnvTransport)

	envString(&cfg.Broadcast.Mode, EnvBroadcastMode)
	if v := os.Getenv(EnvBlockTimeout); v != "" {
		if err := setDuration(&cfg.Broadcast.BlockTimeout, &v, EnvBlockTimeout); err != nil {
			return err
		}
	}

	if v := os.Getenv(EnvGasLimit); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &network.ConfigError{Field: EnvGasLimit, Message: fmt.Sprintf("invalid gas limit %q", v)}
		}
		cfg.Fee.GasLimit = limit
	}
	envString(&cfg.Fee.Amount, EnvFee)
	envString(&cfg.Fee.GasPrice, EnvGasPrice)

	envString(&cfg.Signer.Type, EnvSigner)
	envString(&cfg.Signer.Address, EnvFrom)
	envString(&cfg.Signer.PubKey, EnvPubKey)
	envString(&cfg.Signer.BridgeURL, EnvBridgeURL)
	envString(&cfg.Signer.KeyringBackend, EnvKeyringBackend)
	envString(&cfg.Signer.KeyringDir, EnvKeyringDir)
	envString(&cfg.Signer.KeyName, EnvKeyName)
	envString(&cfg.Signer.PrivateKey, EnvPrivateKey)

	envString(&cfg.Journal.Path, EnvJournalPath)

	envString(&cfg.Broker.Driver, EnvBrokerDriver)
	envString(&cfg.Broker.URL, EnvBrokerURL)
	envString(&cfg.Broker.Topic, EnvBrokerTopic)

	envString(&cfg.Log.Level, EnvLogLevel)
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
