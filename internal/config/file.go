// internal/config/file.go
package config

import "time"

// FileConfig represents the raw profile file contents, in YAML or TOML.
// All fields are pointers to distinguish "not set" from "set to zero/false".
type FileConfig struct {
	Chain     FileChainConfig     `yaml:"chain" toml:"chain"`
	Endpoints FileEndpointsConfig `yaml:"endpoints" toml:"endpoints"`
	Broadcast FileBroadcastConfig `yaml:"broadcast" toml:"broadcast"`
	Fee       FileFeeConfig       `yaml:"fee" toml:"fee"`
	Signer    FileSignerConfig    `yaml:"signer" toml:"signer"`
	Journal   FileJournalConfig   `yaml:"journal" toml:"journal"`
	Broker    FileBrokerConfig    `yaml:"broker" toml:"broker"`
	Log       FileLogConfig       `yaml:"log" toml:"log"`
}

// FileChainConfig is the file representation of ChainConfig.
type FileChainConfig struct {
	ID     *string `yaml:"id,omitempty" toml:"id,omitempty"`
	Prefix *string `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Denom  *string `yaml:"denom,omitempty" toml:"denom,omitempty"`
}

// FileEndpointsConfig is the file representation of EndpointsConfig.
type FileEndpointsConfig struct {
	REST      *string `yaml:"rest,omitempty" toml:"rest,omitempty"`
	GRPC      *string `yaml:"grpc,omitempty" toml:"grpc,omitempty"`
	RPC       *string `yaml:"rpc,omitempty" toml:"rpc,omitempty"`
	Transport *string `yaml:"transport,omitempty" toml:"transport,omitempty"`
}

// FileBroadcastConfig is the file representation of BroadcastConfig.
// Uses strings for duration values since TOML cannot decode directly to time.Duration.
type FileBroadcastConfig struct {
	Mode         *string `yaml:"mode,omitempty" toml:"mode,omitempty"`
	PollInterval *string `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty"`
	BlockTimeout *string `yaml:"block_timeout,omitempty" toml:"block_timeout,omitempty"`
}

// FileFeeConfig is the file representation of FeeConfig.
type FileFeeConfig struct {
	GasLimit *uint64 `yaml:"gas_limit,omitempty" toml:"gas_limit,omitempty"`
	Amount   *string `yaml:"amount,omitempty" toml:"amount,omitempty"`
	GasPrice *string `yaml:"gas_price,omitempty" toml:"gas_price,omitempty"`
}

// FileSignerConfig is the file representation of SignerConfig.
type FileSignerConfig struct {
	Type           *string `yaml:"type,omitempty" toml:"type,omitempty"`
	Address        *string `yaml:"address,omitempty" toml:"address,omitempty"`
	PubKey         *string `yaml:"pubkey,omitempty" toml:"pubkey,omitempty"`
	BridgeURL      *string `yaml:"bridge_url,omitempty" toml:"bridge_url,omitempty"`
	KeyringBackend *string `yaml:"keyring_backend,omitempty" toml:"keyring_backend,omitempty"`
	KeyringDir     *string `yaml:"keyring_dir,omitempty" toml:"keyring_dir,omitempty"`
	KeyName        *string `yaml:"key_name,omitempty" toml:"key_name,omitempty"`
	Confirm        *bool   `yaml:"confirm,omitempty" toml:"confirm,omitempty"`
	Timeout        *string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// FileJournalConfig is the file representation of JournalConfig.
type FileJournalConfig struct {
	Enabled *bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Path    *string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// FileBrokerConfig is the file representation of broker.Config.
type FileBrokerConfig struct {
	Driver *string `yaml:"driver,omitempty" toml:"driver,omitempty"`
	URL    *string `yaml:"url,omitempty" toml:"url,omitempty"`
	Topic  *string `yaml:"topic,omitempty" toml:"topic,omitempty"`
}

// FileLogConfig is the file representation of LogConfig.
type FileLogConfig struct {
	Level *string `yaml:"level,omitempty" toml:"level,omitempty"`
}

// IsEmpty returns true if no configuration values are set.
func (f *FileConfig) IsEmpty() bool {
	return *f == FileConfig{}
}

// ToFile renders cfg as a fully populated FileConfig for writing.
// The private key is never included.
func ToFile(cfg *Config) *FileConfig {
	durationString := func(d time.Duration) *string {
		s := d.String()
		return &s
	}
	return &FileConfig{
		Chain: FileChainConfig{
			ID:     &cfg.Chain.ID,
			Prefix: &cfg.Chain.Prefix,
			Denom:  &cfg.Chain.Denom,
		},
		Endpoints: FileEndpointsConfig{
			REST:      &cfg.Endpoints.REST,
			GRPC:      &cfg.Endpoints.GRPC,
			RPC:       &cfg.Endpoints.RPC,
			Transport: &cfg.Endpoints.Transport,
		},
		Broadcast: FileBroadcastConfig{
			Mode:         &cfg.Broadcast.Mode,
			PollInterval: durationString(cfg.Broadcast.PollInterval),
			BlockTimeout: durationString(cfg.Broadcast.BlockTimeout),
		},
		Fee: FileFeeConfig{
			GasLimit: &cfg.Fee.GasLimit,
			Amount:   &cfg.Fee.Amount,
			GasPrice: &cfg.Fee.GasPrice,
		},
		Signer: FileSignerConfig{
			Type:           &cfg.Signer.Type,
			Address:        &cfg.Signer.Address,
			PubKey:         &cfg.Signer.PubKey,
			BridgeURL:      &cfg.Signer.BridgeURL,
			KeyringBackend: &cfg.Signer.KeyringBackend,
			KeyringDir:     &cfg.Signer.KeyringDir,
			KeyName:        &cfg.Signer.KeyName,
			Confirm:        &cfg.Signer.Confirm,
			Timeout:        durationString(cfg.Signer.Timeout),
		},
		Journal: FileJournalConfig{
			Enabled: &cfg.Journal.Enabled,
			Path:    &cfg.Journal.Path,
		},
		Broker: FileBrokerConfig{
			Driver: &cfg.Broker.Driver,
			URL:    &cfg.Broker.URL,
			Topic:  &cfg.Broker.Topic,
		},
		Log: FileLogConfig{
			Level: &cfg.Log.Level,
		},
	}
}
