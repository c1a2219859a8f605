// internal/config/validate.go
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidSignerTypes are the allowed signer.type values.
var ValidSignerTypes = []string{SignerBridge, SignerKeyring, SignerKey}

// ValidTransports are the allowed endpoints.transport values.
var ValidTransports = []string{"", "rest", "grpc", "rpc"}

// Validate checks that every set value is well formed. Required values are
// checked by the command that needs them.
func Validate(cfg *Config) error {
	var errs []string

	if !slices.Contains(ValidLogLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level %q (must be one of: %s)",
			cfg.Log.Level, strings.Join(ValidLogLevels, ", ")))
	}

	if cfg.Chain.Prefix != "" && strings.ToLower(cfg.Chain.Prefix) != cfg.Chain.Prefix {
		errs = append(errs, fmt.Sprintf("chain.prefix %q must be lower case", cfg.Chain.Prefix))
	}

	if !slices.Contains(ValidTransports, strings.ToLower(cfg.Endpoints.Transport)) {
		errs = append(errs, fmt.Sprintf("invalid endpoints.transport %q (must be one of: rest, grpc, rpc)", cfg.Endpoints.Transport))
	}

	if _, err := network.ParseBroadcastMode(cfg.Broadcast.Mode); err != nil {
		errs = append(errs, fmt.Sprintf("invalid broadcast.mode %q (must be one of: block, sync, async)", cfg.Broadcast.Mode))
	}
	if cfg.Broadcast.PollInterval < 0 {
		errs = append(errs, "broadcast.poll_interval must be non-negative")
	}
	if cfg.Broadcast.BlockTimeout < 0 {
		errs = append(errs, "broadcast.block_timeout must be non-negative")
	}

	if cfg.Fee.Amount != "" && cfg.Fee.GasPrice != "" {
		errs = append(errs, "set either fee.amount or fee.gas_price, not both")
	}

	if !slices.Contains(ValidSignerTypes, cfg.Signer.Type) {
		errs = append(errs, fmt.Sprintf("invalid signer.type %q (must be one of: %s)",
			cfg.Signer.Type, strings.Join(ValidSignerTypes, ", ")))
	}
	if cfg.Signer.Type == SignerBridge && cfg.Signer.BridgeURL == "" {
		errs = append(errs, "signer.bridge_url is required for the bridge signer")
	}
	if cfg.Signer.Timeout < 0 {
		errs = append(errs, "signer.timeout must be non-negative")
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if err := cfg.Broker.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return &network.ConfigError{Message: fmt.Sprintf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))}
	}
	return nil
}
