// cmd/txpipe/root.go
package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txpipe/internal/config"
	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/internal/pipeline"
	"github.com/altuslabsxyz/txpipe/internal/version"
)

// skipConfig marks commands that run without loading the profile.
const skipConfig = "txpipe/skip-config"

// globalFlags are the persistent flags shared by every command. Values are
// applied over the loaded profile only when set on the command line.
type globalFlags struct {
	configPath string
	jsonOutput bool
	verbose    bool
	noColor    bool
	logLevel   string

	chainID   string
	prefix    string
	rest      string
	grpc      string
	rpc       string
	transport string
}

var (
	flags globalFlags

	// cfg is the effective configuration of the running command.
	cfg *config.Config
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "txpipe",
		Short: "Sign and broadcast Cosmos SDK transfers",
		Long: `txpipe builds a bank transfer, has it signed by a wallet bridge, a keyring
or a local key, and broadcasts it to a Cosmos SDK chain.

Configuration is read from ~/.txpipe/config.yaml (or --config), overridden
by TXPIPE_* environment variables and then by command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupOutput()
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			loaded, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.Log.Level)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Profile path (default ~/.txpipe/config.yaml)")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&flags.logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	pf.StringVar(&flags.chainID, "chain-id", "", "Chain ID")
	pf.StringVar(&flags.prefix, "prefix", "", "Bech32 account prefix")
	pf.StringVar(&flags.rest, "rest", "", "REST (gRPC-gateway) endpoint")
	pf.StringVar(&flags.grpc, "grpc", "", "gRPC endpoint")
	pf.StringVar(&flags.rpc, "rpc", "", "CometBFT RPC endpoint")
	pf.StringVar(&flags.transport, "transport", "", "Broadcast transport (rest, grpc, rpc)")

	rootCmd.AddCommand(
		newSendCmd(),
		newAccountCmd(),
		newTxCmd(),
		newAddrCmd(),
		newNodeCmd(),
		newJournalCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := version.NewCmd("txpipe")
	cmd.Annotations = map[string]string{skipConfig: "true"}
	return cmd
}

func setupOutput() {
	logger := output.DefaultLogger
	logger.SetVerbose(flags.verbose)
	logger.SetJSONMode(flags.jsonOutput)
	if flags.noColor {
		logger.SetNoColor(true)
	}
}

// loadConfig loads the profile and applies flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loaded, err := config.NewLoader(flags.configPath).Load()
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	override("chain-id", &loaded.Chain.ID, flags.chainID)
	override("prefix", &loaded.Chain.Prefix, flags.prefix)
	override("rest", &loaded.Endpoints.REST, flags.rest)
	override("grpc", &loaded.Endpoints.GRPC, flags.grpc)
	override("rpc", &loaded.Endpoints.RPC, flags.rpc)
	override("transport", &loaded.Endpoints.Transport, flags.transport)
	override("log-level", &loaded.Log.Level, flags.logLevel)
	if flags.verbose && !f.Changed("log-level") {
		loaded.Log.Level = "debug"
	}
	if err := config.Validate(loaded); err != nil {
		return nil, err
	}
	return loaded, nil
}

// setupLogging routes diagnostic slog output to stderr at level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if flags.jsonOutput {
		handler = slog.NewJSONHandler(output.DefaultLogger.ErrWriter(), opts)
	} else {
		handler = slog.NewTextHandler(output.DefaultLogger.ErrWriter(), opts)
	}
	slog.SetDefault(slog.New(handler))
}

// endpoints converts the loaded endpoint settings for pipeline.Dial.
func endpoints(c *config.Config) pipeline.Endpoints {
	return pipeline.Endpoints{
		REST:         c.Endpoints.REST,
		GRPC:         c.Endpoints.GRPC,
		RPC:          c.Endpoints.RPC,
		Broadcast:    c.Endpoints.Transport,
		PollInterval: c.Broadcast.PollInterval,
		BlockTimeout: c.Broadcast.BlockTimeout,
	}
}

// requireChainID fails early when no chain id is configured.
func requireChainID(c *config.Config) error {
	if c.Chain.ID == "" {
		return fmt.Errorf("chain id is required: set chain.id in %s, %s or --chain-id",
			config.NewLoader(flags.configPath).Path(), config.EnvChainID)
	}
	return nil
}
