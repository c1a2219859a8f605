// cmd/txpipe/config.go
package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/altuslabsxyz/txpipe/internal/config"
	"github.com/altuslabsxyz/txpipe/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the txpipe profile",
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a profile with default values",
		Long: `Init writes the default configuration, with any --chain-id, --prefix and
endpoint flags applied, to the profile path. A path ending in .toml is
written as TOML.`,
		Args: cobra.NoArgs,
		Annotations: map[string]string{
			skipConfig: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.NewLoader(flags.configPath).Path()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("profile already exists at %s (use --force to overwrite)", path)
			}

			c := config.DefaultConfig()
			f := cmd.Flags()
			set := func(name string, dst *string, v string) {
				if f.Changed(name) {
					*dst = v
				}
			}
			set("chain-id", &c.Chain.ID, flags.chainID)
			set("prefix", &c.Chain.Prefix, flags.prefix)
			set("rest", &c.Endpoints.REST, flags.rest)
			set("grpc", &c.Endpoints.GRPC, flags.grpc)
			set("rpc", &c.Endpoints.RPC, flags.rpc)
			set("transport", &c.Endpoints.Transport, flags.transport)
			if err := config.Validate(c); err != nil {
				return err
			}

			if err := config.Save(path, c); err != nil {
				return err
			}
			output.Success("Profile written to %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing profile")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var asTOML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show prints the configuration after merging the profile, TXPIPE_*
environment variables and flags. Private keys are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ToFile(cfg)

			logger := output.DefaultLogger
			if logger.IsJSONMode() {
				return logger.JSON(file)
			}

			var (
				data []byte
				err  error
			)
			if asTOML {
				data, err = toml.Marshal(file)
			} else {
				data, err = yaml.Marshal(file)
			}
			if err != nil {
				return err
			}
			logger.Println("# %s", config.NewLoader(flags.configPath).Path())
			logger.Print("%s", data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asTOML, "toml", false, "Print as TOML")

	return cmd
}
