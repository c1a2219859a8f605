// Package version provides version information and the txpipe version command.
package version

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Build-time variables injected via ldflags:
//
//	-X github.com/altuslabsxyz/txpipe/internal/version.Version={{.Version}}
//	-X github.com/altuslabsxyz/txpipe/internal/version.GitCommit={{.FullCommit}}
//	-X github.com/altuslabsxyz/txpipe/internal/version.BuildDate={{.Date}}
var (
	// Version is the semantic version of the application.
	// Defaults to "0.1.0-dev" for local builds.
	Version = "0.1.0-dev"

	// GitCommit is the git commit hash of the build.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// cosmosSDKPath is reported separately since it fixes the wire formats
// txpipe produces.
const cosmosSDKPath = "github.com/cosmos/cosmos-sdk"

// Info contains all version and build information.
type Info struct {
	Name      string   `json:"name" yaml:"name"`
	Version   string   `json:"version" yaml:"version"`
	GitCommit string   `json:"commit" yaml:"commit"`
	BuildDate string   `json:"build_date,omitempty" yaml:"build_date,omitempty"`
	GoVersion string   `json:"go" yaml:"go"`
	CosmosSDK string   `json:"cosmos_sdk_version,omitempty" yaml:"cosmos_sdk_version,omitempty"`
	BuildTags string   `json:"build_tags,omitempty" yaml:"build_tags,omitempty"`
	BuildDeps []string `json:"build_deps,omitempty" yaml:"build_deps,omitempty"`
}

// NewInfo creates a new Info struct for the named binary.
func NewInfo(name string) Info {
	info := Info{
		Name:      name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: fmt.Sprintf("go version %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.CosmosSDK = depVersion(buildInfo, cosmosSDKPath)
	}
	return info
}

func depVersion(buildInfo *debug.BuildInfo, path string) string {
	for _, dep := range buildInfo.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return ""
}

// WithBuildDeps populates the build dependencies from runtime/debug.
func (i Info) WithBuildDeps() Info {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}

	var buildTags []string
	for _, setting := range buildInfo.Settings {
		if setting.Key == "-tags" && setting.Value != "" {
			buildTags = append(buildTags, setting.Value)
		}
	}
	if len(buildTags) > 0 {
		i.BuildTags = strings.Join(buildTags, ",")
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		depStr := fmt.Sprintf("%s@%s", dep.Path, dep.Version)
		if dep.Replace != nil {
			depStr = fmt.Sprintf("%s@%s => %s@%s", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version)
		}
		deps = append(deps, depStr)
	}
	sort.Strings(deps)
	i.BuildDeps = deps

	return i
}

// String returns a formatted string representation of the version info.
func (i Info) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s version %s\n", i.Name, i.Version))
	sb.WriteString(fmt.Sprintf("  commit:     %s\n", i.GitCommit))
	sb.WriteString(fmt.Sprintf("  build date: %s\n", i.BuildDate))
	sb.WriteString(fmt.Sprintf("  go:         %s\n", i.GoVersion))
	if i.CosmosSDK != "" {
		sb.WriteString(fmt.Sprintf("  cosmos-sdk: %s\n", i.CosmosSDK))
	}
	return sb.String()
}

// LongString returns a detailed YAML-formatted string including build dependencies.
func (i Info) LongString() string {
	data, err := yaml.Marshal(i)
	if err != nil {
		return i.String()
	}
	return string(data)
}

// JSON returns the version info as a JSON string.
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NewCmd creates a version command for the named binary.
// The command supports:
//   - --long: Show detailed version info including build dependencies
//   - --json: Output in JSON format
func NewCmd(name string) *cobra.Command {
	var (
		long       bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version information including build details. Use --long for detailed dependency info.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := NewInfo(name)
			if long {
				info = info.WithBuildDeps()
			}
			return write(cmd.OutOrStdout(), info, long, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&long, "long", false, "Show detailed version info including build dependencies")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info in JSON format")

	return cmd
}

func write(w io.Writer, info Info, long, jsonOutput bool) error {
	if jsonOutput {
		out, err := info.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	}
	if long {
		_, err := fmt.Fprint(w, info.LongString())
		return err
	}
	_, err := fmt.Fprint(w, info.String())
	return err
}
