// cmd/txpipe/main_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txpipe/internal/config"
	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/internal/pipeline"
	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// runCLI executes the root command with args and captures its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out, errOut bytes.Buffer
	prev := output.DefaultLogger
	output.DefaultLogger = output.NewLoggerWithWriters(&out, &errOut)
	t.Cleanup(func() {
		output.DefaultLogger = prev
		flags = globalFlags{}
		cfg = nil
	})

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testAddress(t *testing.T, prefix string) string {
	t.Helper()
	codec, err := cosmos.NewAddressCodec(prefix)
	require.NoError(t, err)
	addr, err := codec.Encode(bytes.Repeat([]byte{0x2a}, 20))
	require.NoError(t, err)
	return addr
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"user rejected", &network.SignerError{Op: "sign", Err: network.ErrUserRejected}, exitCanceled},
		{"interrupted", fmt.Errorf("send: %w", context.Canceled), exitCanceled},
		{"ledger rejected", &network.LedgerRejectedError{Code: 5}, exitError},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestReportError(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	logger := output.NewLoggerWithWriters(&out, &errOut)

	reportError(logger, &network.SignerError{Op: "sign", Err: network.ErrUserRejected})
	assert.True(t, strings.HasPrefix(errOut.String(), "Canceled: "))
	assert.NotContains(t, errOut.String(), "Error:")
	assert.NotContains(t, errOut.String(), "Hint:")

	errOut.Reset()
	reportError(logger, fmt.Errorf("send: %w", context.Canceled))
	assert.True(t, strings.HasPrefix(errOut.String(), "Canceled: "))

	errOut.Reset()
	reportError(logger, &network.OutcomeUnknownError{TxHash: "ABCD", Err: context.Canceled})
	assert.True(t, strings.HasPrefix(errOut.String(), "Canceled: "))
	assert.Contains(t, errOut.String(), "txpipe tx ABCD")

	errOut.Reset()
	reportError(logger, &network.OutcomeUnknownError{TxHash: "ABCD"})
	assert.Contains(t, errOut.String(), "Error:")
	assert.Contains(t, errOut.String(), "Hint:")

	errOut.Reset()
	reportError(logger, nil)
	assert.Empty(t, errOut.String())
	assert.Empty(t, out.String())
}

func TestAddrCmd(t *testing.T) {
	src := testAddress(t, "cosmos")
	want := testAddress(t, "osmo")

	out, err := runCLI(t, "addr", src, "osmo")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	out, err = runCLI(t, "--json", "addr", src, "osmo")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, want, got["address"])

	_, err = runCLI(t, "addr", "not-an-address", "osmo")
	assert.ErrorIs(t, err, network.ErrInvalidFormat)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")

	_, err := runCLI(t, "--config", path, "--chain-id", "test-1", "--rest", "http://localhost:1317", "config", "init")
	require.NoError(t, err)

	loaded, err := config.NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "test-1", loaded.Chain.ID)
	assert.Equal(t, "http://localhost:1317", loaded.Endpoints.REST)
	assert.Equal(t, "cosmos", loaded.Chain.Prefix)

	_, err = runCLI(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = runCLI(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigShowOmitsPrivateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, config.DefaultConfig()))
	t.Setenv(config.EnvPrivateKey, "deadbeef")

	out, err := runCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "bridge_url")
	assert.NotContains(t, out, "deadbeef")
}

func TestSendRequiresChainID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, config.DefaultConfig()))
	t.Setenv(config.EnvChainID, "")

	_, err := runCLI(t, "--config", path, "send", testAddress(t, "cosmos"), "100")
	assert.ErrorContains(t, err, "chain id is required")
}

func TestSendKeySignerWithoutKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, config.DefaultConfig()))
	t.Setenv(config.EnvPrivateKey, "")

	_, err := runCLI(t, "--config", path, "--chain-id", "test-1", "--rest", "http://localhost:1317",
		"send", testAddress(t, "cosmos"), "100", "--signer", "key", "--yes")
	assert.ErrorIs(t, err, network.ErrConfig)
}

func TestInvalidProfileIsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := config.DefaultConfig()
	c.Broadcast.Mode = "eventually"
	require.NoError(t, config.Save(path, c))

	_, err := runCLI(t, "--config", path, "account", testAddress(t, "cosmos"))
	assert.ErrorIs(t, err, network.ErrConfig)
}

func TestNewSendResult(t *testing.T) {
	outcome := &pipeline.Outcome{
		State:     pipeline.StateFailed,
		AttemptID: "a1",
		TxHash:    "ABCD",
		Result:    network.NewBroadcastResult(5, "sdk", "insufficient funds", "ABCD", 9, network.BroadcastModeBlock),
	}
	r := newSendResult(outcome, &network.LedgerRejectedError{Code: 5, Codespace: "sdk", RawLog: "insufficient funds"})

	assert.Equal(t, "failed", r.State)
	assert.Equal(t, uint32(5), r.Code)
	assert.Equal(t, "insufficient funds", r.RawLog)
	assert.NotEmpty(t, r.Error)

	r = newSendResult(nil, errors.New("dial failed"))
	assert.Empty(t, r.State)
	assert.Equal(t, "dial failed", r.Error)
}

func TestProgressHookStopsSpinner(t *testing.T) {
	var buf bytes.Buffer
	spinner := output.NewStatusSpinnerWithWriter(&buf, false)
	hook := progressHook(spinner, network.BroadcastModeSync)

	hook(pipeline.StateSigned)
	assert.Equal(t, "Broadcasting...", spinner.Message())
	hook(pipeline.StateSuccess)
	assert.Empty(t, buf.String())
}

func TestPrintSendOutcome(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	logger := output.NewLoggerWithWriters(&out, &errOut)

	outcome := &pipeline.Outcome{
		State:     pipeline.StateSuccess,
		AttemptID: "a1",
		TxHash:    "ABCD",
		Result:    network.NewBroadcastResult(0, "", "", "ABCD", 42, network.BroadcastModeBlock),
	}
	printSendOutcome(logger, outcome, network.BroadcastModeBlock)
	assert.Contains(t, out.String(), "Transfer included in block 42")
	assert.Contains(t, out.String(), "ABCD")
	assert.NotContains(t, out.String(), "txpipe tx")

	out.Reset()
	outcome.Result = network.NewBroadcastResult(0, "", "", "ABCD", 0, network.BroadcastModeSync)
	printSendOutcome(logger, outcome, network.BroadcastModeSync)
	assert.Contains(t, out.String(), "mempool")
	assert.Contains(t, out.String(), "txpipe tx ABCD")
}
