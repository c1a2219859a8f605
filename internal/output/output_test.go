package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hintedError struct{}

func (hintedError) Error() string        { return "outcome unknown" }
func (hintedError) RecoveryHint() string { return "run: txpipe tx ABCD" }

func newTestLogger() (*Logger, *bytes.Buffer, *bytes.Buffer) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	return NewLoggerWithWriters(&out, &errOut), &out, &errOut
}

func TestLoggerTextMode(t *testing.T) {
	l, out, errOut := newTestLogger()

	l.Info("sending %s", "1000uatom")
	l.Success("included at height %d", 42)
	l.Field("tx hash", "ABCD")
	l.Warn("journal disabled")
	l.Debug("hidden")

	assert.Contains(t, out.String(), "sending 1000uatom\n")
	assert.Contains(t, out.String(), "✓ included at height 42\n")
	assert.Contains(t, out.String(), "tx hash:")
	assert.Contains(t, errOut.String(), "Warning: journal disabled")
	assert.NotContains(t, errOut.String(), "hidden")

	l.SetVerbose(true)
	l.Debug("shown")
	assert.Contains(t, errOut.String(), "[DEBUG] shown")
}

func TestLoggerJSONMode(t *testing.T) {
	l, out, errOut := newTestLogger()
	l.SetJSONMode(true)

	l.Info("suppressed")
	l.Success("suppressed")
	require.NoError(t, l.JSON(map[string]string{"tx_hash": "ABCD"}))
	l.Error("still printed")

	var got map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "ABCD", got["tx_hash"])
	assert.Contains(t, errOut.String(), "Error: still printed")
}

func TestPrintError(t *testing.T) {
	l, _, errOut := newTestLogger()

	l.PrintError(fmt.Errorf("send failed: %w", hintedError{}))
	assert.Contains(t, errOut.String(), "Error: send failed: outcome unknown")
	assert.Contains(t, errOut.String(), "Hint: run: txpipe tx ABCD")

	errOut.Reset()
	l.PrintError(errors.New("plain"))
	assert.NotContains(t, errOut.String(), "Hint:")

	assert.Empty(t, GetRecoveryHint(nil))
}

func TestStatusSpinnerDisabled(t *testing.T) {
	var out bytes.Buffer
	s := NewStatusSpinnerWithWriter(&out, false)

	s.Start("waiting for inclusion")
	s.Update("still waiting")
	s.Stop()

	assert.Empty(t, out.String())
	assert.Equal(t, "still waiting", s.Message())
}
