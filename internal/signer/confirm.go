// internal/signer/confirm.go
package signer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/manifoldco/promptui"

	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// ConfirmFunc shows summary and reports whether the user approved.
// Returning promptui.ErrAbort, ErrInterrupt or ErrEOF counts as a decline.
type ConfirmFunc func(summary string) (bool, error)

// Confirm wraps an oracle with an interactive approval step shown before
// every signature.
type Confirm struct {
	next    network.SigningOracle
	confirm ConfirmFunc
	out     io.Writer
}

var _ network.SigningOracle = (*Confirm)(nil)

// ConfirmOption configures a Confirm.
type ConfirmOption func(*Confirm)

// WithConfirmFunc replaces the promptui prompt.
func WithConfirmFunc(fn ConfirmFunc) ConfirmOption {
	return func(c *Confirm) { c.confirm = fn }
}

// WithSummaryWriter sets where the transfer summary is printed (default stderr).
func WithSummaryWriter(w io.Writer) ConfirmOption {
	return func(c *Confirm) { c.out = w }
}

// NewConfirm wraps next with a confirmation prompt.
func NewConfirm(next network.SigningOracle, opts ...ConfirmOption) *Confirm {
	c := &Confirm{
		next:    next,
		confirm: promptConfirm,
		out:     os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enable delegates to the wrapped oracle.
func (c *Confirm) Enable(ctx context.Context, chainID string) error {
	return c.next.Enable(ctx, chainID)
}

// Sign asks for approval, then delegates. A decline is ErrUserRejected.
func (c *Confirm) Sign(ctx context.Context, req *network.SignRequest) (*network.SignResponse, error) {
	summary, err := Summarize(req)
	if err != nil {
		return nil, &network.SignerError{Op: "confirm", Err: err}
	}
	fmt.Fprintln(c.out, summary)

	type answer struct {
		ok  bool
		err error
	}
	done := make(chan answer, 1)
	go func() {
		ok, err := c.confirm(summary)
		done <- answer{ok: ok, err: err}
	}()

	// The prompt goroutine cannot be interrupted; on cancellation it is
	// abandoned and ends with the process.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-done:
		if a.err != nil {
			if isDecline(a.err) {
				return nil, &network.SignerError{Op: "confirm", Err: fmt.Errorf("%w: %v", network.ErrUserRejected, a.err)}
			}
			return nil, &network.SignerError{Op: "confirm", Err: a.err}
		}
		if !a.ok {
			return nil, &network.SignerError{Op: "confirm", Err: fmt.Errorf("%w: declined at prompt", network.ErrUserRejected)}
		}
	}

	return c.next.Sign(ctx, req)
}

func isDecline(err error) bool {
	return errors.Is(err, promptui.ErrAbort) ||
		errors.Is(err, promptui.ErrInterrupt) ||
		errors.Is(err, promptui.ErrEOF)
}

func promptConfirm(string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     "Sign and broadcast",
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Summarize renders the transfer carried by a SignRequest for display.
func Summarize(req *network.SignRequest) (string, error) {
	msg, memo, err := cosmos.DecodeTransfer(req.Doc.BodyBytes)
	if err != nil {
		return "", err
	}

	var authInfo txtypes.AuthInfo
	if err := authInfo.Unmarshal(req.Doc.AuthInfoBytes); err != nil {
		return "", fmt.Errorf("decode auth info: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nTransfer on %s:\n", req.Doc.ChainID)
	fmt.Fprintf(&b, "  From:   %s\n", msg.FromAddress)
	fmt.Fprintf(&b, "  To:     %s\n", msg.ToAddress)
	fmt.Fprintf(&b, "  Amount: %s\n", msg.Amount.String())
	if authInfo.Fee != nil {
		fee := authInfo.Fee.Amount.String()
		if fee == "" {
			fee = "none"
		}
		fmt.Fprintf(&b, "  Fee:    %s (gas limit %d)\n", fee, authInfo.Fee.GasLimit)
	}
	if memo != "" {
		fmt.Fprintf(&b, "  Memo:   %s\n", memo)
	}
	return b.String(), nil
}
