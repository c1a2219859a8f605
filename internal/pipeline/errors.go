// internal/pipeline/errors.go
package pipeline

import (
	"errors"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// IsRetryable reports whether err is a transport failure that happened
// before any tx bytes were submitted, so a caller may simply run again.
// A failure after submission is never retryable: query the hash first.
func IsRetryable(err error) bool {
	if errors.Is(err, network.ErrOutcomeUnknown) {
		return false
	}
	var netErr *network.NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	return netErr.TxHash == ""
}

// IsStaleSequence reports whether the ledger rejected the tx because its
// sequence was already used. Callers recover by re-resolving the account
// and signing again; the pipeline never bumps the sequence on its own.
func IsStaleSequence(err error) bool {
	var rejected *network.LedgerRejectedError
	if !errors.As(err, &rejected) {
		return false
	}
	return rejected.Codespace == sdkerrors.ErrWrongSequence.Codespace() &&
		rejected.Code == sdkerrors.ErrWrongSequence.ABCICode()
}
