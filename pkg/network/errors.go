// pkg/network/errors.go
package network

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is classification. Every typed error below
// matches exactly one of them.
var (
	ErrConfig            = errors.New("configuration error")
	ErrInvalidFormat     = errors.New("invalid format")
	ErrPrefixMismatch    = errors.New("address prefix mismatch")
	ErrAccountNotFound   = errors.New("account not found")
	ErrNetwork           = errors.New("network error")
	ErrSignerUnavailable = errors.New("signer unavailable")
	ErrUserRejected      = errors.New("request rejected by user")
	ErrSigner            = errors.New("signer error")
	ErrLedgerRejected    = errors.New("transaction rejected by ledger")
	ErrOutcomeUnknown    = errors.New("transaction outcome unknown")
	ErrTxNotFound        = errors.New("transaction not found")
)

// ConfigError is returned for missing or malformed configuration.
// No network call is made once a ConfigError is detected.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// InvalidFormatError is returned when an identifier or amount cannot be parsed.
type InvalidFormatError struct {
	Input  string
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format %q: %s", e.Input, e.Reason)
}

func (e *InvalidFormatError) Is(target error) bool { return target == ErrInvalidFormat }

// PrefixMismatchError is returned when an address carries the wrong
// human-readable prefix.
type PrefixMismatchError struct {
	Address  string
	Expected string
	Got      string
}

func (e *PrefixMismatchError) Error() string {
	return fmt.Sprintf("address %s has prefix %q, expected %q", e.Address, e.Got, e.Expected)
}

func (e *PrefixMismatchError) Is(target error) bool { return target == ErrPrefixMismatch }

// AccountNotFoundError is returned when the ledger has no record of an address.
type AccountNotFoundError struct {
	Address string

	// Role is "sender" or "recipient" once the pipeline knows it.
	Role string
}

func (e *AccountNotFoundError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s account %s not found", e.Role, e.Address)
	}
	return fmt.Sprintf("account %s not found", e.Address)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

// RecoveryHint implements the CLI's recoverable error behavior.
func (e *AccountNotFoundError) RecoveryHint() string {
	return "fund the account first; an address only exists on chain after it has received tokens"
}

// UnexpectedAccountError is returned when the on-chain record is not an
// account type that can sign transactions (for example a module account).
// It belongs to the account-not-found class.
type UnexpectedAccountError struct {
	Address string
	Type    string
}

func (e *UnexpectedAccountError) Error() string {
	return fmt.Sprintf("account %s has unsupported type %s", e.Address, e.Type)
}

func (e *UnexpectedAccountError) Is(target error) bool { return target == ErrAccountNotFound }

// NetworkError is returned when a ledger query or submission fails in transport.
// The pipeline never retries it; callers may.
type NetworkError struct {
	Operation string
	Endpoint  string

	// TxHash is set when the failure happened while submitting a tx.
	TxHash string

	Err error
}

func (e *NetworkError) Error() string {
	msg := e.Operation + " failed"
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s against %s failed", e.Operation, e.Endpoint)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// RecoveryHint implements the CLI's recoverable error behavior.
func (e *NetworkError) RecoveryHint() string {
	if e.TxHash != "" {
		return fmt.Sprintf("query tx %s before retrying; it may have reached the node", e.TxHash)
	}
	return "check the endpoint and retry"
}

// SignerError wraps failures reported by a signing oracle. Cause may be
// ErrUserRejected or ErrSignerUnavailable, which remain visible to errors.Is.
type SignerError struct {
	Op  string
	Err error
}

func (e *SignerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("signer %s failed", e.Op)
	}
	return fmt.Sprintf("signer %s failed: %v", e.Op, e.Err)
}

func (e *SignerError) Unwrap() error { return e.Err }

func (e *SignerError) Is(target error) bool { return target == ErrSigner }

// LedgerRejectedError is returned when the ledger accepted the submission
// but answered with a non-zero code.
type LedgerRejectedError struct {
	Code      uint32
	Codespace string
	RawLog    string
	TxHash    string
}

func (e *LedgerRejectedError) Error() string {
	return fmt.Sprintf("tx %s rejected by ledger (codespace=%s code=%d): %s", e.TxHash, e.Codespace, e.Code, e.RawLog)
}

func (e *LedgerRejectedError) Is(target error) bool { return target == ErrLedgerRejected }

// OutcomeUnknownError is returned when bytes were handed to the network but
// the final result could not be observed. The tx may still be included.
type OutcomeUnknownError struct {
	TxHash string
	Err    error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("outcome of tx %s unknown: %v", e.TxHash, e.Err)
}

func (e *OutcomeUnknownError) Unwrap() error { return e.Err }

func (e *OutcomeUnknownError) Is(target error) bool { return target == ErrOutcomeUnknown }

// RecoveryHint implements the CLI's recoverable error behavior.
func (e *OutcomeUnknownError) RecoveryHint() string {
	return fmt.Sprintf("run: txpipe tx %s", e.TxHash)
}

// TxNotFoundError is returned by tx queries for hashes the node has not indexed.
type TxNotFoundError struct {
	TxHash string
}

func (e *TxNotFoundError) Error() string {
	return fmt.Sprintf("tx %s not found", e.TxHash)
}

func (e *TxNotFoundError) Is(target error) bool { return target == ErrTxNotFound }

// IsAccountNotFound returns true if err is in the account-not-found class.
func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsUserRejected returns true if the signer reported an explicit user rejection.
func IsUserRejected(err error) bool {
	return errors.Is(err, ErrUserRejected)
}

// IsNetwork returns true if err is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
