// internal/journal/journal.go
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted trace of one pipeline attempt. The tx hash is
// written before broadcast, so a record whose State is not terminal marks a
// tx whose outcome must be queried, not assumed.
type Record struct {
	ID string `json:"id" yaml:"id"`

	ChainID       string `json:"chain_id" yaml:"chain_id"`
	Sender        string `json:"sender" yaml:"sender"`
	Recipient     string `json:"recipient" yaml:"recipient"`
	Denom         string `json:"denom" yaml:"denom"`
	Amount        string `json:"amount" yaml:"amount"`
	Memo          string `json:"memo,omitempty" yaml:"memo,omitempty"`
	AccountNumber uint64 `json:"account_number" yaml:"account_number"`
	Sequence      uint64 `json:"sequence" yaml:"sequence"`
	Mode          string `json:"mode" yaml:"mode"`

	TxHash    string `json:"tx_hash,omitempty" yaml:"tx_hash,omitempty"`
	State     string `json:"state" yaml:"state"`
	Code      uint32 `json:"code,omitempty" yaml:"code,omitempty"`
	Codespace string `json:"codespace,omitempty" yaml:"codespace,omitempty"`
	RawLog    string `json:"raw_log,omitempty" yaml:"raw_log,omitempty"`
	Height    int64  `json:"height,omitempty" yaml:"height,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ListOptions filters List results.
type ListOptions struct {
	// State keeps only records in this state when set.
	State string

	// Limit caps the number of records returned (0 = no limit).
	Limit int
}

// Journal persists attempt records. Implementations are safe for concurrent use.
type Journal interface {
	// Create stores a new record. Returns ErrAlreadyExists for a duplicate ID.
	Create(ctx context.Context, rec *Record) error

	// Update replaces an existing record.
	Update(ctx context.Context, rec *Record) error

	// Get returns the record with the given ID.
	Get(ctx context.Context, id string) (*Record, error)

	// FindByHash returns the record that submitted txHash.
	FindByHash(ctx context.Context, txHash string) (*Record, error)

	// List returns records, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	Close() error
}

// NewID returns a time-ordered attempt identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
