// internal/broker/envelope.go
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EnvelopeVersion is the schema version stamped on every event.
const EnvelopeVersion = "v1"

// KindTransferOutcome marks an event carrying the terminal state of a transfer.
const KindTransferOutcome = "transfer.outcome"

// Envelope wraps every published event.
type Envelope struct {
	Version string          `json:"version"`
	Kind    string          `json:"kind"`
	ChainID string          `json:"chain_id"`
	Height  int64           `json:"height"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// PublishJSON wraps payload in an Envelope and publishes it under key.
func PublishJSON(ctx context.Context, b Broker, kind, chainID, key string, height int64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: marshal payload: %w", err)
	}
	env, err := json.Marshal(Envelope{
		Version: EnvelopeVersion,
		Kind:    kind,
		ChainID: chainID,
		Height:  height,
		Time:    time.Now().UTC(),
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("broker: marshal envelope: %w", err)
	}
	return b.Publish(ctx, key, env)
}

// Message is a published message captured by MemoryBroker.
type Message struct {
	Key   string
	Value []byte
}

// MemoryBroker records published messages. Used in tests and dry runs.
type MemoryBroker struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewMemoryBroker creates an empty MemoryBroker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

// FailWith makes subsequent publishes return err.
func (b *MemoryBroker) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Publish records the message.
func (b *MemoryBroker) Publish(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, Message{Key: key, Value: append([]byte(nil), value...)})
	return nil
}

// Messages returns a copy of everything published so far.
func (b *MemoryBroker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.messages...)
}

// Close is a no-op.
func (b *MemoryBroker) Close() error {
	return nil
}
