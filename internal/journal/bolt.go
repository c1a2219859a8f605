// internal/journal/bolt.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketAttempts = []byte("attempts")
	bucketHashes   = []byte("hashes")
)

// BoltJournal implements Journal using BoltDB.
type BoltJournal struct {
	db *bolt.DB
}

var _ Journal = (*BoltJournal)(nil)

// OpenBolt opens (creating if needed) a journal database at path.
func OpenBolt(path string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Initialize buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAttempts, bucketHashes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltJournal{db: db}, nil
}

// Close closes the database.
func (j *BoltJournal) Close() error {
	return j.db.Close()
}

// Create stores a new record.
func (j *BoltJournal) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		key := []byte(rec.ID)
		if b.Get(key) != nil {
			return ErrAlreadyExists
		}
		return putRecord(tx, rec)
	})
}

// Update replaces an existing record and indexes its tx hash.
func (j *BoltJournal) Update(ctx context.Context, rec *Record) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		if b.Get([]byte(rec.ID)) == nil {
			return &NotFoundError{Key: "id", Value: rec.ID}
		}
		return putRecord(tx, rec)
	})
}

func putRecord(tx *bolt.Tx, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketAttempts).Put([]byte(rec.ID), data); err != nil {
		return err
	}
	if rec.TxHash != "" {
		return tx.Bucket(bucketHashes).Put([]byte(strings.ToUpper(rec.TxHash)), []byte(rec.ID))
	}
	return nil
}

// Get retrieves a record by ID.
func (j *BoltJournal) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAttempts).Get([]byte(id))
		if data == nil {
			return &NotFoundError{Key: "id", Value: id}
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByHash retrieves the record that submitted txHash (case-insensitive).
func (j *BoltJournal) FindByHash(ctx context.Context, txHash string) (*Record, error) {
	var rec Record
	err := j.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketHashes).Get([]byte(strings.ToUpper(txHash)))
		if id == nil {
			return &NotFoundError{Key: "tx hash", Value: txHash}
		}
		data := tx.Bucket(bucketAttempts).Get(id)
		if data == nil {
			return &NotFoundError{Key: "id", Value: string(id)}
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records newest first. IDs are time-ordered, so a reverse
// cursor walk yields creation order.
func (j *BoltJournal) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	var records []*Record

	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAttempts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if opts.Limit > 0 && len(records) >= opts.Limit {
				return nil
			}

			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			if opts.State != "" && rec.State != opts.State {
				continue
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
