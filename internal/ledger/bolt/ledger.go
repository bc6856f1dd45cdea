// Package bolt is a single-node append-only ledger on a bbolt file. Each
// identifier is a key that can be written exactly once.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"certify/internal/ledger"
	"certify/pkg/platform/sentinel"
)

var entriesBucket = []byte("ledger_entries")

type record struct {
	Entry       ledger.Entry `json:"entry"`
	Sequence    uint64       `json:"sequence"`
	ConfirmedAt time.Time    `json:"confirmed_at"`
}

// Ledger stores entries in a bbolt database.
type Ledger struct {
	db *bbolt.DB
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt ledger: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordEntry writes the entry if its identifier is unused. bbolt commits
// are fsynced, so a returned confirmation is durable.
func (l *Ledger) RecordEntry(ctx context.Context, entry ledger.Entry) (ledger.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Confirmation{}, err
	}
	var conf ledger.Confirmation
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		key := []byte(entry.Identifier)
		if b.Get(key) != nil {
			return sentinel.ErrConflict
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec := record{Entry: entry, Sequence: seq, ConfirmedAt: time.Now().UTC()}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(key, raw); err != nil {
			return err
		}
		conf = ledger.Confirmation{
			TxRef:       fmt.Sprintf("bolt-%016x", seq),
			BlockNumber: seq,
			ConfirmedAt: rec.ConfirmedAt,
		}
		return nil
	})
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("record ledger entry: %w", err)
	}
	return conf, nil
}

func (l *Ledger) ReadEntry(ctx context.Context, identifier string) (ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}
	var rec record
	err := l.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(entriesBucket).Get([]byte(identifier))
		if raw == nil {
			return sentinel.ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("read ledger entry: %w", err)
	}
	return rec.Entry, nil
}
