// Package memory is an in-process ledger for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"certify/internal/ledger"
	"certify/pkg/platform/sentinel"
)

// Ledger keeps entries in a map. Written entries are never modified.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]ledger.Entry
	seq     uint64

	writeErr   error
	readErr    error
	writeDelay time.Duration
}

func New() *Ledger {
	return &Ledger{entries: make(map[string]ledger.Entry)}
}

// FailWrites makes subsequent RecordEntry calls fail with err (nil restores).
func (l *Ledger) FailWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// FailReads makes subsequent ReadEntry calls fail with err (nil restores).
func (l *Ledger) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// DelayWrites simulates slow confirmation. The delay honours ctx.
func (l *Ledger) DelayWrites(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeDelay = d
}

func (l *Ledger) RecordEntry(ctx context.Context, entry ledger.Entry) (ledger.Confirmation, error) {
	l.mu.RLock()
	delay, writeErr := l.writeDelay, l.writeErr
	l.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ledger.Confirmation{}, ctx.Err()
		case <-timer.C:
		}
	}
	if writeErr != nil {
		return ledger.Confirmation{}, writeErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[entry.Identifier]; exists {
		return ledger.Confirmation{}, sentinel.ErrConflict
	}
	l.seq++
	l.entries[entry.Identifier] = entry
	return ledger.Confirmation{
		TxRef:       fmt.Sprintf("mem-%08d", l.seq),
		BlockNumber: l.seq,
		ConfirmedAt: time.Now(),
	}, nil
}

func (l *Ledger) ReadEntry(ctx context.Context, identifier string) (ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.readErr != nil {
		return ledger.Entry{}, l.readErr
	}
	entry, ok := l.entries[identifier]
	if !ok {
		return ledger.Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

// Len returns the number of anchored entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
