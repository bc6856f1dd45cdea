// Package ledger defines the append-only anchor that holds one fingerprint
// per certificate identifier. Entries are written once and never updated.
package ledger

import (
	"context"
	"strings"
	"time"
)

// Entry is one anchored certificate.
type Entry struct {
	Identifier       string `json:"identifier"`
	Fingerprint      string `json:"fingerprint"`
	AuxiliaryPointer string `json:"auxiliary_pointer"`
	IssuerRef        string `json:"issuer_ref"`
}

// IsEmpty reports whether the entry carries no fingerprint. Some ledgers
// return zero-valued records for unknown keys instead of an error.
func (e Entry) IsEmpty() bool {
	return strings.TrimSpace(e.Fingerprint) == ""
}

// Confirmation is returned once a write is durable on the ledger.
type Confirmation struct {
	TxRef       string
	BlockNumber uint64
	ConfirmedAt time.Time
}

// DefaultAuxiliaryPointer is recorded when a certificate has no off-ledger
// document pointer.
const DefaultAuxiliaryPointer = "N/A"

// Ledger is the collaborator contract.
//
// RecordEntry blocks until the write is confirmed or ctx ends. Writing an
// identifier twice fails with sentinel.ErrConflict.
//
// ReadEntry returns sentinel.ErrNotFound for identifiers never written.
type Ledger interface {
	RecordEntry(ctx context.Context, entry Entry) (Confirmation, error)
	ReadEntry(ctx context.Context, identifier string) (Entry, error)
}
