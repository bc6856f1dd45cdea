package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, ledgers and other
// infrastructure layers return these (optionally wrapped) so services can
// translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store or ledger
//   - ErrConflict: unique key already taken (identifier, ledger slot)
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: backend temporarily unavailable (open circuit, timeout)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
