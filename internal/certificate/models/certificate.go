package models

import (
	"time"

	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
)

// Status is the registry-side lifecycle of a certificate.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusRevoked
}

// CanTransitionTo allows active → revoked only; revoked is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusActive && next == StatusRevoked
}

func (s Status) String() string { return string(s) }

// ParseStatus validates a status from untrusted input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown certificate status: "+s)
	}
	return st, nil
}

// CertificateRecord is the registry copy of an issued certificate.
//
// Invariants:
//   - Identifier is system-assigned and globally unique
//   - Fingerprint, LedgerTxRef and IssuedAt are set once at issuance and never change
//   - A persisted record is always Anchored (the ledger write precedes persistence)
//   - Status moves active → revoked only; RevokedAt is set exactly then
type CertificateRecord struct {
	Identifier      string       `json:"identifier"`
	SubjectID       id.SubjectID `json:"subject_id"`
	IssuerID        id.IssuerID  `json:"issuer_id"`
	SubjectName     string       `json:"subject_name"`
	CourseName      string       `json:"course_name"`
	IssuerName      string       `json:"issuer_name"`
	InstitutionName string       `json:"institution_name"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	CompletionDate  *time.Time   `json:"completion_date,omitempty"`
	IssuedAt        time.Time    `json:"issued_at"`
	Fingerprint     string       `json:"fingerprint"`
	LedgerTxRef     string       `json:"ledger_tx_ref"`
	Anchored        bool         `json:"anchored"`
	Status          Status       `json:"status"`
	RevokedAt       *time.Time   `json:"revoked_at,omitempty"`
}

// NewCertificateRecord builds an active, anchored record from a confirmed
// ledger write.
func NewCertificateRecord(p IssuedCertificate) (*CertificateRecord, error) {
	if p.Identifier == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate identifier cannot be empty")
	}
	if p.Fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate fingerprint cannot be empty")
	}
	if p.LedgerTxRef == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate must carry a ledger confirmation")
	}
	if p.SubjectID.IsNil() || p.IssuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate requires subject and issuer")
	}
	return &CertificateRecord{
		Identifier:      p.Identifier,
		SubjectID:       p.SubjectID,
		IssuerID:        p.IssuerID,
		SubjectName:     p.SubjectName,
		CourseName:      p.CourseName,
		IssuerName:      p.IssuerName,
		InstitutionName: p.InstitutionName,
		Title:           p.Title,
		Description:     p.Description,
		CompletionDate:  p.CompletionDate,
		IssuedAt:        p.IssuedAt,
		Fingerprint:     p.Fingerprint,
		LedgerTxRef:     p.LedgerTxRef,
		Anchored:        true,
		Status:          StatusActive,
	}, nil
}

// IssuedCertificate carries everything needed to build a record. LedgerTxRef
// is filled in once the ledger confirms.
type IssuedCertificate struct {
	Identifier      string
	SubjectID       id.SubjectID
	IssuerID        id.IssuerID
	SubjectName     string
	CourseName      string
	IssuerName      string
	InstitutionName string
	Title           string
	Description     string
	CompletionDate  *time.Time
	IssuedAt        time.Time
	Fingerprint     string
	LedgerTxRef     string
}

func (c *CertificateRecord) IsRevoked() bool {
	return c.Status == StatusRevoked
}

// CanRevoke checks whether the record may move to revoked.
// Use with ApplyRevocation in Execute callbacks.
func (c *CertificateRecord) CanRevoke() error {
	if !c.Status.CanTransitionTo(StatusRevoked) {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate is already revoked")
	}
	return nil
}

// ApplyRevocation marks the record revoked. Call CanRevoke first.
func (c *CertificateRecord) ApplyRevocation(now time.Time) {
	c.Status = StatusRevoked
	revokedAt := now
	c.RevokedAt = &revokedAt
}

// View returns the display data handed to verifiers.
func (c *CertificateRecord) View() CertificateView {
	return CertificateView{
		Identifier:      c.Identifier,
		RecipientName:   c.SubjectName,
		CourseName:      c.CourseName,
		IssuerName:      c.IssuerName,
		InstitutionName: c.InstitutionName,
		Title:           c.Title,
		Description:     c.Description,
		CompletionDate:  c.CompletionDate,
		IssuedAt:        c.IssuedAt,
		Status:          c.Status,
		RevokedAt:       c.RevokedAt,
	}
}

// CertificateView is the public rendering of a record. It omits internal
// references and the fingerprint.
type CertificateView struct {
	Identifier      string     `json:"identifier"`
	RecipientName   string     `json:"recipient_name"`
	CourseName      string     `json:"course_name"`
	IssuerName      string     `json:"issuer_name"`
	InstitutionName string     `json:"institution_name"`
	Title           string     `json:"title,omitempty"`
	Description     string     `json:"description,omitempty"`
	CompletionDate  *time.Time `json:"completion_date,omitempty"`
	IssuedAt        time.Time  `json:"issued_at"`
	Status          Status     `json:"status"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}
