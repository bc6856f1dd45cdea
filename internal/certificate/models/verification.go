package models

// Verdict is the discriminated outcome of one verification attempt.
type Verdict string

const (
	VerdictMatch             Verdict = "match"
	VerdictMismatch          Verdict = "mismatch"
	VerdictTampered          Verdict = "tampered"
	VerdictRevoked           Verdict = "revoked"
	VerdictInvalidIdentifier Verdict = "invalid_identifier"
	VerdictNoLedgerRecord    Verdict = "no_ledger_record"
	VerdictServerError       Verdict = "server_error"
)

func (v Verdict) String() string { return string(v) }

// Comparison field names reported in MismatchedFields.
const (
	FieldIdentifier      = "identifier"
	FieldRecipientName   = "recipientName"
	FieldCourseName      = "courseName"
	FieldIssuerName      = "issuerName"
	FieldInstitutionName = "institutionName"
)

// VerificationClaim is the claimant-supplied data, typically decoded from a
// scanned payload. Empty fields are not compared.
type VerificationClaim struct {
	Identifier      string
	RecipientName   string
	SubjectEmail    string
	CourseName      string
	IssuerName      string
	InstitutionName string
}

// Verification is always returned by the verification engine, whatever the
// outcome. Certificate is nil when the identifier did not resolve.
type Verification struct {
	Verdict          Verdict          `json:"verdict"`
	Valid            bool             `json:"valid"`
	IntegrityIntact  bool             `json:"integrity_intact"`
	MismatchedFields []string         `json:"mismatched_fields"`
	Certificate      *CertificateView `json:"certificate,omitempty"`
	LedgerTxRef      string           `json:"ledger_tx_ref,omitempty"`
}

// NewVerification builds a terminal verification with no comparison data.
func NewVerification(verdict Verdict) *Verification {
	return &Verification{Verdict: verdict, MismatchedFields: []string{}}
}
