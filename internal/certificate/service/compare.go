package service

import (
	"strings"

	"certify/internal/certificate/models"
)

// comparedField pairs a claim value with the registry value it must match.
type comparedField struct {
	name     string
	claimed  string
	recorded string
}

// mismatchedFields returns the claim fields that disagree with the record.
// Blank claim fields are skipped. Dates are never compared.
func mismatchedFields(record *models.CertificateRecord, claim models.VerificationClaim) []string {
	fields := []comparedField{
		{models.FieldIdentifier, claim.Identifier, record.Identifier},
		{models.FieldRecipientName, claim.RecipientName, record.SubjectName},
		{models.FieldCourseName, claim.CourseName, record.CourseName},
		{models.FieldIssuerName, claim.IssuerName, record.IssuerName},
		{models.FieldInstitutionName, claim.InstitutionName, record.InstitutionName},
	}
	out := []string{}
	for _, f := range fields {
		claimed := normalizeField(f.claimed)
		if claimed == "" {
			continue
		}
		if claimed != normalizeField(f.recorded) {
			out = append(out, f.name)
		}
	}
	return out
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// composeVerdict folds the integrity result over the claim comparison.
// A broken anchor wins over any comparison outcome.
func composeVerdict(mismatched []string, integrityIntact bool) (models.Verdict, bool) {
	switch {
	case !integrityIntact:
		return models.VerdictTampered, false
	case len(mismatched) > 0:
		return models.VerdictMismatch, false
	default:
		return models.VerdictMatch, true
	}
}

// subjectEmailFor prefers the claimant's email over the registry's.
func subjectEmailFor(claim models.VerificationClaim, registryEmail string) string {
	if e := strings.TrimSpace(claim.SubjectEmail); e != "" {
		return e
	}
	return registryEmail
}
