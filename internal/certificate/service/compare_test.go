package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"certify/internal/certificate/models"
)

func TestMismatchedFields(t *testing.T) {
	record := &models.CertificateRecord{
		Identifier:      "6F1C-ID",
		SubjectName:     "Alice Example",
		CourseName:      "Physics",
		IssuerName:      "Acme Univ",
		InstitutionName: "Acme University",
	}

	tests := []struct {
		name     string
		claim    models.VerificationClaim
		expected []string
	}{
		{name: "empty claim compares nothing", claim: models.VerificationClaim{}, expected: []string{}},
		{
			name:     "case and whitespace are ignored",
			claim:    models.VerificationClaim{Identifier: "6f1c-id ", RecipientName: " alice example", CourseName: "PHYSICS"},
			expected: []string{},
		},
		{
			name:     "course differs",
			claim:    models.VerificationClaim{RecipientName: "Alice Example", CourseName: "Chemistry"},
			expected: []string{models.FieldCourseName},
		},
		{
			name:     "several fields differ in fixed order",
			claim:    models.VerificationClaim{InstitutionName: "Other", IssuerName: "Other", Identifier: "x"},
			expected: []string{models.FieldIdentifier, models.FieldIssuerName, models.FieldInstitutionName},
		},
		{
			name:     "email is not a compared field",
			claim:    models.VerificationClaim{SubjectEmail: "mallory@example.com"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mismatchedFields(record, tt.claim))
		})
	}
}

func TestComposeVerdict(t *testing.T) {
	verdict, valid := composeVerdict(nil, true)
	assert.Equal(t, models.VerdictMatch, verdict)
	assert.True(t, valid)

	verdict, valid = composeVerdict([]string{models.FieldCourseName}, true)
	assert.Equal(t, models.VerdictMismatch, verdict)
	assert.False(t, valid)

	verdict, valid = composeVerdict(nil, false)
	assert.Equal(t, models.VerdictTampered, verdict)
	assert.False(t, valid)

	verdict, _ = composeVerdict([]string{models.FieldCourseName}, false)
	assert.Equal(t, models.VerdictTampered, verdict)
}

func TestSubjectEmailFor(t *testing.T) {
	assert.Equal(t, "bob@x.com", subjectEmailFor(models.VerificationClaim{SubjectEmail: " bob@x.com "}, "alice@x.com"))
	assert.Equal(t, "alice@x.com", subjectEmailFor(models.VerificationClaim{}, "alice@x.com"))
}
