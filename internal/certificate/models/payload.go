package models

import (
	"encoding/json"
	"strings"

	dErrors "certify/pkg/domain-errors"
)

// ScannablePayload is the JSON embedded in a certificate's QR code.
// Identifier, SubjectEmail and CourseName are always present.
type ScannablePayload struct {
	Identifier      string `json:"identifier"`
	SubjectEmail    string `json:"subjectEmail"`
	CourseName      string `json:"courseName"`
	RecipientName   string `json:"recipientName,omitempty"`
	IssuerName      string `json:"issuerName,omitempty"`
	InstitutionName string `json:"institutionName,omitempty"`
}

// MaxPayloadBytes is the byte capacity of the largest QR code symbol at the
// lowest error correction level.
const MaxPayloadBytes = 2953

// NewScannablePayload renders the payload for a certificate about to be issued.
func NewScannablePayload(cert IssuedCertificate, subjectEmail string) ScannablePayload {
	return ScannablePayload{
		Identifier:      cert.Identifier,
		SubjectEmail:    subjectEmail,
		CourseName:      cert.CourseName,
		RecipientName:   cert.SubjectName,
		IssuerName:      cert.IssuerName,
		InstitutionName: cert.InstitutionName,
	}
}

// Encode returns the compact JSON form. Payloads that would not fit in a
// QR code are rejected.
func (p ScannablePayload) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if len(raw) > MaxPayloadBytes {
		return "", dErrors.New(dErrors.CodeValidation, "certificate payload is too large for a QR code")
	}
	return string(raw), nil
}

// Claim converts a payload into the claimant data compared during verification.
func (p ScannablePayload) Claim() VerificationClaim {
	return VerificationClaim{
		Identifier:      p.Identifier,
		RecipientName:   p.RecipientName,
		SubjectEmail:    p.SubjectEmail,
		CourseName:      p.CourseName,
		IssuerName:      p.IssuerName,
		InstitutionName: p.InstitutionName,
	}
}

// legacyPayload accepts field names printed on older certificates.
type legacyPayload struct {
	QRCodeID     string `json:"qrCodeId"`
	StudentEmail string `json:"studentEmail"`
	StudentName  string `json:"studentName"`
}

// ParseScannablePayload decodes a scanned payload string.
func ParseScannablePayload(raw string) (ScannablePayload, error) {
	raw = strings.TrimSpace(raw)
	var p ScannablePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ScannablePayload{}, dErrors.New(dErrors.CodeBadRequest, "scanned payload is not valid JSON")
	}
	var legacy legacyPayload
	_ = json.Unmarshal([]byte(raw), &legacy)
	if p.Identifier == "" {
		p.Identifier = legacy.QRCodeID
	}
	if p.SubjectEmail == "" {
		p.SubjectEmail = legacy.StudentEmail
	}
	if p.RecipientName == "" {
		p.RecipientName = legacy.StudentName
	}
	if strings.TrimSpace(p.Identifier) == "" {
		return ScannablePayload{}, dErrors.New(dErrors.CodeBadRequest, "scanned payload has no identifier")
	}
	return p, nil
}
