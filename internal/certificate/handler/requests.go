package handler

import (
	"strings"
	"time"

	"certify/internal/certificate/models"
	dErrors "certify/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// IssueRequest is the body of POST /certificates. IssuerName may be omitted
// by issuer accounts, which issue under their own name.
type IssueRequest struct {
	SubjectEmail    string `json:"subject_email" validate:"required,email,max=254"`
	CourseName      string `json:"course_name" validate:"required,max=200"`
	CompletionDate  string `json:"completion_date" validate:"omitempty,datetime=2006-01-02"`
	IssuerName      string `json:"issuer_name" validate:"max=200"`
	InstitutionName string `json:"institution_name" validate:"max=200"`
	Title           string `json:"title" validate:"max=200"`
	Description     string `json:"description" validate:"max=2000"`
}

func (r *IssueRequest) Prepare() {
	r.SubjectEmail = strings.ToLower(strings.TrimSpace(r.SubjectEmail))
	r.CourseName = strings.TrimSpace(r.CourseName)
	r.CompletionDate = strings.TrimSpace(r.CompletionDate)
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.InstitutionName = strings.TrimSpace(r.InstitutionName)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

// Command converts the request. Validation must have passed.
func (r *IssueRequest) Command() (models.IssueCommand, error) {
	cmd := models.IssueCommand{
		SubjectEmail:    r.SubjectEmail,
		CourseName:      r.CourseName,
		IssuerName:      r.IssuerName,
		InstitutionName: r.InstitutionName,
		Title:           r.Title,
		Description:     r.Description,
	}
	if r.CompletionDate != "" {
		d, err := time.Parse(dateLayout, r.CompletionDate)
		if err != nil {
			return models.IssueCommand{}, dErrors.New(dErrors.CodeValidation, "completion_date must be YYYY-MM-DD")
		}
		cmd.CompletionDate = &d
	}
	return cmd, nil
}

// VerifyRequest is the claimant payload. Field names follow the scannable
// payload, including the legacy qrCodeId alias. Empty fields are not
// compared, and an empty identifier yields a verdict rather than a 400.
// Fields carry no length limits: an over-long claim is a mismatch, and the
// body as a whole is bounded by the decoder.
type VerifyRequest struct {
	Identifier      string `json:"identifier"`
	QRCodeID        string `json:"qrCodeId"`
	RecipientName   string `json:"recipientName"`
	SubjectEmail    string `json:"subjectEmail"`
	CourseName      string `json:"courseName"`
	IssuerName      string `json:"issuerName"`
	InstitutionName string `json:"institutionName"`
}

func (r *VerifyRequest) Prepare() {
	r.Identifier = strings.TrimSpace(r.Identifier)
	if r.Identifier == "" {
		r.Identifier = strings.TrimSpace(r.QRCodeID)
	}
	r.SubjectEmail = strings.TrimSpace(r.SubjectEmail)
}

func (r *VerifyRequest) Claim() models.VerificationClaim {
	return models.VerificationClaim{
		Identifier:      r.Identifier,
		RecipientName:   r.RecipientName,
		SubjectEmail:    r.SubjectEmail,
		CourseName:      r.CourseName,
		IssuerName:      r.IssuerName,
		InstitutionName: r.InstitutionName,
	}
}

// CreateRequestRequest is the body of POST /requests.
type CreateRequestRequest struct {
	IssuerName string `json:"issuer_name" validate:"required,max=200"`
	Message    string `json:"message" validate:"max=1000"`
}

func (r *CreateRequestRequest) Prepare() {
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.Message = strings.TrimSpace(r.Message)
}

type certificateList struct {
	Certificates []*models.CertificateRecord `json:"certificates"`
}

type requestList struct {
	Requests []*models.CertificateRequest `json:"requests"`
}

type scanResponse struct {
	Payload      string               `json:"payload"`
	Verification *models.Verification `json:"verification"`
}
