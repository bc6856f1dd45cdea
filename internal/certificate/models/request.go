package models

import (
	"strings"
	"time"

	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusIssued   RequestStatus = "issued"
	RequestStatusRejected RequestStatus = "rejected"
)

// maxRequestMessageLength bounds the free-text note a subject attaches.
const maxRequestMessageLength = 1000

// CertificateRequest is a subject's ask for an issuer to certify a course.
// Requests are deleted once satisfied or rejected.
type CertificateRequest struct {
	ID        id.RequestID  `json:"id"`
	SubjectID id.SubjectID  `json:"subject_id"`
	IssuerID  id.IssuerID   `json:"issuer_id"`
	Message   string        `json:"message"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewCertificateRequest(requestID id.RequestID, subjectID id.SubjectID, issuerID id.IssuerID, message string, now time.Time) (*CertificateRequest, error) {
	message = strings.TrimSpace(message)
	if len(message) > maxRequestMessageLength {
		return nil, dErrors.New(dErrors.CodeValidation, "message must be 1000 characters or less")
	}
	if subjectID.IsNil() || issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request requires subject and issuer")
	}
	return &CertificateRequest{
		ID:        requestID,
		SubjectID: subjectID,
		IssuerID:  issuerID,
		Message:   message,
		Status:    RequestStatusPending,
		CreatedAt: now,
	}, nil
}

func (r *CertificateRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}
