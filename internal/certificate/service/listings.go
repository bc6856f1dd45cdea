package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"certify/internal/certificate/models"
	dirmodels "certify/internal/directory/models"
	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
	audit "certify/pkg/platform/audit"
	"certify/pkg/platform/sentinel"
	"certify/pkg/requestcontext"
)

// ListByIssuer returns the issuer's certificates, newest first, optionally
// filtered by status.
func (s *Service) ListByIssuer(ctx context.Context, actor dirmodels.Account, statuses []string) ([]*models.CertificateRecord, error) {
	issuer, ok := actor.(*dirmodels.Issuer)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "only issuers can list issued certificates")
	}
	filter := make([]models.Status, 0, len(statuses))
	for _, raw := range statuses {
		st, err := models.ParseStatus(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid status filter")
		}
		filter = append(filter, st)
	}
	records, err := s.store.ListByIssuer(ctx, issuer.ID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return records, nil
}

// ListBySubject returns the certificates held by the calling subject.
func (s *Service) ListBySubject(ctx context.Context, actor dirmodels.Account) ([]*models.CertificateRecord, error) {
	subject, ok := actor.(*dirmodels.Subject)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "only subjects can list their certificates")
	}
	records, err := s.store.ListBySubject(ctx, subject.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return records, nil
}

// CreateRequest files a subject's request for a certificate from the named
// issuer. One pending request per subject and issuer.
func (s *Service) CreateRequest(ctx context.Context, actor dirmodels.Account, issuerName, message string) (*models.CertificateRequest, error) {
	subject, ok := actor.(*dirmodels.Subject)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "only subjects can request certificates")
	}
	issuer, err := s.resolveIssuer(ctx, issuerName)
	if err != nil {
		return nil, err
	}

	req, err := models.NewCertificateRequest(id.RequestID(uuid.New()), subject.ID, issuer.ID, message, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requests.CreateRequest(ctx, req); err != nil {
			return err
		}
		return s.emitCompliance(ctx, audit.ComplianceEvent{
			Subject:  req.ID.String(),
			Action:   audit.EventRequestCreated,
			ActorID:  subject.AccountID(),
			IssuerID: issuer.ID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a pending request to this issuer already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}

	s.logAudit(ctx, audit.EventRequestCreated,
		"request_id", req.ID.String(),
		"subject_id", subject.ID.String(),
		"issuer_id", issuer.ID.String(),
	)
	return req, nil
}

func (s *Service) ListPendingRequests(ctx context.Context, actor dirmodels.Account) ([]*models.CertificateRequest, error) {
	issuer, ok := actor.(*dirmodels.Issuer)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "only issuers can list requests")
	}
	reqs, err := s.requests.ListPendingByIssuer(ctx, issuer.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}

// RejectRequest deletes a pending request addressed to the caller.
func (s *Service) RejectRequest(ctx context.Context, actor dirmodels.Account, requestID id.RequestID) error {
	if actor == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	req, err := s.requests.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if !actor.CanActForIssuer(req.IssuerID) {
		return dErrors.New(dErrors.CodeForbidden, "account may not reject this request")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requests.DeleteRequest(ctx, requestID); err != nil {
			return err
		}
		return s.emitCompliance(ctx, audit.ComplianceEvent{
			Subject:  requestID.String(),
			Action:   audit.EventRequestRejected,
			ActorID:  actor.AccountID(),
			IssuerID: req.IssuerID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reject request")
	}

	s.logAudit(ctx, audit.EventRequestRejected,
		"request_id", requestID.String(),
		"issuer_id", req.IssuerID.String(),
	)
	return nil
}
