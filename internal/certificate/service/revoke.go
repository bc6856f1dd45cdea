package service

import (
	"context"
	"errors"

	"certify/internal/certificate/models"
	dirmodels "certify/internal/directory/models"
	dErrors "certify/pkg/domain-errors"
	audit "certify/pkg/platform/audit"
	"certify/pkg/platform/sentinel"
	"certify/pkg/requestcontext"
)

// Revoke moves a certificate to revoked. Revoking an already revoked
// certificate succeeds and keeps the original revocation time.
// The ledger entry is never touched.
func (s *Service) Revoke(ctx context.Context, actor dirmodels.Account, identifier string) (*models.CertificateRecord, error) {
	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier is required")
	}

	var (
		record         *models.CertificateRecord
		alreadyRevoked bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.store.Execute(ctx, identifier,
			func(r *models.CertificateRecord) error {
				if actor != nil && !actor.CanActForIssuer(r.IssuerID) {
					return dErrors.New(dErrors.CodeForbidden, "account may not revoke this certificate")
				}
				alreadyRevoked = r.IsRevoked()
				if alreadyRevoked {
					return nil
				}
				return r.CanRevoke()
			},
			func(r *models.CertificateRecord) {
				if !alreadyRevoked {
					r.ApplyRevocation(requestcontext.Now(ctx))
				}
			},
		)
		if err != nil || alreadyRevoked {
			return err
		}
		return s.emitCompliance(ctx, audit.ComplianceEvent{
			Subject:  identifier,
			Action:   audit.EventCertificateRevoked,
			ActorID:  revokerID(actor, record),
			IssuerID: record.IssuerID.String(),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		case dErrors.HasCode(err, dErrors.CodeForbidden):
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
		}
	}

	if alreadyRevoked {
		s.logger.InfoContext(ctx, "certificate already revoked", "identifier", identifier)
		return record, nil
	}
	s.metrics.IncrementRevocations()
	s.logAudit(ctx, audit.EventCertificateRevoked,
		"identifier", identifier,
		"issuer_id", record.IssuerID.String(),
	)
	return record, nil
}

func revokerID(actor dirmodels.Account, record *models.CertificateRecord) string {
	if actor != nil {
		return actor.AccountID()
	}
	return record.IssuerID.String()
}
