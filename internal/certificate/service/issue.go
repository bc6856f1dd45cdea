package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"certify/internal/certificate/fingerprint"
	"certify/internal/certificate/models"
	dirmodels "certify/internal/directory/models"
	"certify/internal/ledger"
	dErrors "certify/pkg/domain-errors"
	"certify/pkg/email"
	audit "certify/pkg/platform/audit"
	"certify/pkg/platform/sentinel"
	"certify/pkg/requestcontext"
)

// Issue creates a certificate for the subject under the named issuer.
//
// The ledger entry is confirmed before the registry record is written, so a
// failed ledger write leaves no record behind. actor must be able to act for
// the issuer. A nil actor is a trusted internal caller.
func (s *Service) Issue(ctx context.Context, actor dirmodels.Account, cmd models.IssueCommand) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Issue")
	defer span.End()
	start := time.Now()

	result, outcome, err := s.issue(ctx, actor, cmd)
	s.metrics.ObserveIssue(outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.String("identifier", result.Certificate.Identifier))
	return result, nil
}

func (s *Service) issue(ctx context.Context, actor dirmodels.Account, cmd models.IssueCommand) (*models.IssueResult, string, error) {
	cmd.Normalize()
	if err := validateIssueCommand(cmd); err != nil {
		return nil, "invalid", err
	}

	subject, issuer, err := s.resolveParties(ctx, cmd.SubjectEmail, cmd.IssuerName)
	if err != nil {
		return nil, "not_found", err
	}
	if actor != nil && !actor.CanActForIssuer(issuer.ID) {
		return nil, "forbidden", dErrors.New(dErrors.CodeForbidden, "account may not issue for this issuer")
	}

	identifier := s.newID()
	fp, err := fingerprint.Compute(identifier, subject.Email, cmd.CourseName, issuer.Name)
	if err != nil {
		return nil, "invalid", dErrors.Wrap(err, dErrors.CodeInternal, "failed to fingerprint certificate")
	}

	institution := cmd.InstitutionName
	if institution == "" {
		institution = issuer.InstitutionName
	}
	issued := models.IssuedCertificate{
		Identifier:      identifier,
		SubjectID:       subject.ID,
		IssuerID:        issuer.ID,
		SubjectName:     subject.Name,
		CourseName:      cmd.CourseName,
		IssuerName:      issuer.Name,
		InstitutionName: institution,
		Title:           cmd.Title,
		Description:     cmd.Description,
		CompletionDate:  cmd.CompletionDate,
		IssuedAt:        requestcontext.Now(ctx),
		Fingerprint:     fp,
	}

	// Everything that can fail without side effects runs before the
	// ledger write, which cannot be undone.
	payload := models.NewScannablePayload(issued, subject.Email)
	encoded, err := payload.Encode()
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, "invalid", err
		}
		return nil, "invalid", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payload")
	}

	confirmation, err := s.recordOnLedger(ctx, ledger.Entry{
		Identifier:       identifier,
		Fingerprint:      fp,
		AuxiliaryPointer: ledger.DefaultAuxiliaryPointer,
		IssuerRef:        issuer.ID.String(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger write failed",
			"identifier", identifier,
			"issuer_id", issuer.ID.String(),
			"error", err,
		)
		return nil, "ledger_failed", dErrors.Wrap(err, dErrors.CodeLedgerWriteFailed, "ledger write was not confirmed")
	}

	issued.LedgerTxRef = confirmation.TxRef
	record, err := models.NewCertificateRecord(issued)
	if err != nil {
		s.reportOrphan(ctx, identifier, issuer.ID.String(), err)
		return nil, "persist_failed", dErrors.Wrap(err, dErrors.CodeInternal, "failed to build certificate record")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, record); err != nil {
			return err
		}
		return s.emitCompliance(ctx, audit.ComplianceEvent{
			Subject:  identifier,
			Action:   audit.EventCertificateIssued,
			ActorID:  actorID(actor, issuer),
			IssuerID: issuer.ID.String(),
		})
	})
	if err != nil {
		s.reportOrphan(ctx, identifier, issuer.ID.String(), err)
		return nil, "persist_failed", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist certificate")
	}

	s.logAudit(ctx, audit.EventCertificateIssued,
		"identifier", identifier,
		"issuer_id", issuer.ID.String(),
		"subject_id", subject.ID.String(),
		"ledger_tx_ref", confirmation.TxRef,
	)
	s.afterIssue(ctx, subject, issuer, identifier)

	return &models.IssueResult{Certificate: record, Payload: payload, Encoded: encoded}, "issued", nil
}

func validateIssueCommand(cmd models.IssueCommand) error {
	switch {
	case cmd.SubjectEmail == "":
		return dErrors.New(dErrors.CodeValidation, "subject email is required")
	case cmd.CourseName == "":
		return dErrors.New(dErrors.CodeValidation, "course name is required")
	case cmd.IssuerName == "":
		return dErrors.New(dErrors.CodeValidation, "issuer name is required")
	}
	return nil
}

// resolveParties looks up the subject and an issuer allowed to issue.
// Unapproved issuers resolve as not found.
func (s *Service) resolveParties(ctx context.Context, subjectEmail, issuerName string) (*dirmodels.Subject, *dirmodels.Issuer, error) {
	subject, err := s.directory.FindSubjectByEmail(ctx, subjectEmail)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve subject")
	}
	issuer, err := s.resolveIssuer(ctx, issuerName)
	if err != nil {
		return nil, nil, err
	}
	return subject, issuer, nil
}

func (s *Service) resolveIssuer(ctx context.Context, name string) (*dirmodels.Issuer, error) {
	issuer, err := s.directory.FindIssuerByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve issuer")
	}
	if !issuer.CanIssue() {
		return nil, dErrors.New(dErrors.CodeNotFound, "issuer not found")
	}
	return issuer, nil
}

// recordOnLedger writes the entry and waits for confirmation, bounded by
// the ledger write timeout.
func (s *Service) recordOnLedger(ctx context.Context, entry ledger.Entry) (ledger.Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ledgerWriteTimeout)
	defer cancel()

	start := time.Now()
	confirmation, err := s.ledger.RecordEntry(ctx, entry)
	if err == nil && confirmation.TxRef == "" {
		err = errors.New("ledger returned no confirmation reference")
	}
	s.metrics.ObserveLedger("record", err, time.Since(start))
	return confirmation, err
}

// reportOrphan records a ledger entry whose registry record was never
// written. The ledger cannot be rolled back.
func (s *Service) reportOrphan(ctx context.Context, identifier, issuerID string, cause error) {
	s.metrics.IncrementOrphaned()
	s.logger.ErrorContext(ctx, "ledger entry orphaned: registry persist failed",
		"identifier", identifier,
		"issuer_id", issuerID,
		"error", cause,
	)
	s.emitSecurity(ctx, audit.SecurityEvent{
		Subject:  identifier,
		Action:   audit.EventOrphanedLedgerEntry,
		Reason:   "registry persist failed after ledger confirmation",
		IssuerID: issuerID,
		Severity: audit.SeverityCritical,
	})
}

// afterIssue runs the best-effort follow-ups. Failures are logged only.
func (s *Service) afterIssue(ctx context.Context, subject *dirmodels.Subject, issuer *dirmodels.Issuer, identifier string) {
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, subject.Email, identifier); err != nil {
			s.logger.WarnContext(ctx, "certificate notification failed",
				"identifier", identifier,
				"recipient", email.Mask(subject.Email),
				"error", err,
			)
		}
	}
	if s.requests != nil {
		if _, err := s.requests.DeleteBySubjectAndIssuer(ctx, subject.ID, issuer.ID); err != nil {
			s.logger.WarnContext(ctx, "pending request cleanup failed",
				"identifier", identifier,
				"subject_id", subject.ID.String(),
				"issuer_id", issuer.ID.String(),
				"error", err,
			)
		}
	}
}

func actorID(actor dirmodels.Account, issuer *dirmodels.Issuer) string {
	if actor != nil {
		return actor.AccountID()
	}
	return issuer.AccountID()
}
