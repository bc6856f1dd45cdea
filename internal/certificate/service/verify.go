package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"certify/internal/certificate/fingerprint"
	"certify/internal/certificate/models"
	"certify/internal/ledger"
	"certify/pkg/platform/sentinel"
)

// Verify checks a claimed identifier and the claimant's data against the
// registry and the ledger. It always returns a verdict. Infrastructure
// failures are reported as VerdictServerError and logged.
func (s *Service) Verify(ctx context.Context, identifier string, claim models.VerificationClaim) *models.Verification {
	ctx, span := s.tracer.Start(ctx, "certificate.Verify")
	defer span.End()

	result := s.verify(ctx, strings.TrimSpace(identifier), claim)
	s.metrics.IncrementVerdict(string(result.Verdict))
	span.SetAttributes(
		attribute.String("verdict", string(result.Verdict)),
		attribute.Bool("valid", result.Valid),
	)
	return result
}

func (s *Service) verify(ctx context.Context, identifier string, claim models.VerificationClaim) *models.Verification {
	if identifier == "" {
		return models.NewVerification(models.VerdictInvalidIdentifier)
	}

	record, err := s.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewVerification(models.VerdictInvalidIdentifier)
		}
		return s.serverError(ctx, identifier, "registry lookup failed", err)
	}

	view := record.View()
	if record.IsRevoked() {
		result := models.NewVerification(models.VerdictRevoked)
		result.Certificate = &view
		result.LedgerTxRef = record.LedgerTxRef
		return result
	}

	entry, err := s.readLedger(ctx, identifier)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return s.serverError(ctx, identifier, "ledger read failed", err)
	}
	if err != nil || entry.IsEmpty() {
		s.logger.WarnContext(ctx, "registry record has no ledger anchor", "identifier", identifier)
		result := models.NewVerification(models.VerdictNoLedgerRecord)
		result.Certificate = &view
		result.LedgerTxRef = record.LedgerTxRef
		return result
	}

	mismatched := mismatchedFields(record, claim)

	registryEmail := ""
	if strings.TrimSpace(claim.SubjectEmail) == "" {
		subject, err := s.directory.FindSubjectByID(ctx, record.SubjectID)
		if err != nil {
			return s.serverError(ctx, identifier, "subject lookup failed", err)
		}
		registryEmail = subject.Email
	}

	recomputed, err := fingerprint.Compute(record.Identifier, subjectEmailFor(claim, registryEmail), record.CourseName, record.IssuerName)
	if err != nil {
		return s.serverError(ctx, identifier, "fingerprint recompute failed", err)
	}
	intact := fingerprint.Equal(recomputed, entry.Fingerprint)
	if !intact {
		s.logger.WarnContext(ctx, "fingerprint does not match ledger anchor", "identifier", identifier)
	}

	verdict, valid := composeVerdict(mismatched, intact)
	return &models.Verification{
		Verdict:          verdict,
		Valid:            valid,
		IntegrityIntact:  intact,
		MismatchedFields: mismatched,
		Certificate:      &view,
		LedgerTxRef:      record.LedgerTxRef,
	}
}

// VerifyPayload parses a scanned payload and verifies it. Only an
// unparseable payload is an error.
func (s *Service) VerifyPayload(ctx context.Context, raw string) (*models.Verification, error) {
	payload, err := models.ParseScannablePayload(raw)
	if err != nil {
		return nil, err
	}
	claim := payload.Claim()
	return s.Verify(ctx, claim.Identifier, claim), nil
}

// ExtractPayload reads the payload text from a QR image.
func (s *Service) ExtractPayload(ctx context.Context, img []byte) (string, error) {
	if s.scanner == nil {
		return "", errors.New("no scanner configured")
	}
	return s.scanner.Extract(ctx, img)
}

func (s *Service) readLedger(ctx context.Context, identifier string) (ledger.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ledgerReadTimeout)
	defer cancel()

	start := time.Now()
	entry, err := s.ledger.ReadEntry(ctx, identifier)
	s.metrics.ObserveLedger("read", err, time.Since(start))
	return entry, err
}

func (s *Service) serverError(ctx context.Context, identifier, msg string, err error) *models.Verification {
	s.logger.ErrorContext(ctx, msg, "identifier", identifier, "error", err)
	return models.NewVerification(models.VerdictServerError)
}
