package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"certify/internal/certificate/fingerprint"
	"certify/internal/certificate/models"
	audit "certify/pkg/platform/audit"
	"certify/pkg/platform/sentinel"
)

type sweepResult string

const (
	sweepIntact     sweepResult = "intact"
	sweepTampered   sweepResult = "tampered"
	sweepUnanchored sweepResult = "unanchored"
	sweepFailed     sweepResult = "failed"
)

// Sweep walks every active registry record and checks it against its ledger
// anchor using the registry's own subject email. Revoked records are skipped.
// Findings are reported as security events; lookup failures are counted but
// do not stop the walk.
func (s *Service) Sweep(ctx context.Context) (*models.SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Sweep")
	defer span.End()
	start := time.Now()

	var (
		mu     sync.Mutex
		report = &models.SweepReport{Tampered: []string{}, Unanchored: []string{}}
		after  string
	)
	record := func(identifier string, result sweepResult) {
		mu.Lock()
		defer mu.Unlock()
		report.Checked++
		switch result {
		case sweepIntact:
			report.Intact++
		case sweepTampered:
			report.Tampered = append(report.Tampered, identifier)
		case sweepUnanchored:
			report.Unanchored = append(report.Unanchored, identifier)
		case sweepFailed:
			report.Failed++
		}
		s.metrics.IncrementSweep(string(result))
	}

	for {
		page, err := s.store.ListAll(ctx, s.sweepPageSize, after)
		if err != nil {
			return nil, fmt.Errorf("listing certificates after %q: %w", after, err)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.sweepConcurrency)
		for _, rec := range page {
			if rec.IsRevoked() {
				continue
			}
			g.Go(func() error {
				record(rec.Identifier, s.checkAnchor(gctx, rec))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		after = page[len(page)-1].Identifier
		if len(page) < s.sweepPageSize {
			break
		}
	}

	s.logger.InfoContext(ctx, "integrity sweep finished",
		"checked", report.Checked,
		"intact", report.Intact,
		"tampered", len(report.Tampered),
		"unanchored", len(report.Unanchored),
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return report, nil
}

func (s *Service) checkAnchor(ctx context.Context, rec *models.CertificateRecord) sweepResult {
	entry, err := s.readLedger(ctx, rec.Identifier)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "sweep ledger read failed", "identifier", rec.Identifier, "error", err)
		return sweepFailed
	}
	if err != nil || entry.IsEmpty() {
		s.emitSecurity(ctx, audit.SecurityEvent{
			Subject:  rec.Identifier,
			Action:   audit.EventLedgerAnchorMissing,
			Reason:   "registry record has no ledger entry",
			IssuerID: rec.IssuerID.String(),
			Severity: audit.SeverityWarning,
		})
		return sweepUnanchored
	}

	subject, err := s.directory.FindSubjectByID(ctx, rec.SubjectID)
	if err != nil {
		s.logger.WarnContext(ctx, "sweep subject lookup failed", "identifier", rec.Identifier, "error", err)
		return sweepFailed
	}
	recomputed, err := fingerprint.Compute(rec.Identifier, subject.Email, rec.CourseName, rec.IssuerName)
	if err != nil {
		return sweepFailed
	}
	if !fingerprint.Equal(recomputed, entry.Fingerprint) {
		s.logger.ErrorContext(ctx, "registry record diverges from ledger anchor",
			"identifier", rec.Identifier,
			"issuer_id", rec.IssuerID.String(),
		)
		s.emitSecurity(ctx, audit.SecurityEvent{
			Subject:  rec.Identifier,
			Action:   audit.EventIntegrityViolation,
			Reason:   "recomputed fingerprint does not match ledger",
			IssuerID: rec.IssuerID.String(),
			Severity: audit.SeverityCritical,
		})
		return sweepTampered
	}
	return sweepIntact
}
