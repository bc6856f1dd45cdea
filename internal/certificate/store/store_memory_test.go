package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certify/internal/certificate/models"
	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
	"certify/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store    *InMemory
	requests *InMemoryRequests
	issuer   id.IssuerID
	subject  id.SubjectID
	base     time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.requests = NewInMemoryRequests()
	s.issuer = id.IssuerID(uuid.New())
	s.subject = id.SubjectID(uuid.New())
	s.base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newRecord(identifier string, issuedAt time.Time) *models.CertificateRecord {
	record, err := models.NewCertificateRecord(models.IssuedCertificate{
		Identifier:  identifier,
		SubjectID:   s.subject,
		IssuerID:    s.issuer,
		SubjectName: "Alice Example",
		CourseName:  "Physics",
		IssuerName:  "Acme Univ",
		IssuedAt:    issuedAt,
		Fingerprint: "f-" + identifier,
		LedgerTxRef: "tx-" + identifier,
	})
	s.Require().NoError(err)
	return record
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	record := s.newRecord("cert-1", s.base)
	s.Require().NoError(s.store.Create(ctx, record))

	s.Run("duplicate identifier conflicts", func() {
		err := s.store.Create(ctx, s.newRecord("cert-1", s.base))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returned records are copies", func() {
		found, err := s.store.FindByIdentifier(ctx, "cert-1")
		s.Require().NoError(err)
		found.CourseName = "Chemistry"

		again, err := s.store.FindByIdentifier(ctx, "cert-1")
		s.Require().NoError(err)
		s.Equal("Physics", again.CourseName)
	})

	s.Run("unknown identifier", func() {
		_, err := s.store.FindByIdentifier(ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListings() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRecord("cert-old", s.base)))
	s.Require().NoError(s.store.Create(ctx, s.newRecord("cert-new", s.base.Add(time.Hour))))
	revoked := s.newRecord("cert-rev", s.base.Add(30*time.Minute))
	revoked.ApplyRevocation(s.base.Add(2 * time.Hour))
	s.Require().NoError(s.store.Create(ctx, revoked))

	s.Run("by issuer newest first", func() {
		got, err := s.store.ListByIssuer(ctx, s.issuer, nil)
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.Equal([]string{"cert-new", "cert-rev", "cert-old"}, identifiers(got))
	})

	s.Run("by issuer with status filter", func() {
		got, err := s.store.ListByIssuer(ctx, s.issuer, []models.Status{models.StatusRevoked})
		s.Require().NoError(err)
		s.Equal([]string{"cert-rev"}, identifiers(got))
	})

	s.Run("other issuer sees nothing", func() {
		got, err := s.store.ListByIssuer(ctx, id.IssuerID(uuid.New()), nil)
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("by subject", func() {
		got, err := s.store.ListBySubject(ctx, s.subject)
		s.Require().NoError(err)
		s.Len(got, 3)
	})

	s.Run("keyset paging", func() {
		page, err := s.store.ListAll(ctx, 2, "")
		s.Require().NoError(err)
		s.Equal([]string{"cert-new", "cert-old"}, identifiers(page))

		page, err = s.store.ListAll(ctx, 2, "cert-old")
		s.Require().NoError(err)
		s.Equal([]string{"cert-rev"}, identifiers(page))
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRecord("cert-1", s.base)))
	revokedAt := s.base.Add(time.Hour)

	updated, err := s.store.Execute(ctx, "cert-1",
		func(r *models.CertificateRecord) error { return r.CanRevoke() },
		func(r *models.CertificateRecord) { r.ApplyRevocation(revokedAt) },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, updated.Status)

	s.Run("validate failure leaves record untouched", func() {
		_, err := s.store.Execute(ctx, "cert-1",
			func(r *models.CertificateRecord) error { return r.CanRevoke() },
			func(r *models.CertificateRecord) { r.ApplyRevocation(revokedAt.Add(time.Hour)) },
		)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		found, err := s.store.FindByIdentifier(ctx, "cert-1")
		s.Require().NoError(err)
		s.Equal(revokedAt, *found.RevokedAt)
	})

	s.Run("unknown identifier", func() {
		_, err := s.store.Execute(ctx, "missing",
			func(*models.CertificateRecord) error { return nil },
			func(*models.CertificateRecord) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestRequests() {
	ctx := context.Background()
	req, err := models.NewCertificateRequest(id.RequestID(uuid.New()), s.subject, s.issuer, "please", s.base)
	s.Require().NoError(err)
	s.Require().NoError(s.requests.CreateRequest(ctx, req))

	s.Run("second pending request for the pair conflicts", func() {
		dup, err := models.NewCertificateRequest(id.RequestID(uuid.New()), s.subject, s.issuer, "again", s.base)
		s.Require().NoError(err)
		s.ErrorIs(s.requests.CreateRequest(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("pending by issuer", func() {
		pending, err := s.requests.ListPendingByIssuer(ctx, s.issuer)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(req.ID, pending[0].ID)
	})

	s.Run("delete by pair", func() {
		n, err := s.requests.DeleteBySubjectAndIssuer(ctx, s.subject, s.issuer)
		s.Require().NoError(err)
		s.Equal(1, n)

		_, err = s.requests.FindRequest(ctx, req.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.requests.DeleteRequest(ctx, req.ID), sentinel.ErrNotFound)
	})
}

func identifiers(records []*models.CertificateRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Identifier)
	}
	return out
}
