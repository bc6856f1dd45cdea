//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certify/internal/certificate/models"
	"certify/internal/certificate/store"
	dirstore "certify/internal/directory/store"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
	"certify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	requests *store.PostgresRequests
	subject  id.SubjectID
	issuer   id.IssuerID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.requests = store.NewPostgresRequests(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "certificate_requests", "certificates", "subjects", "issuers", "admins"))

	subject, issuer, _, err := dirstore.SeedDemoAccounts(ctx, dirstore.NewPostgres(s.postgres.DB))
	s.Require().NoError(err)
	s.subject = subject.ID
	s.issuer = issuer.ID
}

func (s *PostgresStoreSuite) newRecord(issuedAt time.Time) *models.CertificateRecord {
	identifier := uuid.NewString()
	completed := issuedAt.Add(-24 * time.Hour).UTC().Truncate(time.Second)
	record, err := models.NewCertificateRecord(models.IssuedCertificate{
		Identifier:      identifier,
		SubjectID:       s.subject,
		IssuerID:        s.issuer,
		SubjectName:     "Alice Example",
		CourseName:      "Physics",
		IssuerName:      "Acme Univ",
		InstitutionName: "Acme University",
		CompletionDate:  &completed,
		IssuedAt:        issuedAt.UTC().Truncate(time.Microsecond),
		Fingerprint:     "f-" + identifier,
		LedgerTxRef:     "tx-" + identifier,
	})
	s.Require().NoError(err)
	return record
}

func (s *PostgresStoreSuite) TestCreateRoundTrip() {
	ctx := context.Background()
	record := s.newRecord(time.Now())
	s.Require().NoError(s.store.Create(ctx, record))

	found, err := s.store.FindByIdentifier(ctx, record.Identifier)
	s.Require().NoError(err)
	s.Equal(record.Fingerprint, found.Fingerprint)
	s.Equal(record.LedgerTxRef, found.LedgerTxRef)
	s.True(found.Anchored)
	s.Equal(models.StatusActive, found.Status)
	s.Require().NotNil(found.CompletionDate)
	s.True(record.CompletionDate.Equal(*found.CompletionDate))
	s.Nil(found.RevokedAt)

	s.ErrorIs(s.store.Create(ctx, record), sentinel.ErrConflict)

	_, err = s.store.FindByIdentifier(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByIssuerStatusFilter() {
	ctx := context.Background()
	base := time.Now()
	active := s.newRecord(base)
	revoked := s.newRecord(base.Add(time.Minute))
	s.Require().NoError(s.store.Create(ctx, active))
	s.Require().NoError(s.store.Create(ctx, revoked))
	_, err := s.store.Execute(ctx, revoked.Identifier,
		func(r *models.CertificateRecord) error { return r.CanRevoke() },
		func(r *models.CertificateRecord) { r.ApplyRevocation(base.Add(time.Hour)) },
	)
	s.Require().NoError(err)

	all, err := s.store.ListByIssuer(ctx, s.issuer, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(revoked.Identifier, all[0].Identifier)

	onlyActive, err := s.store.ListByIssuer(ctx, s.issuer, []models.Status{models.StatusActive})
	s.Require().NoError(err)
	s.Require().Len(onlyActive, 1)
	s.Equal(active.Identifier, onlyActive[0].Identifier)

	mine, err := s.store.ListBySubject(ctx, s.subject)
	s.Require().NoError(err)
	s.Len(mine, 2)
}

// TestConcurrentRevocation verifies that exactly one revoke wins the row lock
// transition and the rest see a revoked record.
func (s *PostgresStoreSuite) TestConcurrentRevocation() {
	ctx := context.Background()
	record := s.newRecord(time.Now())
	s.Require().NoError(s.store.Create(ctx, record))

	const goroutines = 20
	var wg sync.WaitGroup
	var transitions atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, record.Identifier,
				func(r *models.CertificateRecord) error { return r.CanRevoke() },
				func(r *models.CertificateRecord) { r.ApplyRevocation(time.Now()) },
			)
			if err == nil {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), transitions.Load())
	found, err := s.store.FindByIdentifier(ctx, record.Identifier)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, found.Status)
	s.NotNil(found.RevokedAt)
}

func (s *PostgresStoreSuite) TestListAllPages() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Create(ctx, s.newRecord(time.Now())))
	}

	seen := 0
	after := ""
	for {
		page, err := s.store.ListAll(ctx, 2, after)
		s.Require().NoError(err)
		if len(page) == 0 {
			break
		}
		seen += len(page)
		after = page[len(page)-1].Identifier
	}
	s.Equal(5, seen)
}

func (s *PostgresStoreSuite) TestRequests() {
	ctx := context.Background()
	req, err := models.NewCertificateRequest(id.RequestID(uuid.New()), s.subject, s.issuer, "please certify", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.requests.CreateRequest(ctx, req))

	dup, err := models.NewCertificateRequest(id.RequestID(uuid.New()), s.subject, s.issuer, "again", time.Now())
	s.Require().NoError(err)
	s.True(errors.Is(s.requests.CreateRequest(ctx, dup), sentinel.ErrConflict))

	pending, err := s.requests.ListPendingByIssuer(ctx, s.issuer)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("please certify", pending[0].Message)

	n, err := s.requests.DeleteBySubjectAndIssuer(ctx, s.subject, s.issuer)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.ErrorIs(s.requests.DeleteRequest(ctx, req.ID), sentinel.ErrNotFound)
}
