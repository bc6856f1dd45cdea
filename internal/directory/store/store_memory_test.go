package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certify/internal/directory/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

type DirectoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestDirectoryStoreSuite(t *testing.T) {
	suite.Run(t, new(DirectoryStoreSuite))
}

func (s *DirectoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *DirectoryStoreSuite) TestSubjectLookups() {
	subject := &models.Subject{ID: id.SubjectID(uuid.New()), Name: "Alice", Email: "Alice@Example.com", CreatedAt: time.Now()}
	s.Require().NoError(s.store.CreateSubject(s.ctx, subject))

	s.Run("email lookup is case-insensitive", func() {
		found, err := s.store.FindSubjectByEmail(s.ctx, " alice@EXAMPLE.com ")
		s.Require().NoError(err)
		s.Equal(subject.ID, found.ID)
	})

	s.Run("duplicate email conflicts", func() {
		dup := &models.Subject{ID: id.SubjectID(uuid.New()), Email: "alice@example.com"}
		s.ErrorIs(s.store.CreateSubject(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("unknown subject is not found", func() {
		_, err := s.store.FindSubjectByEmail(s.ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindSubjectByID(s.ctx, id.SubjectID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DirectoryStoreSuite) TestIssuerLookups() {
	issuer := &models.Issuer{ID: id.IssuerID(uuid.New()), Name: "Acme Univ", Email: "reg@acme.example", Verified: true, AdminApproved: true}
	s.Require().NoError(s.store.CreateIssuer(s.ctx, issuer))

	s.Run("name lookup ignores case and spacing", func() {
		found, err := s.store.FindIssuerByName(s.ctx, "acme   UNIV")
		s.Require().NoError(err)
		s.Equal(issuer.ID, found.ID)
	})

	s.Run("returned issuer is a copy", func() {
		found, err := s.store.FindIssuerByID(s.ctx, issuer.ID)
		s.Require().NoError(err)
		found.AdminApproved = false

		again, err := s.store.FindIssuerByID(s.ctx, issuer.ID)
		s.Require().NoError(err)
		s.True(again.AdminApproved)
	})
}

func (s *DirectoryStoreSuite) TestSeedDemoAccountsIsRepeatable() {
	_, issuer, _, err := SeedDemoAccounts(s.ctx, s.store)
	s.Require().NoError(err)
	s.True(issuer.CanIssue())

	_, _, _, err = SeedDemoAccounts(s.ctx, s.store)
	s.Require().NoError(err)
}
