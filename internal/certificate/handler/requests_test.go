package handler

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "certify/pkg/domain-errors"
)

type IssueRequestSuite struct {
	suite.Suite
}

func TestIssueRequestSuite(t *testing.T) {
	suite.Run(t, new(IssueRequestSuite))
}

func (s *IssueRequestSuite) TestPrepare() {
	req := &IssueRequest{
		SubjectEmail: "  Bob@X.com ",
		CourseName:   " Math ",
		IssuerName:   " Acme ",
	}
	req.Prepare()
	s.Equal("bob@x.com", req.SubjectEmail)
	s.Equal("Math", req.CourseName)
	s.Equal("Acme", req.IssuerName)
}

func (s *IssueRequestSuite) TestCommand() {
	s.Run("without completion date", func() {
		cmd, err := (&IssueRequest{SubjectEmail: "bob@x.com", CourseName: "Math"}).Command()
		s.Require().NoError(err)
		s.Nil(cmd.CompletionDate)
	})

	s.Run("bad completion date", func() {
		_, err := (&IssueRequest{CompletionDate: "30/04/2026"}).Command()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestVerifyRequestLegacyAlias(t *testing.T) {
	req := &VerifyRequest{QRCodeID: " abc "}
	req.Prepare()
	if req.Claim().Identifier != "abc" {
		t.Fatalf("expected legacy qrCodeId to fill identifier, got %q", req.Claim().Identifier)
	}

	req = &VerifyRequest{Identifier: "new", QRCodeID: "old"}
	req.Prepare()
	if req.Identifier != "new" {
		t.Fatalf("expected identifier to win over qrCodeId, got %q", req.Identifier)
	}
}
