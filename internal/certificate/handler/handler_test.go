package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certify/internal/certificate/handler/mocks"
	"certify/internal/certificate/models"
	dirmodels "certify/internal/directory/models"
	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
	"certify/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	service  *mocks.MockService
	accounts *mocks.MockAccountResolver
	router   http.Handler

	issuer  *dirmodels.Issuer
	subject *dirmodels.Subject
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.accounts = mocks.NewMockAccountResolver(s.ctrl)
	s.issuer = &dirmodels.Issuer{ID: id.IssuerID(uuid.New()), Name: "Acme Univ", Verified: true, AdminApproved: true}
	s.subject = &dirmodels.Subject{ID: id.SubjectID(uuid.New()), Name: "Alice", Email: "alice@example.com"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, s.accounts, logger, WithAdmin(func(next http.Handler) http.Handler { return next }))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) asIssuer(req *http.Request) *http.Request {
	s.accounts.EXPECT().ResolveAccount(gomock.Any(), "issuer", s.issuer.AccountID()).Return(s.issuer, nil)
	return testutil.WithPrincipal(req, s.issuer.AccountID(), "issuer")
}

func (s *HandlerSuite) asSubject(req *http.Request) *http.Request {
	s.accounts.EXPECT().ResolveAccount(gomock.Any(), "subject", s.subject.AccountID()).Return(s.subject, nil)
	return testutil.WithPrincipal(req, s.subject.AccountID(), "subject")
}

func (s *HandlerSuite) TestIssue() {
	s.Run("issuer name defaults to the calling issuer", func() {
		s.service.EXPECT().Issue(gomock.Any(), s.issuer, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ dirmodels.Account, cmd models.IssueCommand) (*models.IssueResult, error) {
				s.Equal("Acme Univ", cmd.IssuerName)
				s.Equal("alice@example.com", cmd.SubjectEmail)
				s.Require().NotNil(cmd.CompletionDate)
				s.Equal(time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), *cmd.CompletionDate)
				return &models.IssueResult{
					Certificate: &models.CertificateRecord{Identifier: "cert-1"},
					Encoded:     `{"identifier":"cert-1"}`,
				}, nil
			})

		req := s.asIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/certificates", map[string]string{
			"subject_email":   " Alice@Example.com ",
			"course_name":     "Physics",
			"completion_date": "2026-04-30",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		s.Contains(rr.Body.String(), `"encoded_payload"`)
	})

	s.Run("invalid body is a validation error", func() {
		req := s.asIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/certificates", map[string]string{
			"subject_email": "not-an-email",
			"course_name":   "Physics",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("ledger failure is unavailable", func() {
		s.service.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeLedgerWriteFailed, "ledger write was not confirmed"))

		req := s.asIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/certificates", map[string]string{
			"subject_email": "alice@example.com",
			"course_name":   "Physics",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, string(dErrors.CodeLedgerWriteFailed))
	})

	s.Run("unauthenticated callers are rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/certificates", map[string]string{}))
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *HandlerSuite) TestVerify() {
	s.Run("verdicts are always 200", func() {
		s.service.EXPECT().Verify(gomock.Any(), "legacy-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, claim models.VerificationClaim) *models.Verification {
				s.Equal("Physics", claim.CourseName)
				return &models.Verification{Verdict: models.VerdictTampered, MismatchedFields: []string{}}
			})

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify",
			`{"qrCodeId":"legacy-1","courseName":"Physics"}`))
		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[models.Verification](s.T(), rr)
		s.Equal(models.VerdictTampered, got.Verdict)
		s.False(got.Valid)
	})

	s.Run("malformed json is 400", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify", `{"identifier":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("over-long claim fields still get a verdict", func() {
		long := strings.Repeat("a", 201)
		s.service.EXPECT().Verify(gomock.Any(), "cert-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, claim models.VerificationClaim) *models.Verification {
				s.Equal(long, claim.RecipientName)
				return &models.Verification{Verdict: models.VerdictMismatch, IntegrityIntact: true, MismatchedFields: []string{models.FieldRecipientName}}
			})

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify",
			`{"identifier":"cert-1","recipientName":"`+long+`"}`))
		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[models.Verification](s.T(), rr)
		s.Equal(models.VerdictMismatch, got.Verdict)
		s.Equal([]string{models.FieldRecipientName}, got.MismatchedFields)
	})

	s.Run("over-long identifier is verified, not rejected", func() {
		long := strings.Repeat("x", 129)
		s.service.EXPECT().Verify(gomock.Any(), long, gomock.Any()).
			Return(&models.Verification{Verdict: models.VerdictInvalidIdentifier, MismatchedFields: []string{}})

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify",
			`{"identifier":"`+long+`"}`))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "verdict", string(models.VerdictInvalidIdentifier))
	})

	s.Run("scan accepts a multipart image", func() {
		s.service.EXPECT().ExtractPayload(gomock.Any(), []byte("png-bytes")).Return(`{"identifier":"cert-1"}`, nil)
		s.service.EXPECT().VerifyPayload(gomock.Any(), `{"identifier":"cert-1"}`).
			Return(&models.Verification{Verdict: models.VerdictMatch, Valid: true, IntegrityIntact: true, MismatchedFields: []string{}}, nil)

		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verify/scan", "image", "cert.png", []byte("png-bytes"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), `"verdict":"match"`)
	})

	s.Run("scan without a code is not found", func() {
		s.service.EXPECT().ExtractPayload(gomock.Any(), gomock.Any()).
			Return("", dErrors.New(dErrors.CodeNotFound, "no QR code found"))

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify/scan", "blank")
		req.Header.Set("Content-Type", "image/png")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestRevoke() {
	s.service.EXPECT().Revoke(gomock.Any(), s.issuer, "cert-1").
		Return(&models.CertificateRecord{Identifier: "cert-1", Status: models.StatusRevoked}, nil)

	rr := testutil.DoRequest(s.router, s.asIssuer(testutil.NewRequest(s.T(), http.MethodPatch, "/certificates/cert-1/revoke")))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "revoked")
}

func (s *HandlerSuite) TestListings() {
	s.Run("status filter is split and lowercased", func() {
		s.service.EXPECT().ListByIssuer(gomock.Any(), s.issuer, []string{"active", "revoked"}).Return(nil, nil)

		rr := testutil.DoRequest(s.router, s.asIssuer(testutil.NewRequest(s.T(), http.MethodGet, "/certificates/issued?status=Active,revoked")))
		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"certificates":[]}`, rr.Body.String())
	})

	s.Run("subject listing", func() {
		s.service.EXPECT().ListBySubject(gomock.Any(), s.subject).
			Return([]*models.CertificateRecord{{Identifier: "cert-1"}}, nil)

		rr := testutil.DoRequest(s.router, s.asSubject(testutil.NewRequest(s.T(), http.MethodGet, "/certificates/mine")))
		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), `"identifier":"cert-1"`)
	})
}

func (s *HandlerSuite) TestRequests() {
	s.Run("subject creates a request", func() {
		s.service.EXPECT().CreateRequest(gomock.Any(), s.subject, "Acme Univ", "Spring cohort").
			Return(&models.CertificateRequest{ID: id.RequestID(uuid.New()), Status: models.RequestStatusPending}, nil)

		req := s.asSubject(testutil.NewJSONRequest(s.T(), http.MethodPost, "/requests", map[string]string{
			"issuer_name": " Acme Univ ",
			"message":     "Spring cohort ",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("reject with a malformed id is 400", func() {
		rr := testutil.DoRequest(s.router, s.asIssuer(testutil.NewRequest(s.T(), http.MethodDelete, "/requests/not-a-uuid")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("reject forwards forbidden", func() {
		reqID := id.RequestID(uuid.New())
		s.service.EXPECT().RejectRequest(gomock.Any(), s.issuer, reqID).
			Return(dErrors.New(dErrors.CodeForbidden, "account may not reject this request"))

		rr := testutil.DoRequest(s.router, s.asIssuer(testutil.NewRequest(s.T(), http.MethodDelete, "/requests/"+reqID.String())))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func (s *HandlerSuite) TestSweep() {
	s.service.EXPECT().Sweep(gomock.Any()).
		Return(&models.SweepReport{Checked: 3, Intact: 3, Tampered: []string{}, Unanchored: []string{}}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/admin/sweep"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "checked", float64(3))
}
