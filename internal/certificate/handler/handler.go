// Package handler exposes the certificate operations over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certify/internal/certificate/models"
	dirmodels "certify/internal/directory/models"
	"certify/internal/scanner"
	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
	"certify/pkg/platform/httputil"
	pstrings "certify/pkg/platform/strings"
	"certify/pkg/requestcontext"
)

// Service is the certificate service as seen by HTTP.
type Service interface {
	Issue(ctx context.Context, actor dirmodels.Account, cmd models.IssueCommand) (*models.IssueResult, error)
	Verify(ctx context.Context, identifier string, claim models.VerificationClaim) *models.Verification
	VerifyPayload(ctx context.Context, raw string) (*models.Verification, error)
	ExtractPayload(ctx context.Context, img []byte) (string, error)
	Revoke(ctx context.Context, actor dirmodels.Account, identifier string) (*models.CertificateRecord, error)
	ListByIssuer(ctx context.Context, actor dirmodels.Account, statuses []string) ([]*models.CertificateRecord, error)
	ListBySubject(ctx context.Context, actor dirmodels.Account) ([]*models.CertificateRecord, error)
	CreateRequest(ctx context.Context, actor dirmodels.Account, issuerName, message string) (*models.CertificateRequest, error)
	ListPendingRequests(ctx context.Context, actor dirmodels.Account) ([]*models.CertificateRequest, error)
	RejectRequest(ctx context.Context, actor dirmodels.Account, requestID id.RequestID) error
	Sweep(ctx context.Context) (*models.SweepReport, error)
}

// AccountResolver maps the authenticated principal to its directory account.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, role, accountID string) (dirmodels.Account, error)
}

type Middleware = func(http.Handler) http.Handler

func passthrough(next http.Handler) http.Handler { return next }

// Handler serves the certificate routes.
type Handler struct {
	service  Service
	accounts AccountResolver
	logger   *slog.Logger

	requireAuth  Middleware
	limitVerify  Middleware
	requireAdmin Middleware
}

type Option func(*Handler)

// WithAuth sets the middleware guarding account routes.
func WithAuth(mw Middleware) Option {
	return func(h *Handler) { h.requireAuth = mw }
}

// WithVerifyLimiter sets the middleware throttling public verification.
func WithVerifyLimiter(mw Middleware) Option {
	return func(h *Handler) { h.limitVerify = mw }
}

// WithAdmin enables the operator routes behind mw.
func WithAdmin(mw Middleware) Option {
	return func(h *Handler) { h.requireAdmin = mw }
}

func New(service Service, accounts AccountResolver, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		accounts:    accounts,
		logger:      logger,
		requireAuth: passthrough,
		limitVerify: passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.limitVerify)
		r.Post("/verify", h.handleVerify)
		r.Post("/verify/scan", h.handleVerifyScan)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/certificates", h.handleIssue)
		r.Patch("/certificates/{identifier}/revoke", h.handleRevoke)
		r.Get("/certificates/issued", h.handleListIssued)
		r.Get("/certificates/mine", h.handleListMine)
		r.Post("/requests", h.handleCreateRequest)
		r.Get("/requests/pending", h.handleListPending)
		r.Delete("/requests/{requestID}", h.handleRejectRequest)
	})

	if h.requireAdmin != nil {
		r.With(h.requireAdmin).Post("/admin/sweep", h.handleSweep)
	}
}

// actor resolves the authenticated account for the request.
func (h *Handler) actor(ctx context.Context) (dirmodels.Account, error) {
	principal, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return h.accounts.ResolveAccount(ctx, principal.Role, principal.AccountID)
}

// fail writes err, logging server-side failures with the request ID.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeLedgerWriteFailed {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "issue rejected", err)
		return
	}

	var req IssueRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		h.fail(ctx, w, "invalid issue request", err)
		return
	}
	if issuer, ok := actor.(*dirmodels.Issuer); ok && req.IssuerName == "" {
		req.IssuerName = issuer.Name
	}
	cmd, err := req.Command()
	if err != nil {
		h.fail(ctx, w, "invalid issue request", err)
		return
	}

	result, err := h.service.Issue(ctx, actor, cmd)
	if err != nil {
		h.fail(ctx, w, "issue failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "revoke rejected", err)
		return
	}
	record, err := h.service.Revoke(ctx, actor, chi.URLParam(r, "identifier"))
	if err != nil {
		h.fail(ctx, w, "revoke failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleListIssued(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "list rejected", err)
		return
	}
	records, err := h.service.ListByIssuer(ctx, actor, statusFilter(r))
	if err != nil {
		h.fail(ctx, w, "list issued failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certificateList{Certificates: nonNil(records)})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "list rejected", err)
		return
	}
	records, err := h.service.ListBySubject(ctx, actor)
	if err != nil {
		h.fail(ctx, w, "list mine failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certificateList{Certificates: nonNil(records)})
}

// handleVerify always answers 200 with a verdict, except for bodies that
// are not JSON.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		h.fail(ctx, w, "invalid verify request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Verify(ctx, req.Identifier, req.Claim()))
}

// handleVerifyScan accepts a QR image either as the raw body or as the
// "image" field of a multipart form.
func (h *Handler) handleVerifyScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	img, err := readImage(r)
	if err != nil {
		h.fail(ctx, w, "invalid scan upload", err)
		return
	}
	payload, err := h.service.ExtractPayload(ctx, img)
	if err != nil {
		h.fail(ctx, w, "qr extraction failed", err)
		return
	}
	verification, err := h.service.VerifyPayload(ctx, payload)
	if err != nil {
		h.fail(ctx, w, "scanned payload rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scanResponse{Payload: payload, Verification: verification})
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "request rejected", err)
		return
	}
	var req CreateRequestRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		h.fail(ctx, w, "invalid certificate request", err)
		return
	}
	created, err := h.service.CreateRequest(ctx, actor, req.IssuerName, req.Message)
	if err != nil {
		h.fail(ctx, w, "create request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "list rejected", err)
		return
	}
	reqs, err := h.service.ListPendingRequests(ctx, actor)
	if err != nil {
		h.fail(ctx, w, "list pending failed", err)
		return
	}
	if reqs == nil {
		reqs = []*models.CertificateRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, requestList{Requests: reqs})
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.actor(ctx)
	if err != nil {
		h.fail(ctx, w, "reject rejected", err)
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(ctx, w, "invalid request id", err)
		return
	}
	if err := h.service.RejectRequest(ctx, actor, requestID); err != nil {
		h.fail(ctx, w, "reject request failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.service.Sweep(ctx)
	if err != nil {
		h.fail(ctx, w, "sweep failed", dErrors.Wrap(err, dErrors.CodeInternal, "sweep failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// statusFilter accepts ?status=a,b and repeated ?status= parameters.
func statusFilter(r *http.Request) []string {
	return pstrings.SplitList(r.URL.Query()["status"])
}

func nonNil(records []*models.CertificateRecord) []*models.CertificateRecord {
	if records == nil {
		return []*models.CertificateRecord{}
	}
	return records
}

func readImage(r *http.Request) ([]byte, error) {
	body := io.Reader(r.Body)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(scanner.MaxImageBytes); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart upload")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, dErrors.New(dErrors.CodeBadRequest, "image field is required")
			}
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart upload")
		}
		defer file.Close()
		body = file
	}
	img, err := io.ReadAll(io.LimitReader(body, scanner.MaxImageBytes+1))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "failed to read image")
	}
	return img, nil
}
