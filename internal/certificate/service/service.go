// Package service coordinates certificate issuance, verification and
// revocation across the registry, the directory and the ledger.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"certify/internal/certificate/metrics"
	"certify/internal/certificate/models"
	dirmodels "certify/internal/directory/models"
	"certify/internal/ledger"
	"certify/pkg/attrs"
	id "certify/pkg/domain"
	audit "certify/pkg/platform/audit"
	"certify/pkg/requestcontext"
)

// Store is the certificate registry.
type Store interface {
	Create(ctx context.Context, record *models.CertificateRecord) error
	FindByIdentifier(ctx context.Context, identifier string) (*models.CertificateRecord, error)
	ListByIssuer(ctx context.Context, issuerID id.IssuerID, statuses []models.Status) ([]*models.CertificateRecord, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.CertificateRecord, error)
	ListAll(ctx context.Context, limit int, after string) ([]*models.CertificateRecord, error)
	Execute(ctx context.Context, identifier string, validate func(*models.CertificateRecord) error, mutate func(*models.CertificateRecord)) (*models.CertificateRecord, error)
}

// RequestStore holds subjects' pending certificate requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *models.CertificateRequest) error
	ListPendingByIssuer(ctx context.Context, issuerID id.IssuerID) ([]*models.CertificateRequest, error)
	FindRequest(ctx context.Context, requestID id.RequestID) (*models.CertificateRequest, error)
	DeleteRequest(ctx context.Context, requestID id.RequestID) error
	DeleteBySubjectAndIssuer(ctx context.Context, subjectID id.SubjectID, issuerID id.IssuerID) (int, error)
}

// Directory resolves subjects and issuers.
type Directory interface {
	FindSubjectByEmail(ctx context.Context, email string) (*dirmodels.Subject, error)
	FindSubjectByID(ctx context.Context, subjectID id.SubjectID) (*dirmodels.Subject, error)
	FindIssuerByName(ctx context.Context, name string) (*dirmodels.Issuer, error)
}

// Ledger is the append-only anchor.
type Ledger interface {
	RecordEntry(ctx context.Context, entry ledger.Entry) (ledger.Confirmation, error)
	ReadEntry(ctx context.Context, identifier string) (ledger.Entry, error)
}

type ComplianceAuditor interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

type Notifier interface {
	Send(ctx context.Context, recipient, code string) error
}

// Scanner extracts the payload text from a QR image.
type Scanner interface {
	Extract(ctx context.Context, img []byte) (string, error)
}

const (
	defaultLedgerWriteTimeout = 60 * time.Second
	defaultLedgerReadTimeout  = 10 * time.Second
	defaultSweepConcurrency   = 8
	defaultSweepPageSize      = 200
)

// Service implements the certificate operations. Construct with New.
type Service struct {
	store     Store
	requests  RequestStore
	directory Directory
	ledger    Ledger

	tx         TxRunner
	compliance ComplianceAuditor
	security   SecurityAuditor
	notifier   Notifier
	scanner    Scanner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	newID      func() string

	ledgerWriteTimeout time.Duration
	ledgerReadTimeout  time.Duration
	sweepConcurrency   int
	sweepPageSize      int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithComplianceAuditor(a ComplianceAuditor) Option {
	return func(s *Service) {
		s.compliance = a
	}
}

func WithSecurityAuditor(a SecurityAuditor) Option {
	return func(s *Service) {
		s.security = a
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithScanner(sc Scanner) Option {
	return func(s *Service) {
		s.scanner = sc
	}
}

// WithLedgerTimeouts bounds how long issuance waits for a ledger
// confirmation and how long verification waits for a ledger read.
func WithLedgerTimeouts(write, read time.Duration) Option {
	return func(s *Service) {
		if write > 0 {
			s.ledgerWriteTimeout = write
		}
		if read > 0 {
			s.ledgerReadTimeout = read
		}
	}
}

// WithSweep sets the integrity sweep page size and parallelism.
func WithSweep(pageSize, concurrency int) Option {
	return func(s *Service) {
		if pageSize > 0 {
			s.sweepPageSize = pageSize
		}
		if concurrency > 0 {
			s.sweepConcurrency = concurrency
		}
	}
}

// WithIDGenerator replaces the certificate identifier generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(store Store, requests RequestStore, directory Directory, l Ledger, opts ...Option) *Service {
	s := &Service{
		store:              store,
		requests:           requests,
		directory:          directory,
		ledger:             l,
		tx:                 NewInlineTx(0),
		logger:             slog.Default(),
		tracer:             otel.Tracer("certify/certificate"),
		newID:              uuid.NewString,
		ledgerWriteTimeout: defaultLedgerWriteTimeout,
		ledgerReadTimeout:  defaultLedgerReadTimeout,
		sweepConcurrency:   defaultSweepConcurrency,
		sweepPageSize:      defaultSweepPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// logAudit writes an audit-typed log line and marks the current span.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)

	trace.SpanFromContext(ctx).AddEvent(string(event), trace.WithAttributes(
		attribute.String("identifier", attrs.String(attributes, "identifier")),
	))
}

func (s *Service) emitSecurity(ctx context.Context, event audit.SecurityEvent) {
	if s.security == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	s.security.Emit(ctx, event)
}

func (s *Service) emitCompliance(ctx context.Context, event audit.ComplianceEvent) error {
	if s.compliance == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.UserAgent = requestcontext.UserAgent(ctx)
	return s.compliance.Emit(ctx, event)
}
