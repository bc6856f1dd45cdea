package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose so they can
// be routed and retained differently.
type EventCategory string

const (
	// CategoryCompliance covers changes to the certificate registry that must
	// never be lost. Emission is fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers integrity findings for alerting. Emission is
	// buffered and best effort.
	CategorySecurity EventCategory = "security"
)

type AuditEvent string

const (
	EventCertificateIssued  AuditEvent = "certificate_issued"
	EventCertificateRevoked AuditEvent = "certificate_revoked"
	EventRequestCreated     AuditEvent = "certificate_request_created"
	EventRequestRejected    AuditEvent = "certificate_request_rejected"

	EventIntegrityViolation  AuditEvent = "integrity_violation"
	EventLedgerAnchorMissing AuditEvent = "ledger_anchor_missing"
	EventOrphanedLedgerEntry AuditEvent = "orphaned_ledger_entry"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCertificateIssued:  CategoryCompliance,
	EventCertificateRevoked: CategoryCompliance,
	EventRequestCreated:     CategoryCompliance,
	EventRequestRejected:    CategoryCompliance,

	EventIntegrityViolation:  CategorySecurity,
	EventLedgerAnchorMissing: CategorySecurity,
	EventOrphanedLedgerEntry: CategorySecurity,
}

// Category returns the category for the event. Unknown events are treated
// as security events so they are at least alerted on.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategorySecurity
}

// Event is the stored form of every audit record.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject is the certificate identifier or request ID the event is about.
	Subject   string
	Action    string
	ActorID   string
	IssuerID  string
	Reason    string
	Severity  Severity
	RequestID string
	ClientIP  string
	UserAgent string
}

// Store persists audit events. The Postgres implementation writes to the
// outbox inside the caller's transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// ComplianceEvent records a registry change. ActorID and Action are required.
type ComplianceEvent struct {
	Timestamp time.Time
	Subject   string
	Action    AuditEvent
	ActorID   string
	IssuerID  string
	RequestID string
	ClientIP  string
	UserAgent string
}

func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    string(e.Action),
		ActorID:   e.ActorID,
		IssuerID:  e.IssuerID,
		RequestID: e.RequestID,
		ClientIP:  e.ClientIP,
		UserAgent: e.UserAgent,
	}
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SecurityEvent records an integrity finding.
type SecurityEvent struct {
	Timestamp time.Time
	Subject   string
	Action    AuditEvent
	Reason    string
	IssuerID  string
	RequestID string
	Severity  Severity
}

func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Reason:    e.Reason,
		IssuerID:  e.IssuerID,
		Severity:  e.Severity,
		RequestID: e.RequestID,
	}
}

// OutboxEntry is one unpublished event awaiting relay to the broker.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}
