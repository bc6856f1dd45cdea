package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "certify/pkg/platform/audit"
	txcontext "certify/pkg/platform/tx"
)

// Store implements audit.Store with the transactional outbox pattern. Events
// are inserted in the caller's transaction and relayed to Kafka later by the
// outbox worker.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

// outboxPayload is the JSON published to Kafka.
type outboxPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	ActorID   string `json:"actor_id,omitempty"`
	IssuerID  string `json:"issuer_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Severity  string `json:"severity,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	// category always follows the action
	category := audit.AuditEvent(event.Action).Category()

	payload, err := json.Marshal(outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		ActorID:   event.ActorID,
		IssuerID:  event.IssuerID,
		Reason:    event.Reason,
		Severity:  string(event.Severity),
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, eventID, "certificate", event.Subject, event.Action, payload, time.Now())
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished entries, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given entries as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[])
	`, pq.Array(uuidStrings(ids)), at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
