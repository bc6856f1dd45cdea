package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"certify/internal/certificate/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

// PostgresRequests persists certificate requests. At most one pending
// request exists per subject and issuer.
type PostgresRequests struct {
	store *PostgresStore
}

func NewPostgresRequests(db *sql.DB) *PostgresRequests {
	return &PostgresRequests{store: NewPostgres(db)}
}

func (s *PostgresRequests) CreateRequest(ctx context.Context, req *models.CertificateRequest) error {
	_, err := s.store.execer(ctx).ExecContext(ctx, `
		INSERT INTO certificate_requests (id, subject_id, issuer_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(req.ID), uuid.UUID(req.SubjectID), uuid.UUID(req.IssuerID), req.Message, string(req.Status), req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate request: %w", err)
	}
	return nil
}

func (s *PostgresRequests) ListPendingByIssuer(ctx context.Context, issuerID id.IssuerID) ([]*models.CertificateRequest, error) {
	rows, err := s.store.execer(ctx).QueryContext(ctx, `
		SELECT id, subject_id, issuer_id, message, status, created_at
		FROM certificate_requests
		WHERE issuer_id = $1 AND status = $2
		ORDER BY created_at
	`, uuid.UUID(issuerID), string(models.RequestStatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []*models.CertificateRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificate requests: %w", err)
	}
	return out, nil
}

func (s *PostgresRequests) FindRequest(ctx context.Context, requestID id.RequestID) (*models.CertificateRequest, error) {
	req, err := scanRequest(s.store.execer(ctx).QueryRowContext(ctx, `
		SELECT id, subject_id, issuer_id, message, status, created_at
		FROM certificate_requests WHERE id = $1
	`, uuid.UUID(requestID)))
	if err != nil {
		return nil, fmt.Errorf("find certificate request: %w", err)
	}
	return req, nil
}

func (s *PostgresRequests) DeleteRequest(ctx context.Context, requestID id.RequestID) error {
	res, err := s.store.execer(ctx).ExecContext(ctx, `DELETE FROM certificate_requests WHERE id = $1`, uuid.UUID(requestID))
	if err != nil {
		return fmt.Errorf("delete certificate request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete certificate request: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRequests) DeleteBySubjectAndIssuer(ctx context.Context, subjectID id.SubjectID, issuerID id.IssuerID) (int, error) {
	res, err := s.store.execer(ctx).ExecContext(ctx, `
		DELETE FROM certificate_requests
		WHERE subject_id = $1 AND issuer_id = $2 AND status = $3
	`, uuid.UUID(subjectID), uuid.UUID(issuerID), string(models.RequestStatusPending))
	if err != nil {
		return 0, fmt.Errorf("delete requests for subject and issuer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete requests for subject and issuer: %w", err)
	}
	return int(n), nil
}

func scanRequest(row rowScanner) (*models.CertificateRequest, error) {
	var (
		req       models.CertificateRequest
		reqID     uuid.UUID
		subjectID uuid.UUID
		issuerID  uuid.UUID
		status    string
	)
	if err := row.Scan(&reqID, &subjectID, &issuerID, &req.Message, &status, &req.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	req.ID = id.RequestID(reqID)
	req.SubjectID = id.SubjectID(subjectID)
	req.IssuerID = id.IssuerID(issuerID)
	req.Status = models.RequestStatus(status)
	return &req, nil
}
