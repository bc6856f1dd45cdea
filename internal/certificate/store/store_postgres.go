package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"certify/internal/certificate/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
	txcontext "certify/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

const certificateColumns = `identifier, subject_id, issuer_id, subject_name, course_name, issuer_name,
	institution_name, title, description, completion_date, issued_at, fingerprint,
	ledger_tx_ref, anchored, status, revoked_at`

// PostgresStore persists certificate records in PostgreSQL. Calls join the
// transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, r *models.CertificateRecord) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, r.Identifier, uuid.UUID(r.SubjectID), uuid.UUID(r.IssuerID), r.SubjectName, r.CourseName,
		r.IssuerName, r.InstitutionName, r.Title, r.Description, nullTime(r.CompletionDate),
		r.IssuedAt, r.Fingerprint, r.LedgerTxRef, r.Anchored, string(r.Status), nullTime(r.RevokedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIdentifier(ctx context.Context, identifier string) (*models.CertificateRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates WHERE identifier = $1
	`, identifier)
	record, err := scanCertificate(row)
	if err != nil {
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return record, nil
}

// ListByIssuer returns the issuer's certificates newest first. An empty
// statuses slice means every status.
func (s *PostgresStore) ListByIssuer(ctx context.Context, issuerID id.IssuerID, statuses []models.Status) ([]*models.CertificateRecord, error) {
	filter := make([]string, 0, len(statuses))
	for _, st := range statuses {
		filter = append(filter, string(st))
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates
		WHERE issuer_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY issued_at DESC, identifier
	`, uuid.UUID(issuerID), pq.Array(filter))
	if err != nil {
		return nil, fmt.Errorf("list certificates by issuer: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.CertificateRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates
		WHERE subject_id = $1
		ORDER BY issued_at DESC, identifier
	`, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list certificates by subject: %w", err)
	}
	return collect(rows)
}

// ListAll pages through every record in identifier order, starting after
// the given identifier.
func (s *PostgresStore) ListAll(ctx context.Context, limit int, after string) ([]*models.CertificateRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates
		WHERE identifier > $1
		ORDER BY identifier
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return collect(rows)
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate,
// then writes the mutable columns back. Identifier, fingerprint, ledger
// reference and issue time are never rewritten.
func (s *PostgresStore) Execute(ctx context.Context, identifier string, validate func(*models.CertificateRecord) error, mutate func(*models.CertificateRecord)) (*models.CertificateRecord, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.execute(ctx, identifier, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin certificate update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := s.execute(txcontext.WithTx(ctx, tx), identifier, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit certificate update: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) execute(ctx context.Context, identifier string, validate func(*models.CertificateRecord) error, mutate func(*models.CertificateRecord)) (*models.CertificateRecord, error) {
	exec := s.execer(ctx)
	record, err := scanCertificate(exec.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates WHERE identifier = $1 FOR UPDATE
	`, identifier))
	if err != nil {
		return nil, fmt.Errorf("lock certificate: %w", err)
	}
	if err := validate(record); err != nil {
		return nil, err
	}
	mutate(record)

	_, err = exec.ExecContext(ctx, `
		UPDATE certificates
		SET subject_name = $2, course_name = $3, issuer_name = $4, institution_name = $5,
			title = $6, description = $7, completion_date = $8, status = $9, revoked_at = $10
		WHERE identifier = $1
	`, record.Identifier, record.SubjectName, record.CourseName, record.IssuerName,
		record.InstitutionName, record.Title, record.Description, nullTime(record.CompletionDate),
		string(record.Status), nullTime(record.RevokedAt))
	if err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCertificate maps sql.ErrNoRows to sentinel.ErrNotFound.
func scanCertificate(row rowScanner) (*models.CertificateRecord, error) {
	var (
		r              models.CertificateRecord
		subjectID      uuid.UUID
		issuerID       uuid.UUID
		status         string
		completionDate sql.NullTime
		revokedAt      sql.NullTime
	)
	err := row.Scan(&r.Identifier, &subjectID, &issuerID, &r.SubjectName, &r.CourseName,
		&r.IssuerName, &r.InstitutionName, &r.Title, &r.Description, &completionDate,
		&r.IssuedAt, &r.Fingerprint, &r.LedgerTxRef, &r.Anchored, &status, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	r.SubjectID = id.SubjectID(subjectID)
	r.IssuerID = id.IssuerID(issuerID)
	r.Status = models.Status(status)
	if completionDate.Valid {
		t := completionDate.Time
		r.CompletionDate = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		r.RevokedAt = &t
	}
	return &r, nil
}

func collect(rows *sql.Rows) ([]*models.CertificateRecord, error) {
	defer rows.Close()
	var out []*models.CertificateRecord
	for rows.Next() {
		record, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
