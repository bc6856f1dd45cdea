package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"certify/internal/directory/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

const pgUniqueViolation = "23505"

// PostgresStore persists directory accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateSubject(ctx context.Context, subject *models.Subject) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subjects (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(subject.ID), subject.Name, models.NormalizeEmail(subject.Email), subject.CreatedAt)
	if err != nil {
		return translateInsertError("insert subject", err)
	}
	return nil
}

func (s *PostgresStore) CreateIssuer(ctx context.Context, issuer *models.Issuer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issuers (id, name, title, institution_name, email, verified, admin_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(issuer.ID), issuer.Name, issuer.Title, issuer.InstitutionName,
		models.NormalizeEmail(issuer.Email), issuer.Verified, issuer.AdminApproved, issuer.CreatedAt)
	if err != nil {
		return translateInsertError("insert issuer", err)
	}
	return nil
}

func (s *PostgresStore) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(admin.ID), admin.Name, models.NormalizeEmail(admin.Email), admin.CreatedAt)
	if err != nil {
		return translateInsertError("insert admin", err)
	}
	return nil
}

func (s *PostgresStore) FindSubjectByEmail(ctx context.Context, email string) (*models.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM subjects WHERE email = $1
	`, models.NormalizeEmail(email))
	return scanSubject(row)
}

func (s *PostgresStore) FindSubjectByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM subjects WHERE id = $1
	`, uuid.UUID(subjectID))
	return scanSubject(row)
}

func (s *PostgresStore) FindIssuerByName(ctx context.Context, name string) (*models.Issuer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, institution_name, email, verified, admin_approved, created_at
		FROM issuers
		WHERE lower(regexp_replace(trim(name), '\s+', ' ', 'g')) = $1
	`, models.NormalizeName(name))
	return scanIssuer(row)
}

func (s *PostgresStore) FindIssuerByID(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, institution_name, email, verified, admin_approved, created_at
		FROM issuers WHERE id = $1
	`, uuid.UUID(issuerID))
	return scanIssuer(row)
}

func (s *PostgresStore) FindAdminByID(ctx context.Context, adminID id.AdminID) (*models.Admin, error) {
	var (
		admin models.Admin
		rawID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM admins WHERE id = $1
	`, uuid.UUID(adminID)).Scan(&rawID, &admin.Name, &admin.Email, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	admin.ID = id.AdminID(rawID)
	return &admin, nil
}

func scanSubject(row *sql.Row) (*models.Subject, error) {
	var (
		subject models.Subject
		rawID   uuid.UUID
	)
	if err := row.Scan(&rawID, &subject.Name, &subject.Email, &subject.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	subject.ID = id.SubjectID(rawID)
	return &subject, nil
}

func scanIssuer(row *sql.Row) (*models.Issuer, error) {
	var (
		issuer models.Issuer
		rawID  uuid.UUID
	)
	err := row.Scan(&rawID, &issuer.Name, &issuer.Title, &issuer.InstitutionName,
		&issuer.Email, &issuer.Verified, &issuer.AdminApproved, &issuer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issuer: %w", err)
	}
	issuer.ID = id.IssuerID(rawID)
	return &issuer, nil
}

func translateInsertError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
