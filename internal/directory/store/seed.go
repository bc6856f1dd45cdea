package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"certify/internal/directory/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

// Seeder is satisfied by both directory stores.
type Seeder interface {
	CreateSubject(ctx context.Context, subject *models.Subject) error
	CreateIssuer(ctx context.Context, issuer *models.Issuer) error
	CreateAdmin(ctx context.Context, admin *models.Admin) error
}

// SeedDemoAccounts creates one approved issuer, one subject and one admin for
// local development. IDs are derived from fixed names so reseeding an
// existing database returns the same accounts.
func SeedDemoAccounts(ctx context.Context, s Seeder) (*models.Subject, *models.Issuer, *models.Admin, error) {
	now := time.Now()
	subject := &models.Subject{ID: id.SubjectID(demoID("subject")), Name: "Alice Example", Email: "alice@example.com", CreatedAt: now}
	issuer := &models.Issuer{
		ID:              id.IssuerID(demoID("issuer")),
		Name:            "Acme Univ",
		Title:           "Registrar",
		InstitutionName: "Acme University",
		Email:           "registrar@acme.example",
		Verified:        true,
		AdminApproved:   true,
		CreatedAt:       now,
	}
	admin := &models.Admin{ID: id.AdminID(demoID("admin")), Name: "Platform Admin", Email: "admin@certify.example", CreatedAt: now}

	for _, create := range []func() error{
		func() error { return s.CreateSubject(ctx, subject) },
		func() error { return s.CreateIssuer(ctx, issuer) },
		func() error { return s.CreateAdmin(ctx, admin) },
	} {
		if err := create(); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, nil, err
		}
	}
	return subject, issuer, admin, nil
}

func demoID(kind string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("certify:demo:"+kind))
}
