// Package directory resolves the accounts that take part in certificate
// issuance: subjects, issuers and admins.
package directory

import (
	"context"
	"errors"

	"certify/internal/directory/models"
	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
	"certify/pkg/platform/sentinel"
)

// Store is the directory persistence contract.
type Store interface {
	FindSubjectByEmail(ctx context.Context, email string) (*models.Subject, error)
	FindSubjectByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
	FindIssuerByName(ctx context.Context, name string) (*models.Issuer, error)
	FindIssuerByID(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	FindAdminByID(ctx context.Context, adminID id.AdminID) (*models.Admin, error)
}

type accountLoader func(ctx context.Context, s Store, accountID string) (models.Account, error)

var loaders = map[models.Role]accountLoader{
	models.RoleSubject: func(ctx context.Context, s Store, accountID string) (models.Account, error) {
		subjectID, err := id.ParseSubjectID(accountID)
		if err != nil {
			return nil, err
		}
		return s.FindSubjectByID(ctx, subjectID)
	},
	models.RoleIssuer: func(ctx context.Context, s Store, accountID string) (models.Account, error) {
		issuerID, err := id.ParseIssuerID(accountID)
		if err != nil {
			return nil, err
		}
		return s.FindIssuerByID(ctx, issuerID)
	},
	models.RoleAdmin: func(ctx context.Context, s Store, accountID string) (models.Account, error) {
		adminID, err := id.ParseAdminID(accountID)
		if err != nil {
			return nil, err
		}
		return s.FindAdminByID(ctx, adminID)
	},
}

// Resolver turns an authenticated principal into its Account variant.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveAccount loads the account for role and accountID. Unknown accounts
// are reported as unauthorized since the token no longer maps to anyone.
func (r *Resolver) ResolveAccount(ctx context.Context, role, accountID string) (models.Account, error) {
	parsedRole, err := models.ParseRole(role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown account role")
	}
	account, err := loaders[parsedRole](ctx, r.store, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve account")
	}
	return account, nil
}
