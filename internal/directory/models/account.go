// Package models defines the account variants known to the directory.
package models

import (
	"strings"
	"time"

	id "certify/pkg/domain"
	dErrors "certify/pkg/domain-errors"
)

// Role tags an account variant in tokens and request context.
type Role string

const (
	RoleSubject Role = "subject"
	RoleIssuer  Role = "issuer"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSubject, RoleIssuer, RoleAdmin:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
}

// Account is implemented by every directory variant. Capability checks are
// answered by the variant itself rather than by branching on a role string.
type Account interface {
	AccountID() string
	Role() Role
	DisplayName() string
	ContactEmail() string
	// CanActForIssuer reports whether the account may issue or revoke
	// certificates on behalf of the issuer.
	CanActForIssuer(issuerID id.IssuerID) bool
}

// Subject is a certificate recipient.
type Subject struct {
	ID        id.SubjectID `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
}

func (s *Subject) AccountID() string                { return s.ID.String() }
func (s *Subject) Role() Role                       { return RoleSubject }
func (s *Subject) DisplayName() string              { return s.Name }
func (s *Subject) ContactEmail() string             { return s.Email }
func (s *Subject) CanActForIssuer(id.IssuerID) bool { return false }

// Issuer is an organization member allowed to issue once verified and
// approved by an admin.
type Issuer struct {
	ID              id.IssuerID `json:"id"`
	Name            string      `json:"name"`
	Title           string      `json:"title"`
	InstitutionName string      `json:"institution_name"`
	Email           string      `json:"email"`
	Verified        bool        `json:"verified"`
	AdminApproved   bool        `json:"admin_approved"`
	CreatedAt       time.Time   `json:"created_at"`
}

func (i *Issuer) AccountID() string    { return i.ID.String() }
func (i *Issuer) Role() Role           { return RoleIssuer }
func (i *Issuer) DisplayName() string  { return i.Name }
func (i *Issuer) ContactEmail() string { return i.Email }

func (i *Issuer) CanActForIssuer(issuerID id.IssuerID) bool {
	return i.ID == issuerID && i.CanIssue()
}

// CanIssue reports whether the issuer completed verification and approval.
func (i *Issuer) CanIssue() bool {
	return i.Verified && i.AdminApproved
}

// Admin operates the platform and may act for any issuer.
type Admin struct {
	ID        id.AdminID `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
}

func (a *Admin) AccountID() string                { return a.ID.String() }
func (a *Admin) Role() Role                       { return RoleAdmin }
func (a *Admin) DisplayName() string              { return a.Name }
func (a *Admin) ContactEmail() string             { return a.Email }
func (a *Admin) CanActForIssuer(id.IssuerID) bool { return true }

// NormalizeEmail is the canonical form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName is the canonical form for issuer-name lookups.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
