// Package domain holds typed identifiers shared across modules. Each type is a
// distinct uuid.UUID so a SubjectID can never be passed where an IssuerID is
// expected.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "certify/pkg/domain-errors"
)

type (
	SubjectID uuid.UUID
	IssuerID  uuid.UUID
	AdminID   uuid.UUID
	RequestID uuid.UUID
)

// maxIDLength bounds input before handing it to uuid.Parse. The longest
// accepted form is the braced/urn variant (45 chars).
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" || strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID("subject ID", s)
	return SubjectID(u), err
}

func ParseIssuerID(s string) (IssuerID, error) {
	u, err := parseUUID("issuer ID", s)
	return IssuerID(u), err
}

func ParseAdminID(s string) (AdminID, error) {
	u, err := parseUUID("admin ID", s)
	return AdminID(u), err
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID("request ID", s)
	return RequestID(u), err
}

func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id IssuerID) String() string  { return uuid.UUID(id).String() }
func (id AdminID) String() string   { return uuid.UUID(id).String() }
func (id RequestID) String() string { return uuid.UUID(id).String() }

func (id SubjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id IssuerID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AdminID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
