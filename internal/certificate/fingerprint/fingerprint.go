// Package fingerprint derives the content hash that binds a certificate's
// identity-critical fields. The same value is anchored in the ledger and
// stored on the registry record.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// delimiter separates fields in the hashed preimage.
const delimiter = "|"

// ErrEmptyIdentifier is returned when the identifier is blank after trimming.
var ErrEmptyIdentifier = errors.New("fingerprint: identifier is required")

// Fields are the inputs to the fingerprint, in hashing order.
type Fields struct {
	Identifier   string
	SubjectEmail string
	CourseName   string
	IssuerName   string
}

// Compute returns the lowercase hex SHA-256 of the normalized fields.
// Every field is trimmed; all but the identifier are lowercased.
func Compute(identifier, subjectEmail, courseName, issuerName string) (string, error) {
	return Fields{
		Identifier:   identifier,
		SubjectEmail: subjectEmail,
		CourseName:   courseName,
		IssuerName:   issuerName,
	}.Compute()
}

// Compute is the method form of the package-level Compute.
func (f Fields) Compute() (string, error) {
	id := strings.TrimSpace(f.Identifier)
	if id == "" {
		return "", ErrEmptyIdentifier
	}
	preimage := strings.Join([]string{
		id,
		normalize(f.SubjectEmail),
		normalize(f.CourseName),
		normalize(f.IssuerName),
	}, delimiter)

	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:]), nil
}

// Equal compares two fingerprints byte for byte.
func Equal(a, b string) bool {
	return a == b
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
