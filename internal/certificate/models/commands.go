package models

import (
	"strings"
	"time"
)

// IssueCommand is the input to certificate issuance.
type IssueCommand struct {
	SubjectEmail    string
	CourseName      string
	CompletionDate  *time.Time
	IssuerName      string
	InstitutionName string
	Title           string
	Description     string
}

// Normalize trims every free-text field and lowercases the email.
func (c *IssueCommand) Normalize() {
	c.SubjectEmail = strings.ToLower(strings.TrimSpace(c.SubjectEmail))
	c.CourseName = strings.TrimSpace(c.CourseName)
	c.IssuerName = strings.TrimSpace(c.IssuerName)
	c.InstitutionName = strings.TrimSpace(c.InstitutionName)
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
}

// IssueResult is returned by a successful issuance.
type IssueResult struct {
	Certificate *CertificateRecord `json:"certificate"`
	Payload     ScannablePayload   `json:"payload"`
	Encoded     string             `json:"encoded_payload"`
}

// SweepReport summarizes one registry-vs-ledger integrity sweep.
type SweepReport struct {
	Checked    int      `json:"checked"`
	Intact     int      `json:"intact"`
	Tampered   []string `json:"tampered"`
	Unanchored []string `json:"unanchored"`
	Failed     int      `json:"failed"`
}
