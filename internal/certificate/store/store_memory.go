package store

import (
	"context"
	"sort"
	"sync"

	"certify/internal/certificate/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

// InMemory is a registry store for development and tests. Execute holds the
// store mutex across validate and mutate.
type InMemory struct {
	mu    sync.RWMutex
	certs map[string]*models.CertificateRecord
}

func NewInMemory() *InMemory {
	return &InMemory{certs: make(map[string]*models.CertificateRecord)}
}

func (s *InMemory) Create(_ context.Context, record *models.CertificateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[record.Identifier]; exists {
		return sentinel.ErrConflict
	}
	s.certs[record.Identifier] = cloneRecord(record)
	return nil
}

func (s *InMemory) FindByIdentifier(_ context.Context, identifier string) (*models.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.certs[identifier]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(record), nil
}

func (s *InMemory) ListByIssuer(_ context.Context, issuerID id.IssuerID, statuses []models.Status) ([]*models.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CertificateRecord
	for _, record := range s.certs {
		if record.IssuerID != issuerID || !statusIn(record.Status, statuses) {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CertificateRecord
	for _, record := range s.certs {
		if record.SubjectID == subjectID {
			out = append(out, cloneRecord(record))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListAll(_ context.Context, limit int, after string) ([]*models.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.certs))
	for k := range s.certs {
		if k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]*models.CertificateRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneRecord(s.certs[k]))
	}
	return out, nil
}

// Execute validates and mutates one record atomically. A validate error
// leaves the record untouched and is returned as is.
func (s *InMemory) Execute(_ context.Context, identifier string, validate func(*models.CertificateRecord) error, mutate func(*models.CertificateRecord)) (*models.CertificateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.certs[identifier]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneRecord(record)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.certs[identifier] = working
	return cloneRecord(working), nil
}

func cloneRecord(r *models.CertificateRecord) *models.CertificateRecord {
	c := *r
	if r.CompletionDate != nil {
		t := *r.CompletionDate
		c.CompletionDate = &t
	}
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

func statusIn(s models.Status, statuses []models.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func sortNewestFirst(records []*models.CertificateRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].IssuedAt.Equal(records[j].IssuedAt) {
			return records[i].Identifier < records[j].Identifier
		}
		return records[i].IssuedAt.After(records[j].IssuedAt)
	})
}
