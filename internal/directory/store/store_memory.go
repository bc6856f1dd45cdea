package store

import (
	"context"
	"sync"

	"certify/internal/directory/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

// InMemory is a directory for development and tests. Email and issuer-name
// lookups are case-insensitive.
type InMemory struct {
	mu sync.RWMutex

	subjects       map[id.SubjectID]*models.Subject
	subjectByEmail map[string]id.SubjectID
	issuers        map[id.IssuerID]*models.Issuer
	issuerByName   map[string]id.IssuerID
	issuerByEmail  map[string]id.IssuerID
	admins         map[id.AdminID]*models.Admin
}

func NewInMemory() *InMemory {
	return &InMemory{
		subjects:       make(map[id.SubjectID]*models.Subject),
		subjectByEmail: make(map[string]id.SubjectID),
		issuers:        make(map[id.IssuerID]*models.Issuer),
		issuerByName:   make(map[string]id.IssuerID),
		issuerByEmail:  make(map[string]id.IssuerID),
		admins:         make(map[id.AdminID]*models.Admin),
	}
}

func (s *InMemory) CreateSubject(_ context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(subject.Email)
	if _, taken := s.subjectByEmail[key]; taken {
		return sentinel.ErrConflict
	}
	cp := *subject
	s.subjects[subject.ID] = &cp
	s.subjectByEmail[key] = subject.ID
	return nil
}

func (s *InMemory) CreateIssuer(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nameKey := models.NormalizeName(issuer.Name)
	emailKey := models.NormalizeEmail(issuer.Email)
	if _, taken := s.issuerByName[nameKey]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.issuerByEmail[emailKey]; taken {
		return sentinel.ErrConflict
	}
	cp := *issuer
	s.issuers[issuer.ID] = &cp
	s.issuerByName[nameKey] = issuer.ID
	s.issuerByEmail[emailKey] = issuer.ID
	return nil
}

func (s *InMemory) CreateAdmin(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *admin
	s.admins[admin.ID] = &cp
	return nil
}

func (s *InMemory) FindSubjectByEmail(_ context.Context, email string) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjectID, ok := s.subjectByEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.subjects[subjectID]
	return &cp, nil
}

func (s *InMemory) FindSubjectByID(_ context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *subject
	return &cp, nil
}

func (s *InMemory) FindIssuerByName(_ context.Context, name string) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issuerID, ok := s.issuerByName[models.NormalizeName(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.issuers[issuerID]
	return &cp, nil
}

func (s *InMemory) FindIssuerByID(_ context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issuer, ok := s.issuers[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *issuer
	return &cp, nil
}

func (s *InMemory) FindAdminByID(_ context.Context, adminID id.AdminID) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[adminID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *admin
	return &cp, nil
}
