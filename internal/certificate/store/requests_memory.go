package store

import (
	"context"
	"sort"
	"sync"

	"certify/internal/certificate/models"
	id "certify/pkg/domain"
	"certify/pkg/platform/sentinel"
)

// InMemoryRequests keeps pending certificate requests.
type InMemoryRequests struct {
	mu       sync.RWMutex
	requests map[id.RequestID]models.CertificateRequest
}

func NewInMemoryRequests() *InMemoryRequests {
	return &InMemoryRequests{requests: make(map[id.RequestID]models.CertificateRequest)}
}

func (s *InMemoryRequests) CreateRequest(_ context.Context, req *models.CertificateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.requests {
		if existing.SubjectID == req.SubjectID && existing.IssuerID == req.IssuerID && existing.IsPending() {
			return sentinel.ErrConflict
		}
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *InMemoryRequests) ListPendingByIssuer(_ context.Context, issuerID id.IssuerID) ([]*models.CertificateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CertificateRequest
	for _, req := range s.requests {
		if req.IssuerID == issuerID && req.IsPending() {
			r := req
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryRequests) FindRequest(_ context.Context, requestID id.RequestID) (*models.CertificateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &req, nil
}

func (s *InMemoryRequests) DeleteRequest(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.requests, requestID)
	return nil
}

// DeleteBySubjectAndIssuer removes pending requests for the pair and reports
// how many were removed.
func (s *InMemoryRequests) DeleteBySubjectAndIssuer(_ context.Context, subjectID id.SubjectID, issuerID id.IssuerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for reqID, req := range s.requests {
		if req.SubjectID == subjectID && req.IssuerID == issuerID && req.IsPending() {
			delete(s.requests, reqID)
			n++
		}
	}
	return n, nil
}
