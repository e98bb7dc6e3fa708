package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crossgrid/orchestrator/internal/domain"
)

// MemoryStore is a map-backed RequestStore. It backs tests and runs of the
// demo stack without postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	seq           int64
	requests      map[int64]*domain.IntegrationRequest
	byCorrelation map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:      make(map[int64]*domain.IntegrationRequest),
		byCorrelation: make(map[string]int64),
	}
}

func (s *MemoryStore) Create(_ context.Context, req *domain.IntegrationRequest) (*domain.IntegrationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	cp := req.Clone()
	cp.ID = s.seq
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	s.requests[cp.ID] = cp
	if cp.CorrelationID != "" {
		s.byCorrelation[cp.CorrelationID] = cp.ID
	}
	return cp.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*domain.IntegrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, domain.NewNotFoundError(id)
	}
	return req.Clone(), nil
}

func (s *MemoryStore) GetByCorrelationID(_ context.Context, correlationID string) (*domain.IntegrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCorrelation[correlationID]
	if !ok {
		return nil, domain.NewCorrelationNotFoundError(correlationID)
	}
	return s.requests[id].Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, req *domain.IntegrationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return domain.NewNotFoundError(req.ID)
	}
	cp := req.Clone()
	cp.UpdatedAt = time.Now().UTC()
	s.requests[cp.ID] = cp
	if cp.CorrelationID != "" {
		s.byCorrelation[cp.CorrelationID] = cp.ID
	}
	return nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, eventType domain.EventType, statuses []domain.Status, limit int) ([]*domain.IntegrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[domain.Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var out []*domain.IntegrationRequest
	for _, req := range s.requests {
		if eventType != "" && req.EventType != eventType {
			continue
		}
		if !wanted[req.Status] {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) FindActiveByNaturalKey(_ context.Context, naturalKey string, excludeID int64) (*domain.IntegrationRequest, error) {
	if naturalKey == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *domain.IntegrationRequest
	for _, req := range s.requests {
		if req.ID == excludeID || req.IsTerminal() {
			continue
		}
		if req.NaturalKey() != naturalKey {
			continue
		}
		if match == nil || req.ID < match.ID {
			match = req
		}
	}
	if match == nil {
		return nil, nil
	}
	return match.Clone(), nil
}

func (s *MemoryStore) ExistsByNaturalKey(_ context.Context, naturalKey string) (bool, error) {
	if naturalKey == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.requests {
		if req.NaturalKey() == naturalKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListStuckDeploying(_ context.Context, olderThan time.Duration, limit int) ([]*domain.IntegrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*domain.IntegrationRequest
	for _, req := range s.requests {
		if req.Status != domain.StatusDeploying || req.DeployStartedAt == nil {
			continue
		}
		if req.DeployStartedAt.After(cutoff) {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
