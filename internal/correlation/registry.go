// Package correlation manages the identifier that follows one logical
// request across every system it touches. The registry is an index into the
// request store, not a separate mutable structure.
package correlation

import (
	"context"

	"github.com/google/uuid"

	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/store"
)

type Registry struct {
	store store.RequestStore
}

func NewRegistry(s store.RequestStore) *Registry {
	return &Registry{store: s}
}

// Ensure assigns a correlation id exactly once. Callers hold the per-id lock,
// so re-entry cannot race; a request that already has one is left alone.
func (r *Registry) Ensure(req *domain.IntegrationRequest) string {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	}
	return req.CorrelationID
}

// Lookup resolves a correlation id back to its request, as used by the
// tracking UI to find a request from a downstream ticket number.
func (r *Registry) Lookup(ctx context.Context, correlationID string) (*domain.IntegrationRequest, error) {
	return r.store.GetByCorrelationID(ctx, correlationID)
}

// RecordTicket maps a downstream identifier onto the request. Values are
// write-once per target; a repeated dispatch attempt after a retryable
// failure simply overwrites with the same id (idempotency key unchanged).
func (r *Registry) RecordTicket(req *domain.IntegrationRequest, target, ticketID string) {
	if req.TargetTicketIDs == nil {
		req.TargetTicketIDs = make(map[string]string, 2)
	}
	req.TargetTicketIDs[target] = ticketID
}
