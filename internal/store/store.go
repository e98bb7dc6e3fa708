// Package store persists integration requests, indexed by internal id and by
// correlation id. The correlation index is part of the same store, not a
// separate structure with its own lock discipline.
package store

import (
	"context"
	"time"

	"github.com/crossgrid/orchestrator/internal/domain"
)

// RequestStore is the persistence port for integration requests. Requests are
// never deleted; terminal records stay readable for audit and correlation
// lookup. Implementations return deep copies so callers never alias stored
// state.
type RequestStore interface {
	// Create assigns the next sequence id and persists the request.
	Create(ctx context.Context, req *domain.IntegrationRequest) (*domain.IntegrationRequest, error)

	Get(ctx context.Context, id int64) (*domain.IntegrationRequest, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.IntegrationRequest, error)

	// Update overwrites the stored record and refreshes the correlation index.
	Update(ctx context.Context, req *domain.IntegrationRequest) error

	// ListByStatus returns up to limit requests of the given event type in any
	// of the given statuses, oldest first. An empty event type matches all.
	ListByStatus(ctx context.Context, eventType domain.EventType, statuses []domain.Status, limit int) ([]*domain.IntegrationRequest, error)

	// FindActiveByNaturalKey returns a non-terminal request carrying the
	// natural key, excluding excludeID, or nil when none exists.
	FindActiveByNaturalKey(ctx context.Context, naturalKey string, excludeID int64) (*domain.IntegrationRequest, error)

	// ExistsByNaturalKey reports whether any request (terminal or not) was
	// ever created for the natural key. Used by the ingest diff.
	ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error)

	// ListStuckDeploying returns requests whose in-flight marker is older
	// than the cutoff, for watchdog recovery.
	ListStuckDeploying(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.IntegrationRequest, error)
}
