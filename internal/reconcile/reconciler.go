// Package reconcile folds downstream ticket status back into the request
// state machine. It is safe under repeated polling: an unchanged downstream
// status produces no state change and no history entry.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
)

// StatusSource queries a target's status endpoint for a dispatched ticket.
// *dispatch.Dispatcher satisfies it.
type StatusSource interface {
	TicketStatus(ctx context.Context, target, ticketID string, targets dispatch.Targets) (string, error)
}

// NormalizeStatus maps target-specific vocabulary onto the request state
// machine. The second return is false for vocabulary we do not recognize.
func NormalizeStatus(raw string) (domain.Status, bool) {
	switch raw {
	case "pending", "in_progress", "awaiting_approval", "open":
		return domain.StatusAwaitingApproval, true
	case "approved", "complete", "completed", "closed_complete":
		return domain.StatusApproved, true
	case "rejected", "denied", "cancelled", "closed_incomplete":
		return domain.StatusRejected, true
	default:
		return "", false
	}
}

type Reconciler struct {
	statuses StatusSource
	logger   *slog.Logger
}

func NewReconciler(statuses StatusSource, logger *slog.Logger) *Reconciler {
	return &Reconciler{statuses: statuses, logger: logger}
}

// pollableTargets lists the targets that expose a ticket-status endpoint.
// SAP does not; its approvals can only arrive via status push.
var pollableTargets = []string{domain.TargetServiceNow}

// Check queries the downstream system holding the request's approval ticket
// and returns the normalized status plus the raw vocabulary word. Transient
// query failures come back as *domain.ReconciliationError and leave the
// request untouched.
func (r *Reconciler) Check(ctx context.Context, req *domain.IntegrationRequest, targets dispatch.Targets) (domain.Status, string, error) {
	var target, ticketID string
	for _, t := range pollableTargets {
		if id := req.TargetTicketIDs[t]; id != "" {
			target, ticketID = t, id
			break
		}
	}
	if ticketID == "" {
		return "", "", &domain.ReconciliationError{
			Target: domain.TargetServiceNow,
			Err:    fmt.Errorf("request %d holds no ticket on a pollable target", req.ID),
		}
	}

	raw, err := r.statuses.TicketStatus(ctx, target, ticketID, targets)
	if err != nil {
		return "", "", &domain.ReconciliationError{Target: target, Err: err}
	}

	normalized, ok := NormalizeStatus(raw)
	if !ok {
		r.logger.Warn("unrecognized downstream status",
			"request_id", req.ID,
			"ticket_id", ticketID,
			"status", raw,
		)
		// Treat unknown vocabulary as still-pending rather than failing the poll.
		return domain.StatusAwaitingApproval, raw, nil
	}
	return normalized, raw, nil
}
