// Package orchestrator composes the validation gate, transform engine,
// dispatcher, correlation registry and status reconciler into per-event-type
// workflows. All request mutation funnels through here; the UI surface only
// reads the resulting view model.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crossgrid/orchestrator/internal/correlation"
	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/reconcile"
	"github.com/crossgrid/orchestrator/internal/store"
	"github.com/crossgrid/orchestrator/internal/transform"
	"github.com/crossgrid/orchestrator/internal/validate"
)

// Options tune sweep fan-out and the in-flight watchdog.
type Options struct {
	// SweepConcurrency bounds the worker pool used by SweepPending.
	SweepConcurrency int
	// SweepBatchSize caps how many requests one sweep picks up.
	SweepBatchSize int
	// InFlightTTL is how long a request may sit in DEPLOYING before the
	// watchdog (or the next reconcile) fails it retryably.
	InFlightTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.SweepConcurrency <= 0 {
		o.SweepConcurrency = 8
	}
	if o.SweepBatchSize <= 0 {
		o.SweepBatchSize = 100
	}
	if o.InFlightTTL <= 0 {
		o.InFlightTTL = 2 * time.Minute
	}
	return o
}

// EventDispatcher is the port for outbound dispatch. *dispatch.Dispatcher
// satisfies it.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event, target, correlationID string, targets dispatch.Targets) (*dispatch.Result, error)
}

// StatusChecker is the port for downstream status queries.
// *reconcile.Reconciler satisfies it.
type StatusChecker interface {
	Check(ctx context.Context, req *domain.IntegrationRequest, targets dispatch.Targets) (domain.Status, string, error)
}

type Orchestrator struct {
	store      store.RequestStore
	gate       *validate.Gate
	registry   *correlation.Registry
	dispatcher EventDispatcher
	reconciler StatusChecker
	locks      *keyedLocks
	opts       Options
	logger     *slog.Logger
}

func New(
	s store.RequestStore,
	gate *validate.Gate,
	registry *correlation.Registry,
	dispatcher EventDispatcher,
	reconciler StatusChecker,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      s,
		gate:       gate,
		registry:   registry,
		dispatcher: dispatcher,
		reconciler: reconciler,
		locks:      newKeyedLocks(),
		opts:       opts.withDefaults(),
		logger:     logger,
	}
}

// DeployResult reports a committed dispatch.
type DeployResult struct {
	RequestID int64         `json:"requestId"`
	Target    string        `json:"target"`
	TicketID  string        `json:"ticketId"`
	Status    domain.Status `json:"status"`
}

// Create ingests one business event: the source payload is captured
// verbatim and immutable from here on.
func (o *Orchestrator) Create(ctx context.Context, eventType domain.EventType, payload json.RawMessage) (*domain.IntegrationRequest, error) {
	ev, err := domain.DecodeEvent(eventType, payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &domain.IntegrationRequest{
		EventType:       eventType,
		SourcePayload:   append(json.RawMessage(nil), payload...),
		Event:           ev,
		Status:          domain.StatusPending,
		TargetTicketIDs: make(map[string]string, 2),
		History: []domain.HistoryEntry{{
			At:      now,
			Status:  domain.StatusPending,
			Message: fmt.Sprintf("request created from %s event", eventType),
		}},
		CreatedAt: now,
	}

	created, err := o.store.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("persist new request: %w", err)
	}

	o.logger.Info("ingested request",
		"request_id", created.ID,
		"event_type", eventType,
		"natural_key", created.NaturalKey(),
	)
	return created, nil
}

// Validate runs the gate and advances PENDING → VALIDATED on success.
// Idempotent: re-validating an already-VALIDATED request re-checks the rules
// and may demote it back to PENDING when they no longer hold. CASE events are
// pre-validated and never leave PENDING here.
func (o *Orchestrator) Validate(ctx context.Context, id int64) (*domain.ValidationResult, error) {
	unlock := o.locks.lock(id)
	defer unlock()

	req, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending && req.Status != domain.StatusValidated {
		return nil, domain.NewInvalidTransitionError(req.Status, domain.StatusValidated)
	}

	// First validation attempt mints the correlation id.
	o.registry.Ensure(req)

	result, dupErr := o.gate.Check(ctx, req)
	if result == nil {
		return nil, dupErr
	}
	req.ValidationResult = result

	switch {
	case dupErr != nil:
		req.RecordEvent("validation failed: " + strings.Join(result.Errors, "; "))
	case !result.Valid:
		msg := "validation failed: " + strings.Join(result.Errors, "; ")
		if req.Status == domain.StatusValidated {
			// Stale data no longer passes the rules; demote.
			if err := req.TransitionTo(domain.StatusPending, msg); err != nil {
				return nil, err
			}
		} else {
			req.RecordEvent(msg)
		}
	case result.Valid && req.Status == domain.StatusPending && req.EventType != domain.EventCase:
		if err := req.TransitionTo(domain.StatusValidated, "validation passed"); err != nil {
			return nil, err
		}
	}
	// A valid re-validation of a VALIDATED request (or of a pre-validated
	// CASE) changes nothing beyond the recorded result.

	if err := o.store.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("persist validation outcome: %w", err)
	}
	return result, dupErr
}

// Deploy transforms the request and dispatches it to the named target.
// At-most-once: any post-deploy status rejects with AlreadyDeployedError.
// The per-id lock is held only around the state checks, never across the
// network call; DeployStartedAt marks the in-flight window.
func (o *Orchestrator) Deploy(ctx context.Context, id int64, target string, targets dispatch.Targets) (*DeployResult, error) {
	if !domain.KnownTarget(target) {
		return nil, domain.NewUnknownTargetError(target)
	}

	unlock := o.locks.lock(id)
	req, err := o.store.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}

	if req.IsPostDeploy() {
		unlock()
		return nil, domain.NewAlreadyDeployedError(id, req.Status)
	}
	if err := o.checkDeployable(req); err != nil {
		unlock()
		return nil, err
	}

	o.registry.Ensure(req)
	if err := req.TransitionTo(domain.StatusDeploying, "dispatching to "+target); err != nil {
		unlock()
		return nil, err
	}
	now := time.Now().UTC()
	req.DeployStartedAt = &now
	if err := o.store.Update(ctx, req); err != nil {
		unlock()
		return nil, fmt.Errorf("persist in-flight marker: %w", err)
	}

	event := req.Event
	correlationID := req.CorrelationID
	unlock()

	result, dispErr := o.dispatcher.Dispatch(ctx, event, target, correlationID, targets)

	unlock = o.locks.lock(id)
	defer unlock()
	req, err = o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusDeploying {
		// The watchdog cleared the in-flight marker while we were on the
		// wire. Keep the audit trail honest and let the committed state win.
		req.RecordEvent(fmt.Sprintf("discarded late dispatch result for %s (status is %s)", target, req.Status))
		if err := o.store.Update(ctx, req); err != nil {
			return nil, err
		}
		return nil, domain.NewAlreadyDeployedError(id, req.Status)
	}

	req.DeployStartedAt = nil
	if dispErr != nil {
		req.LastError = dispErr.Error()
		if err := req.TransitionTo(domain.StatusFailed, fmt.Sprintf("dispatch to %s failed: %v", target, dispErr)); err != nil {
			return nil, err
		}
		if err := o.store.Update(ctx, req); err != nil {
			return nil, fmt.Errorf("persist dispatch failure: %w", err)
		}
		return nil, dispErr
	}

	o.registry.RecordTicket(req, target, result.TicketID)
	req.LastError = ""
	status := domain.StatusCompleted
	message := fmt.Sprintf("dispatched to %s: ticket %s", target, result.TicketID)
	if result.RequiresApproval {
		status = domain.StatusAwaitingApproval
		message = fmt.Sprintf("dispatched to %s: ticket %s awaiting approval", target, result.TicketID)
	}
	if err := req.TransitionTo(status, message); err != nil {
		return nil, err
	}
	if err := o.store.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("persist dispatch outcome: %w", err)
	}

	return &DeployResult{
		RequestID: req.ID,
		Target:    target,
		TicketID:  result.TicketID,
		Status:    req.Status,
	}, nil
}

// checkDeployable enforces the per-event-type preconditions: CASE deploys
// straight from PENDING, everything else needs a passed validation. FAILED
// is re-deployable for all types (operator retry).
func (o *Orchestrator) checkDeployable(req *domain.IntegrationRequest) error {
	switch req.Status {
	case domain.StatusFailed:
		return nil
	case domain.StatusValidated:
		return nil
	case domain.StatusPending:
		if req.EventType == domain.EventCase {
			return nil
		}
		return &domain.DomainError{
			Code:    domain.ErrCodeInvalidTransition,
			Message: fmt.Sprintf("request %d must pass validation before deploy", req.ID),
		}
	default:
		return domain.NewInvalidTransitionError(req.Status, domain.StatusDeploying)
	}
}

// Reconcile pulls current downstream status and folds it into the state
// machine. Safe under repeated polling: unchanged status means no state
// change and no history entry. Also the recovery path for requests stuck in
// DEPLOYING past the in-flight TTL.
func (o *Orchestrator) Reconcile(ctx context.Context, id int64, targets dispatch.Targets) (*domain.IntegrationRequest, error) {
	unlock := o.locks.lock(id)
	req, err := o.store.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}

	switch req.Status {
	case domain.StatusCompleted, domain.StatusRejected, domain.StatusFailed,
		domain.StatusPending, domain.StatusValidated:
		unlock()
		return req, nil

	case domain.StatusDeploying:
		defer unlock()
		return o.recoverStuck(ctx, req)

	case domain.StatusApproved:
		defer unlock()
		if err := req.TransitionTo(domain.StatusCompleted, "approved request completed"); err != nil {
			return nil, err
		}
		if err := o.store.Update(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	// AWAITING_APPROVAL: release the lock across the status query.
	snapshot := req.Clone()
	unlock()

	status, raw, err := o.reconciler.Check(ctx, snapshot, targets)
	if err != nil {
		o.logger.Warn("reconciliation query failed", "request_id", id, "error", err)
		return snapshot, err
	}

	return o.applyNormalized(ctx, id, status, raw, "poll")
}

// ApplyStatusPush ingests an externally-reported status for the request
// identified by correlation id, using the same vocabulary normalization as
// polling.
func (o *Orchestrator) ApplyStatusPush(ctx context.Context, correlationID, rawStatus string) (*domain.IntegrationRequest, error) {
	req, err := o.registry.Lookup(ctx, correlationID)
	if err != nil {
		return nil, err
	}

	normalized, ok := reconcile.NormalizeStatus(strings.ToLower(rawStatus))
	if !ok {
		return nil, &domain.DomainError{
			Code:    domain.ErrCodeValidationFailed,
			Message: fmt.Sprintf("unrecognized status %q", rawStatus),
		}
	}
	return o.applyNormalized(ctx, req.ID, normalized, strings.ToLower(rawStatus), "push")
}

// applyNormalized commits a normalized downstream status under the per-id
// lock, re-reading state first so a concurrent transition wins cleanly.
func (o *Orchestrator) applyNormalized(ctx context.Context, id int64, status domain.Status, raw, source string) (*domain.IntegrationRequest, error) {
	unlock := o.locks.lock(id)
	defer unlock()

	req, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusAwaitingApproval {
		// Already moved on (or not yet there); nothing to fold in.
		return req, nil
	}

	switch status {
	case domain.StatusAwaitingApproval:
		// Unchanged downstream status: no transition, no history entry.
		return req, nil

	case domain.StatusApproved:
		if err := req.TransitionTo(domain.StatusApproved, fmt.Sprintf("servicenow reported %q (%s)", raw, source)); err != nil {
			return nil, err
		}
		if err := req.TransitionTo(domain.StatusCompleted, "approved request completed"); err != nil {
			return nil, err
		}

	case domain.StatusRejected:
		if err := req.TransitionTo(domain.StatusRejected, fmt.Sprintf("servicenow reported %q (%s)", raw, source)); err != nil {
			return nil, err
		}

	default:
		return req, nil
	}

	if err := o.store.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("persist reconciled status: %w", err)
	}

	o.logger.Info("reconciled request",
		"request_id", req.ID,
		"status", req.Status,
		"raw_status", raw,
		"source", source,
	)
	return req, nil
}

// recoverStuck fails a request whose in-flight marker outlived the TTL.
// Caller holds the per-id lock.
func (o *Orchestrator) recoverStuck(ctx context.Context, req *domain.IntegrationRequest) (*domain.IntegrationRequest, error) {
	if req.DeployStartedAt == nil || time.Since(*req.DeployStartedAt) < o.opts.InFlightTTL {
		return req, nil
	}

	req.DeployStartedAt = nil
	req.LastError = "dispatch did not report an outcome before the in-flight deadline"
	if err := req.TransitionTo(domain.StatusFailed, "in-flight dispatch expired; request may be re-deployed"); err != nil {
		return nil, err
	}
	if err := o.store.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("persist stuck-deploy recovery: %w", err)
	}

	o.logger.Warn("recovered stuck deploy", "request_id", req.ID)
	return req, nil
}

// Preview renders the wire payload for a target without dispatching. Pure:
// identical input yields byte-identical output.
func (o *Orchestrator) Preview(ctx context.Context, id int64, target string) ([]byte, string, error) {
	req, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return transform.Payload(req.Event, target, req.CorrelationID)
}

// Get returns the request view model, history included.
func (o *Orchestrator) Get(ctx context.Context, id int64) (*domain.IntegrationRequest, error) {
	return o.store.Get(ctx, id)
}

// GetByCorrelation resolves a request from a cross-system correlation id.
func (o *Orchestrator) GetByCorrelation(ctx context.Context, correlationID string) (*domain.IntegrationRequest, error) {
	return o.registry.Lookup(ctx, correlationID)
}

// List exposes store listing for the tracking UI and the workers.
func (o *Orchestrator) List(ctx context.Context, eventType domain.EventType, statuses []domain.Status, limit int) ([]*domain.IntegrationRequest, error) {
	return o.store.ListByStatus(ctx, eventType, statuses, limit)
}
