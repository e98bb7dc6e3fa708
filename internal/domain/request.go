// Package domain defines the domain model for the integration orchestrator.
package domain

import (
	"encoding/json"
	"time"
)

// Status represents the current state of an integration request in its lifecycle
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusValidated        Status = "VALIDATED"
	StatusDeploying        Status = "DEPLOYING"
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

// Target system names as keyed in TargetTicketIDs.
const (
	TargetSAP        = "sap"
	TargetServiceNow = "servicenow"
)

// KnownTarget reports whether name is a dispatchable target system.
func KnownTarget(name string) bool {
	return name == TargetSAP || name == TargetServiceNow
}

// HistoryEntry is one line of the append-only audit trail.
type HistoryEntry struct {
	At      time.Time `json:"at"`
	Status  Status    `json:"status"`
	Message string    `json:"message"`
}

// ValidationResult is the outcome of the last validation attempt.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// IntegrationRequest is the unit of work: one business event captured from
// the source system, tracked across every downstream system it touches.
type IntegrationRequest struct {
	ID        int64
	EventType EventType

	// SourcePayload is the canonical JSON captured at creation time.
	// Immutable after creation.
	SourcePayload json.RawMessage

	// Event is the decoded form of SourcePayload.
	Event Event

	// CorrelationID is assigned exactly once and never changes. It is the
	// idempotency key for every downstream call.
	CorrelationID string

	Status           Status
	TargetTicketIDs  map[string]string
	ValidationResult *ValidationResult
	LastError        string

	// History is append-only. Every status change appends exactly one entry.
	History []HistoryEntry

	// DeployStartedAt marks an in-flight dispatch. Set when the request
	// enters DEPLOYING, cleared when the dispatch outcome is committed.
	DeployStartedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanTransitionTo validates whether the request can move from its current
// status to the target status. It returns nil if the transition is allowed.
//
// Valid transitions are:
//   - Pending → Validated, Deploying (CASE only, enforced by the orchestrator), Failed
//   - Validated → Deploying, Pending (re-validation demotes on stale data), Failed
//   - Deploying → AwaitingApproval, Completed, Failed
//   - AwaitingApproval → Approved, Rejected, Failed
//   - Approved → Completed, Failed
//   - Failed → Deploying (operator retry of a retryable dispatch failure)
//
// Completed and Rejected are terminal.
func (r *IntegrationRequest) CanTransitionTo(target Status) error {
	switch r.Status {
	case StatusCompleted, StatusRejected:
		return NewInvalidTransitionError(r.Status, target)

	case StatusPending:
		if target == StatusValidated || target == StatusDeploying || target == StatusFailed {
			return nil
		}

	case StatusValidated:
		if target == StatusDeploying || target == StatusPending || target == StatusFailed {
			return nil
		}

	case StatusDeploying:
		if target == StatusAwaitingApproval || target == StatusCompleted || target == StatusFailed {
			return nil
		}

	case StatusAwaitingApproval:
		if target == StatusApproved || target == StatusRejected || target == StatusFailed {
			return nil
		}

	case StatusApproved:
		if target == StatusCompleted || target == StatusFailed {
			return nil
		}

	case StatusFailed:
		if target == StatusDeploying {
			return nil
		}
	}
	return NewInvalidTransitionError(r.Status, target)
}

// TransitionTo applies a status change and appends exactly one history entry.
func (r *IntegrationRequest) TransitionTo(target Status, message string) error {
	if err := r.CanTransitionTo(target); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = target
	r.UpdatedAt = now
	r.History = append(r.History, HistoryEntry{At: now, Status: target, Message: message})
	return nil
}

// RecordEvent appends an audit entry without changing status, e.g. a failed
// validation attempt that leaves the request in PENDING.
func (r *IntegrationRequest) RecordEvent(message string) {
	now := time.Now().UTC()
	r.UpdatedAt = now
	r.History = append(r.History, HistoryEntry{At: now, Status: r.Status, Message: message})
}

// IsTerminal reports whether no further reconciliation applies. FAILED is
// terminal for reconcile but remains re-deployable.
func (r *IntegrationRequest) IsTerminal() bool {
	switch r.Status {
	case StatusCompleted, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// IsPostDeploy reports whether a dispatch has already been committed, i.e.
// a further deploy would violate the at-most-once guarantee. REJECTED counts:
// the ticket went out, the approver said no.
func (r *IntegrationRequest) IsPostDeploy() bool {
	switch r.Status {
	case StatusDeploying, StatusAwaitingApproval, StatusApproved, StatusRejected, StatusCompleted:
		return true
	default:
		return false
	}
}

// NaturalKey returns the duplicate-detection key for this request. Two
// non-terminal requests may not share one.
func (r *IntegrationRequest) NaturalKey() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.NaturalKey()
}

// Clone returns a deep copy. Stores hand out clones so callers never share
// mutable state with the persisted record.
func (r *IntegrationRequest) Clone() *IntegrationRequest {
	cp := *r
	if r.SourcePayload != nil {
		cp.SourcePayload = append(json.RawMessage(nil), r.SourcePayload...)
	}
	if r.TargetTicketIDs != nil {
		cp.TargetTicketIDs = make(map[string]string, len(r.TargetTicketIDs))
		for k, v := range r.TargetTicketIDs {
			cp.TargetTicketIDs[k] = v
		}
	}
	if r.ValidationResult != nil {
		vr := *r.ValidationResult
		vr.Errors = append([]string(nil), r.ValidationResult.Errors...)
		cp.ValidationResult = &vr
	}
	cp.History = append([]HistoryEntry(nil), r.History...)
	if r.DeployStartedAt != nil {
		t := *r.DeployStartedAt
		cp.DeployStartedAt = &t
	}
	return &cp
}
