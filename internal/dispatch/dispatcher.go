package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/transform"
)

// Result is a successful dispatch outcome.
type Result struct {
	Target   string
	TicketID string
	// RawStatus is the target's own status word as reported at creation.
	RawStatus string
	// RequiresApproval mirrors the target configuration: the request parks
	// in AWAITING_APPROVAL instead of completing.
	RequiresApproval bool
}

// Dispatcher renders a request through the transform engine and performs the
// outbound call. One attempt per invocation; classification of the failure
// decides whether the operator may retry.
type Dispatcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Dispatch sends the transformed payload for ev to the named target using
// correlationID as the idempotency key. Failures come back as
// *domain.DispatchError with Retryable set per classification.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event, target, correlationID string, targets Targets) (*Result, error) {
	payload, _, err := transform.Payload(ev, target, correlationID)
	if err != nil {
		return nil, err
	}

	switch target {
	case domain.TargetSAP:
		return d.dispatchSAP(ctx, payload, correlationID, targets.SAP)
	case domain.TargetServiceNow:
		return d.dispatchServiceNow(ctx, ev, payload, correlationID, targets.ServiceNow)
	default:
		return nil, domain.NewUnknownTargetError(target)
	}
}

func (d *Dispatcher) dispatchSAP(ctx context.Context, payload []byte, correlationID string, cfg TargetConfig) (*Result, error) {
	client := NewSAPClient(cfg, d.httpClient)
	resp, err := client.SubmitLoadRequest(ctx, payload, correlationID)
	if err != nil {
		return nil, classify(domain.TargetSAP, err)
	}
	if resp.OrderID() == "" {
		return nil, &domain.DispatchError{
			Target:    domain.TargetSAP,
			Retryable: false,
			Err:       fmt.Errorf("sap response carried no order id (status %q)", resp.Status),
		}
	}

	d.logger.Info("dispatched to sap",
		"correlation_id", correlationID,
		"sap_order_id", resp.OrderID(),
		"status", resp.Status,
	)

	return &Result{
		Target:           domain.TargetSAP,
		TicketID:         resp.OrderID(),
		RawStatus:        resp.Status,
		RequiresApproval: cfg.RequiresApproval,
	}, nil
}

func (d *Dispatcher) dispatchServiceNow(ctx context.Context, ev domain.Event, payload []byte, correlationID string, cfg TargetConfig) (*Result, error) {
	client := NewServiceNowClient(cfg, d.httpClient)
	resp, err := client.CreateTicket(ctx, payload, correlationID)
	if err != nil {
		return nil, classify(domain.TargetServiceNow, err)
	}
	if resp.TicketID == "" {
		return nil, &domain.DispatchError{
			Target:    domain.TargetServiceNow,
			Retryable: false,
			Err:       fmt.Errorf("servicenow response carried no ticket id"),
		}
	}

	if cfg.RequiresApproval {
		approval := ServiceNowApprovalRequest{
			TicketID:      resp.TicketID,
			CorrelationID: correlationID,
			Summary:       approvalSummary(ev),
		}
		if _, err := client.CreateApproval(ctx, approval, correlationID); err != nil {
			return nil, classify(domain.TargetServiceNow, err)
		}
	}

	d.logger.Info("dispatched to servicenow",
		"correlation_id", correlationID,
		"ticket_id", resp.TicketID,
		"requires_approval", cfg.RequiresApproval,
	)

	return &Result{
		Target:           domain.TargetServiceNow,
		TicketID:         resp.TicketID,
		RawStatus:        resp.Status,
		RequiresApproval: cfg.RequiresApproval,
	}, nil
}

func approvalSummary(ev domain.Event) string {
	switch e := ev.(type) {
	case *domain.CaseEvent:
		return "Approve case: " + e.Subject
	case *domain.AccountCreationEvent:
		return "Approve account creation: " + e.Name
	case *domain.PasswordResetEvent:
		return "Approve password reset: " + e.Username + "@" + e.System
	default:
		return ""
	}
}

// classify wraps a raw client failure into the domain taxonomy.
func classify(target string, err error) *domain.DispatchError {
	return &domain.DispatchError{
		Target:    target,
		Retryable: isRetryable(err),
		Err:       err,
	}
}

// TicketStatus queries the target's status endpoint for a previously
// dispatched ticket. Only approval-style targets expose one.
func (d *Dispatcher) TicketStatus(ctx context.Context, target, ticketID string, targets Targets) (string, error) {
	switch target {
	case domain.TargetServiceNow:
		client := NewServiceNowClient(targets.ServiceNow, d.httpClient)
		resp, err := client.GetTicketStatus(ctx, ticketID)
		if err != nil {
			return "", err
		}
		return strings.ToLower(resp.Status), nil
	default:
		return "", domain.NewUnknownTargetError(target)
	}
}
