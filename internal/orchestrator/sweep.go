package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
)

// BatchResult aggregates per-item outcomes of one sweep. One item's failure
// never aborts the sweep.
type BatchResult struct {
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Errors    map[int64]string `json:"errors,omitempty"`
}

// DefaultTarget returns the routing for a sweep: support cases feed the SAP
// work-order flow; account and credential requests go through ServiceNow
// ticketing.
func DefaultTarget(eventType domain.EventType) string {
	if eventType == domain.EventCase {
		return domain.TargetSAP
	}
	return domain.TargetServiceNow
}

// SweepPending validates then deploys every PENDING/VALIDATED request of the
// given event type, fanning out over a bounded worker pool with per-item
// error isolation.
func (o *Orchestrator) SweepPending(ctx context.Context, eventType domain.EventType, targets dispatch.Targets) (*BatchResult, error) {
	pending, err := o.store.ListByStatus(ctx, eventType,
		[]domain.Status{domain.StatusPending, domain.StatusValidated},
		o.opts.SweepBatchSize,
	)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Errors: make(map[int64]string)}
	if len(pending) == 0 {
		return result, nil
	}

	target := DefaultTarget(eventType)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.opts.SweepConcurrency)
	)

	for _, req := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64, status domain.Status) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := o.sweepOne(ctx, id, status, eventType, target, targets)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch outcome.kind {
			case sweepSucceeded:
				result.Succeeded++
			case sweepSkipped:
				result.Skipped++
			default:
				result.Failed++
				result.Errors[id] = outcome.message
			}
		}(req.ID, req.Status)
	}
	wg.Wait()

	o.logger.Info("sweep finished",
		"event_type", eventType,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

type sweepOutcomeKind int

const (
	sweepSucceeded sweepOutcomeKind = iota
	sweepFailed
	sweepSkipped
)

type sweepOutcome struct {
	kind    sweepOutcomeKind
	message string
}

func (o *Orchestrator) sweepOne(ctx context.Context, id int64, status domain.Status, eventType domain.EventType, target string, targets dispatch.Targets) sweepOutcome {
	if status == domain.StatusPending && eventType != domain.EventCase {
		vr, err := o.Validate(ctx, id)
		if err != nil {
			return sweepOutcome{kind: sweepFailed, message: err.Error()}
		}
		if !vr.Valid {
			return sweepOutcome{kind: sweepFailed, message: (&domain.ValidationError{Errors: vr.Errors}).Error()}
		}
	}

	if _, err := o.Deploy(ctx, id, target, targets); err != nil {
		// Another worker (or an operator) already dispatched it.
		if domain.IsErrorCode(err, domain.ErrCodeAlreadyDeployed) {
			return sweepOutcome{kind: sweepSkipped, message: err.Error()}
		}
		var dispErr *domain.DispatchError
		if errors.As(err, &dispErr) {
			return sweepOutcome{kind: sweepFailed, message: dispErr.Error()}
		}
		return sweepOutcome{kind: sweepFailed, message: err.Error()}
	}
	return sweepOutcome{kind: sweepSucceeded}
}
