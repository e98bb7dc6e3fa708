package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/orchestrator"
	"github.com/crossgrid/orchestrator/internal/store"
)

// Poller drives reconciliation: it re-checks requests awaiting downstream
// approval and doubles as the watchdog that clears expired in-flight markers.
type Poller struct {
	orch      *orchestrator.Orchestrator
	store     store.RequestStore
	targets   dispatch.Targets
	interval  time.Duration
	batchSize int
	stuckTTL  time.Duration
	logger    *slog.Logger
}

func NewPoller(
	orch *orchestrator.Orchestrator,
	s store.RequestStore,
	targets dispatch.Targets,
	interval time.Duration,
	batchSize int,
	stuckTTL time.Duration,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		orch:      orch,
		store:     s,
		targets:   targets,
		interval:  interval,
		batchSize: batchSize,
		stuckTTL:  stuckTTL,
		logger:    logger,
	}
}

func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("starting reconcile poller", "interval", p.interval, "batch_size", p.batchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping reconcile poller")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (p *Poller) RunOnce(ctx context.Context) {
	p.reconcileAwaiting(ctx)
	p.recoverStuck(ctx)
}

func (p *Poller) reconcileAwaiting(ctx context.Context) {
	awaiting, err := p.store.ListByStatus(ctx, "",
		[]domain.Status{domain.StatusAwaitingApproval, domain.StatusApproved},
		p.batchSize,
	)
	if err != nil {
		p.logger.Error("failed to list requests awaiting approval", "error", err)
		return
	}

	for _, req := range awaiting {
		if _, err := p.orch.Reconcile(ctx, req.ID, p.targets); err != nil {
			// Transient by definition; the next cycle retries.
			p.logger.Warn("reconciliation attempt failed", "request_id", req.ID, "error", err)
		}
	}
}

func (p *Poller) recoverStuck(ctx context.Context) {
	stuck, err := p.store.ListStuckDeploying(ctx, p.stuckTTL, p.batchSize)
	if err != nil {
		p.logger.Error("failed to list stuck requests", "error", err)
		return
	}

	for _, req := range stuck {
		if _, err := p.orch.Reconcile(ctx, req.ID, p.targets); err != nil {
			p.logger.Error("stuck-deploy recovery failed", "request_id", req.ID, "error", err)
		}
	}
}
