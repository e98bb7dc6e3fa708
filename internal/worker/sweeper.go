// Package worker hosts the scheduled drivers around the orchestrator core.
// The core itself is synchronous and timer-free; every ticker lives here.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/orchestrator"
)

var sweepEventTypes = []domain.EventType{
	domain.EventCase,
	domain.EventAccountCreation,
	domain.EventPasswordReset,
}

// Sweeper periodically runs the process-all-pending sweep per event type.
type Sweeper struct {
	orch     *orchestrator.Orchestrator
	targets  dispatch.Targets
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(orch *orchestrator.Orchestrator, targets dispatch.Targets, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		orch:     orch,
		targets:  targets,
		interval: interval,
		logger:   logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting sweep worker", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping sweep worker")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep cycle across all event types.
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, eventType := range sweepEventTypes {
		result, err := s.orch.SweepPending(ctx, eventType, s.targets)
		if err != nil {
			s.logger.Error("sweep failed", "event_type", eventType, "error", err)
			continue
		}
		if result.Failed > 0 {
			s.logger.Warn("sweep had failures",
				"event_type", eventType,
				"failed", result.Failed,
				"errors", result.Errors,
			)
		}
	}
}
