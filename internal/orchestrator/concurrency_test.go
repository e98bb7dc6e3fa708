package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
)

// Two concurrent deploys of the same request must produce exactly one
// dispatch; the loser sees ALREADY_DEPLOYED.
func TestDeploy_ConcurrentAtMostOnce(t *testing.T) {
	ctx := context.Background()
	orch, s, dispatcher, _ := newTestOrchestrator(t, Options{})
	req := mustCreate(t, orch, domain.EventCase, casePayload)

	// hold the dispatch on the wire long enough for the loser to observe
	// the in-flight marker
	dispatcher.DispatchFn = func(_ context.Context, _ domain.Event, target, _ string, _ dispatch.Targets) (*dispatch.Result, error) {
		time.Sleep(50 * time.Millisecond)
		return &dispatch.Result{Target: target, TicketID: "TCK-1", RawStatus: "created"}, nil
	}

	const workers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.Deploy(ctx, req.ID, domain.TargetSAP, approvalTargets())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case domain.IsErrorCode(err, domain.ErrCodeAlreadyDeployed):
				rejected++
			default:
				t.Errorf("unexpected deploy error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 1, dispatcher.callCount())

	stored, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	// created + deploying + completed: the losers add nothing
	assert.Len(t, stored.History, 3)
}

// Concurrent validations of the same request mint exactly one correlation id.
func TestValidate_ConcurrentMintsOneCorrelationID(t *testing.T) {
	ctx := context.Background()
	orch, s, _, _ := newTestOrchestrator(t, Options{})
	req := mustCreate(t, orch, domain.EventAccountCreation, accountPayload)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.Validate(ctx, req.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidated, stored.Status)
	assert.NotEmpty(t, stored.CorrelationID)
	// created + exactly one "validation passed"
	assert.Len(t, stored.History, 2)
}
