package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossgrid/orchestrator/internal/correlation"
	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/orchestrator"
	"github.com/crossgrid/orchestrator/internal/reconcile"
	"github.com/crossgrid/orchestrator/internal/store"
	"github.com/crossgrid/orchestrator/internal/validate"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testTargets() dispatch.Targets {
	return dispatch.Targets{
		SAP:        dispatch.TargetConfig{BaseURL: "http://sap.test"},
		ServiceNow: dispatch.TargetConfig{BaseURL: "http://snow.test", RequiresApproval: true},
	}
}

func newStack(t *testing.T, opts orchestrator.Options) (*orchestrator.Orchestrator, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	dispatcher := dispatch.NewDispatcher(testLogger)
	reconciler := reconcile.NewReconciler(dispatcher, testLogger)
	orch := orchestrator.New(s, validate.NewGate(s), correlation.NewRegistry(s), dispatcher, reconciler, opts, testLogger)
	return orch, s
}

func TestPoller_ReconcilesAwaitingApproval(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/tickets",
		httpmock.NewStringResponder(201, `{"ticket_id":"INC-1","status":"pending"}`))
	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/approvals",
		httpmock.NewStringResponder(201, `{"approval_id":"APR-1","status":"pending"}`))
	httpmock.RegisterResponder(http.MethodGet, "http://snow.test/ticket-status/INC-1",
		httpmock.NewStringResponder(200, `{"ticket_id":"INC-1","status":"approved"}`))

	ctx := context.Background()
	orch, s := newStack(t, orchestrator.Options{})

	req, err := orch.Create(ctx, domain.EventPasswordReset,
		json.RawMessage(`{"ticketId":"T-1","username":"jdoe","system":"sap"}`))
	require.NoError(t, err)
	_, err = orch.Validate(ctx, req.ID)
	require.NoError(t, err)
	_, err = orch.Deploy(ctx, req.ID, domain.TargetServiceNow, testTargets())
	require.NoError(t, err)

	poller := NewPoller(orch, s, testTargets(), time.Minute, 50, 2*time.Minute, testLogger)
	poller.RunOnce(ctx)

	stored, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestPoller_RecoversExpiredInFlightMarker(t *testing.T) {
	ctx := context.Background()
	orch, s := newStack(t, orchestrator.Options{InFlightTTL: time.Millisecond})

	req, err := orch.Create(ctx, domain.EventCase,
		json.RawMessage(`{"caseId":"CS-1","customerId":"CU-1","subject":"s"}`))
	require.NoError(t, err)

	stored, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	require.NoError(t, stored.TransitionTo(domain.StatusDeploying, "dispatching to sap"))
	startedAt := time.Now().UTC().Add(-time.Minute)
	stored.DeployStartedAt = &startedAt
	require.NoError(t, s.Update(ctx, stored))

	poller := NewPoller(orch, s, testTargets(), time.Minute, 50, time.Millisecond, testLogger)
	poller.RunOnce(ctx)

	recovered, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, recovered.Status)
	assert.Nil(t, recovered.DeployStartedAt)
}

func TestSweeper_RunOnceProcessesBacklog(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://sap.test/integration/mulesoft/load-request/xml",
		httpmock.NewStringResponder(200,
			`<LoadResponse><SAPOrderID>SAP-1</SAPOrderID><Status>created</Status></LoadResponse>`))

	ctx := context.Background()
	orch, s := newStack(t, orchestrator.Options{})

	req, err := orch.Create(ctx, domain.EventCase,
		json.RawMessage(`{"caseId":"CS-1","customerId":"CU-1","subject":"s","address":{"city":"Pune","pinCode":"411001"}}`))
	require.NoError(t, err)

	sweeper := NewSweeper(orch, testTargets(), time.Minute, testLogger)
	sweeper.RunOnce(ctx)

	stored, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}
