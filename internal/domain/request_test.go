package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingRequest(t *testing.T) *IntegrationRequest {
	t.Helper()
	payload := json.RawMessage(`{"accountId":"acc-1","name":"Acme","accountType":"Enterprise"}`)
	ev, err := DecodeEvent(EventAccountCreation, payload)
	require.NoError(t, err)

	return &IntegrationRequest{
		ID:              1,
		EventType:       EventAccountCreation,
		SourcePayload:   payload,
		Event:           ev,
		Status:          StatusPending,
		TargetTicketIDs: map[string]string{},
	}
}

func TestCanTransitionTo_HappyPath(t *testing.T) {
	req := newPendingRequest(t)

	require.NoError(t, req.TransitionTo(StatusValidated, "validation passed"))
	require.NoError(t, req.TransitionTo(StatusDeploying, "dispatching to servicenow"))
	require.NoError(t, req.TransitionTo(StatusAwaitingApproval, "ticket opened"))
	require.NoError(t, req.TransitionTo(StatusApproved, "approved"))
	require.NoError(t, req.TransitionTo(StatusCompleted, "done"))

	assert.Equal(t, StatusCompleted, req.Status)
	assert.Len(t, req.History, 5)
}

func TestCanTransitionTo_TerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusRejected} {
		req := newPendingRequest(t)
		req.Status = terminal
		for _, target := range []Status{StatusPending, StatusValidated, StatusDeploying, StatusFailed, StatusCompleted} {
			err := req.CanTransitionTo(target)
			assert.Error(t, err, "%s -> %s should be rejected", terminal, target)
			assert.True(t, IsErrorCode(err, ErrCodeInvalidTransition))
		}
	}
}

func TestCanTransitionTo_FailedIsRedeployable(t *testing.T) {
	req := newPendingRequest(t)
	req.Status = StatusFailed

	require.NoError(t, req.CanTransitionTo(StatusDeploying))
	assert.Error(t, req.CanTransitionTo(StatusCompleted))
	assert.Error(t, req.CanTransitionTo(StatusValidated))
}

func TestCanTransitionTo_ValidatedDemotesToPending(t *testing.T) {
	req := newPendingRequest(t)
	req.Status = StatusValidated

	require.NoError(t, req.CanTransitionTo(StatusPending))
}

func TestTransitionTo_AppendsExactlyOneHistoryEntry(t *testing.T) {
	req := newPendingRequest(t)

	require.NoError(t, req.TransitionTo(StatusValidated, "validation passed"))
	require.Len(t, req.History, 1)
	assert.Equal(t, StatusValidated, req.History[0].Status)
	assert.Equal(t, "validation passed", req.History[0].Message)

	err := req.TransitionTo(StatusCompleted, "nope")
	assert.Error(t, err)
	assert.Len(t, req.History, 1, "rejected transition must not touch history")
}

func TestRecordEvent_KeepsStatus(t *testing.T) {
	req := newPendingRequest(t)
	req.RecordEvent("validation failed: name is required")

	assert.Equal(t, StatusPending, req.Status)
	require.Len(t, req.History, 1)
	assert.Equal(t, StatusPending, req.History[0].Status)
}

func TestIsPostDeploy(t *testing.T) {
	req := newPendingRequest(t)

	post := []Status{StatusDeploying, StatusAwaitingApproval, StatusApproved, StatusRejected, StatusCompleted}
	for _, st := range post {
		req.Status = st
		assert.True(t, req.IsPostDeploy(), "%s should count as post-deploy", st)
	}
	for _, st := range []Status{StatusPending, StatusValidated, StatusFailed} {
		req.Status = st
		assert.False(t, req.IsPostDeploy(), "%s should not count as post-deploy", st)
	}
}

func TestClone_IsDeep(t *testing.T) {
	req := newPendingRequest(t)
	req.CorrelationID = "corr-1"
	req.TargetTicketIDs["sap"] = "SAP-1"
	require.NoError(t, req.TransitionTo(StatusValidated, "ok"))

	cp := req.Clone()
	cp.TargetTicketIDs["sap"] = "SAP-2"
	cp.History = append(cp.History, HistoryEntry{Status: StatusFailed, Message: "boom"})

	assert.Equal(t, "SAP-1", req.TargetTicketIDs["sap"])
	assert.Len(t, req.History, 1)
}
