package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeStatusSource struct {
	status string
	err    error
	calls  int
}

func (f *fakeStatusSource) TicketStatus(_ context.Context, _, _ string, _ dispatch.Targets) (string, error) {
	f.calls++
	return f.status, f.err
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw    string
		want   domain.Status
		wantOK bool
	}{
		{"pending", domain.StatusAwaitingApproval, true},
		{"in_progress", domain.StatusAwaitingApproval, true},
		{"awaiting_approval", domain.StatusAwaitingApproval, true},
		{"open", domain.StatusAwaitingApproval, true},
		{"approved", domain.StatusApproved, true},
		{"complete", domain.StatusApproved, true},
		{"completed", domain.StatusApproved, true},
		{"closed_complete", domain.StatusApproved, true},
		{"rejected", domain.StatusRejected, true},
		{"denied", domain.StatusRejected, true},
		{"cancelled", domain.StatusRejected, true},
		{"closed_incomplete", domain.StatusRejected, true},
		{"wontfix", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := NormalizeStatus(tc.raw)
		assert.Equal(t, tc.wantOK, ok, "raw %q", tc.raw)
		assert.Equal(t, tc.want, got, "raw %q", tc.raw)
	}
}

func awaitingRequest() *domain.IntegrationRequest {
	return &domain.IntegrationRequest{
		ID:              1,
		Status:          domain.StatusAwaitingApproval,
		TargetTicketIDs: map[string]string{domain.TargetServiceNow: "INC-1"},
	}
}

func TestCheck_NormalizesDownstreamStatus(t *testing.T) {
	src := &fakeStatusSource{status: "approved"}
	r := NewReconciler(src, testLogger)

	status, raw, err := r.Check(context.Background(), awaitingRequest(), dispatch.Targets{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, status)
	assert.Equal(t, "approved", raw)
	assert.Equal(t, 1, src.calls)
}

func TestCheck_UnknownVocabularyStaysPending(t *testing.T) {
	src := &fakeStatusSource{status: "wontfix"}
	r := NewReconciler(src, testLogger)

	status, raw, err := r.Check(context.Background(), awaitingRequest(), dispatch.Targets{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingApproval, status)
	assert.Equal(t, "wontfix", raw)
}

func TestCheck_QueryFailure(t *testing.T) {
	src := &fakeStatusSource{err: errors.New("gateway timeout")}
	r := NewReconciler(src, testLogger)

	_, _, err := r.Check(context.Background(), awaitingRequest(), dispatch.Targets{})
	require.Error(t, err)
	var recErr *domain.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, domain.TargetServiceNow, recErr.Target)
}

func TestCheck_SAPOnlyTicketIsNotPollable(t *testing.T) {
	src := &fakeStatusSource{status: "approved"}
	r := NewReconciler(src, testLogger)

	req := awaitingRequest()
	req.TargetTicketIDs = map[string]string{domain.TargetSAP: "SAP-77"}

	_, _, err := r.Check(context.Background(), req, dispatch.Targets{})
	require.Error(t, err)
	var recErr *domain.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Zero(t, src.calls)
}

func TestCheck_MissingTicketID(t *testing.T) {
	src := &fakeStatusSource{status: "approved"}
	r := NewReconciler(src, testLogger)

	req := awaitingRequest()
	req.TargetTicketIDs = nil

	_, _, err := r.Check(context.Background(), req, dispatch.Targets{})
	require.Error(t, err)
	var recErr *domain.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Zero(t, src.calls)
}
