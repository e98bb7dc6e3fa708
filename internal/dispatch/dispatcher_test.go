package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossgrid/orchestrator/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testTargets() Targets {
	return Targets{
		SAP:        TargetConfig{BaseURL: "http://sap.test"},
		ServiceNow: TargetConfig{BaseURL: "http://snow.test", RequiresApproval: true},
	}
}

func caseEvent() *domain.CaseEvent {
	return &domain.CaseEvent{
		CaseID:          "CS-1",
		CustomerID:      "CU-1",
		Subject:         "Load enhancement",
		CurrentLoadKW:   5,
		RequestedLoadKW: 10,
		PropertyType:    "residential",
		Address:         domain.Address{City: "Pune", PinCode: "411001"},
	}
}

func TestDispatch_SAPSuccess(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var gotIdempotencyKey, gotContentType string
	httpmock.RegisterResponder(http.MethodPost, "http://sap.test/integration/mulesoft/load-request/xml",
		func(req *http.Request) (*http.Response, error) {
			gotIdempotencyKey = req.Header.Get("Idempotency-Key")
			gotContentType = req.Header.Get("Content-Type")
			return httpmock.NewStringResponse(200,
				`<LoadResponse><SAPOrderID>SAP-9001</SAPOrderID><Status>created</Status></LoadResponse>`), nil
		})

	d := NewDispatcher(testLogger)
	result, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetSAP, "corr-1", testTargets())
	require.NoError(t, err)

	assert.Equal(t, domain.TargetSAP, result.Target)
	assert.Equal(t, "SAP-9001", result.TicketID)
	assert.Equal(t, "created", result.RawStatus)
	assert.False(t, result.RequiresApproval)
	assert.Equal(t, "corr-1", gotIdempotencyKey)
	assert.Equal(t, "application/xml", gotContentType)
}

func TestDispatch_SAPLegacyTicketField(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://sap.test/integration/mulesoft/load-request/xml",
		httpmock.NewStringResponder(200,
			`<LoadResponse><sap_ticket_id>SAP-77</sap_ticket_id><Status>created</Status></LoadResponse>`))

	d := NewDispatcher(testLogger)
	result, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetSAP, "corr-1", testTargets())
	require.NoError(t, err)
	assert.Equal(t, "SAP-77", result.TicketID)
}

func TestDispatch_SAPMissingOrderIDIsNotRetryable(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://sap.test/integration/mulesoft/load-request/xml",
		httpmock.NewStringResponder(200, `<LoadResponse><Status>created</Status></LoadResponse>`))

	d := NewDispatcher(testLogger)
	_, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetSAP, "corr-1", testTargets())
	require.Error(t, err)

	var dispErr *domain.DispatchError
	require.ErrorAs(t, err, &dispErr)
	assert.False(t, dispErr.Retryable)
}

func TestDispatch_ServiceNowWithApproval(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/tickets",
		httpmock.NewStringResponder(201, `{"ticket_id":"INC-100","status":"pending"}`))
	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/approvals",
		httpmock.NewStringResponder(201, `{"approval_id":"APR-1","status":"pending"}`))

	d := NewDispatcher(testLogger)
	result, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetServiceNow, "corr-2", testTargets())
	require.NoError(t, err)

	assert.Equal(t, "INC-100", result.TicketID)
	assert.True(t, result.RequiresApproval)
	assert.Equal(t, "pending", result.RawStatus)

	counts := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, counts["POST http://snow.test/tickets"])
	assert.Equal(t, 1, counts["POST http://snow.test/approvals"])
}

func TestDispatch_ServiceNowWithoutApprovalSkipsApprovalCall(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/tickets",
		httpmock.NewStringResponder(201, `{"ticket_id":"INC-101","status":"created"}`))

	targets := testTargets()
	targets.ServiceNow.RequiresApproval = false

	d := NewDispatcher(testLogger)
	result, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetServiceNow, "corr-3", targets)
	require.NoError(t, err)
	assert.False(t, result.RequiresApproval)

	counts := httpmock.GetCallCountInfo()
	assert.Zero(t, counts["POST http://snow.test/approvals"])
}

func TestDispatch_ClientErrorIsNotRetryable(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/tickets",
		httpmock.NewStringResponder(400, `{"error":"bad_request","message":"malformed ticket"}`))

	d := NewDispatcher(testLogger)
	_, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetServiceNow, "corr-4", testTargets())
	require.Error(t, err)

	var dispErr *domain.DispatchError
	require.ErrorAs(t, err, &dispErr)
	assert.False(t, dispErr.Retryable)
	assert.Contains(t, dispErr.Error(), "malformed ticket")
}

func TestDispatch_ServerErrorIsRetryable(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://sap.test/integration/mulesoft/load-request/xml",
		httpmock.NewStringResponder(503, `{"error":"unavailable","message":"maintenance window"}`))

	d := NewDispatcher(testLogger)
	_, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetSAP, "corr-5", testTargets())
	require.Error(t, err)

	var dispErr *domain.DispatchError
	require.ErrorAs(t, err, &dispErr)
	assert.True(t, dispErr.Retryable)
}

func TestDispatch_TransportFailureIsRetryable(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://snow.test/tickets",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	d := NewDispatcher(testLogger)
	_, err := d.Dispatch(context.Background(), caseEvent(), domain.TargetServiceNow, "corr-6", testTargets())
	require.Error(t, err)

	var dispErr *domain.DispatchError
	require.ErrorAs(t, err, &dispErr)
	assert.True(t, dispErr.Retryable)
}

func TestDispatch_UnknownTarget(t *testing.T) {
	d := NewDispatcher(testLogger)
	_, err := d.Dispatch(context.Background(), caseEvent(), "jira", "corr-7", testTargets())
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnknownTarget))
}

func TestTicketStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://snow.test/ticket-status/INC-100",
		httpmock.NewStringResponder(200, `{"ticket_id":"INC-100","status":"Approved"}`))

	d := NewDispatcher(testLogger)
	status, err := d.TicketStatus(context.Background(), domain.TargetServiceNow, "INC-100", testTargets())
	require.NoError(t, err)
	assert.Equal(t, "approved", status)

	_, err = d.TicketStatus(context.Background(), domain.TargetSAP, "SAP-1", testTargets())
	assert.Error(t, err)
}

func TestTargetErrorClassification(t *testing.T) {
	assert.False(t, (&TargetError{StatusCode: 404}).IsRetryable())
	assert.False(t, (&TargetError{StatusCode: 422}).IsRetryable())
	assert.True(t, (&TargetError{StatusCode: 500}).IsRetryable())
	assert.True(t, (&TargetError{StatusCode: 503}).IsRetryable())
}
