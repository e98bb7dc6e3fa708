package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ServiceNowTicketResponse is returned by POST /tickets.
type ServiceNowTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// ServiceNowApprovalRequest opens an approval record against a ticket.
type ServiceNowApprovalRequest struct {
	TicketID      string `json:"ticket_id"`
	CorrelationID string `json:"correlation_id"`
	Summary       string `json:"summary,omitempty"`
}

// ServiceNowApprovalResponse is returned by POST /approvals.
type ServiceNowApprovalResponse struct {
	ApprovalID string `json:"approval_id"`
	Status     string `json:"status"`
}

// ServiceNowStatusResponse is returned by GET /ticket-status/{id}.
// Status vocabulary: pending | approved | rejected.
type ServiceNowStatusResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// ServiceNowClient talks to the ServiceNow-style ticket endpoints.
type ServiceNowClient interface {
	CreateTicket(ctx context.Context, body []byte, correlationID string) (*ServiceNowTicketResponse, error)
	CreateApproval(ctx context.Context, req ServiceNowApprovalRequest, correlationID string) (*ServiceNowApprovalResponse, error)
	GetTicketStatus(ctx context.Context, ticketID string) (*ServiceNowStatusResponse, error)
}

type HTTPServiceNowClient struct {
	cfg        TargetConfig
	httpClient *http.Client
}

func NewServiceNowClient(cfg TargetConfig, httpClient *http.Client) *HTTPServiceNowClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPServiceNowClient{cfg: cfg, httpClient: httpClient}
}

func (c *HTTPServiceNowClient) CreateTicket(ctx context.Context, body []byte, correlationID string) (*ServiceNowTicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	url := fmt.Sprintf("%s/tickets", c.cfg.BaseURL)
	var resp ServiceNowTicketResponse
	if err := send(ctx, c.httpClient, "servicenow", http.MethodPost, url, "application/json", body, correlationID, decodeJSON, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPServiceNowClient) CreateApproval(ctx context.Context, req ServiceNowApprovalRequest, correlationID string) (*ServiceNowApprovalResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshalling approval: %w", err)
	}

	url := fmt.Sprintf("%s/approvals", c.cfg.BaseURL)
	var resp ServiceNowApprovalResponse
	if err := send(ctx, c.httpClient, "servicenow", http.MethodPost, url, "application/json", body, correlationID, decodeJSON, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPServiceNowClient) GetTicketStatus(ctx context.Context, ticketID string) (*ServiceNowStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	url := fmt.Sprintf("%s/ticket-status/%s", c.cfg.BaseURL, ticketID)
	var resp ServiceNowStatusResponse
	if err := send(ctx, c.httpClient, "servicenow", http.MethodGet, url, "", nil, "", decodeJSON, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
