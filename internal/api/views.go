package api

import (
	"encoding/json"
	"time"

	"github.com/crossgrid/orchestrator/internal/domain"
)

// requestView is the wire shape of an integration request, history included
// for the audit display.
type requestView struct {
	ID               int64                    `json:"id"`
	EventType        domain.EventType         `json:"eventType"`
	SourcePayload    json.RawMessage          `json:"sourcePayload"`
	CorrelationID    string                   `json:"correlationId,omitempty"`
	Status           domain.Status            `json:"status"`
	TargetTicketIDs  map[string]string        `json:"targetTicketIds"`
	ValidationResult *domain.ValidationResult `json:"validationResult,omitempty"`
	LastError        string                   `json:"lastError,omitempty"`
	History          []domain.HistoryEntry    `json:"history"`
	CreatedAt        time.Time                `json:"createdAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

func toView(req *domain.IntegrationRequest) requestView {
	return requestView{
		ID:               req.ID,
		EventType:        req.EventType,
		SourcePayload:    req.SourcePayload,
		CorrelationID:    req.CorrelationID,
		Status:           req.Status,
		TargetTicketIDs:  req.TargetTicketIDs,
		ValidationResult: req.ValidationResult,
		LastError:        req.LastError,
		History:          req.History,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}
}
