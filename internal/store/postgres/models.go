package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crossgrid/orchestrator/internal/domain"
)

// requestRow is the database shape of an integration request.
type requestRow struct {
	ID               int64
	EventType        string
	SourcePayload    []byte
	CorrelationID    *string
	Status           string
	NaturalKey       string
	TargetTicketIDs  []byte
	ValidationResult []byte
	LastError        string
	History          []byte
	DeployStartedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func toRow(req *domain.IntegrationRequest) (*requestRow, error) {
	tickets, err := json.Marshal(req.TargetTicketIDs)
	if err != nil {
		return nil, fmt.Errorf("encode target ticket ids: %w", err)
	}
	history, err := json.Marshal(req.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	var validation []byte
	if req.ValidationResult != nil {
		validation, err = json.Marshal(req.ValidationResult)
		if err != nil {
			return nil, fmt.Errorf("encode validation result: %w", err)
		}
	}

	var correlationID *string
	if req.CorrelationID != "" {
		correlationID = &req.CorrelationID
	}

	return &requestRow{
		ID:               req.ID,
		EventType:        string(req.EventType),
		SourcePayload:    req.SourcePayload,
		CorrelationID:    correlationID,
		Status:           string(req.Status),
		NaturalKey:       req.NaturalKey(),
		TargetTicketIDs:  tickets,
		ValidationResult: validation,
		LastError:        req.LastError,
		History:          history,
		DeployStartedAt:  req.DeployStartedAt,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}, nil
}

func (r *requestRow) toDomain() (*domain.IntegrationRequest, error) {
	eventType, err := domain.ParseEventType(r.EventType)
	if err != nil {
		return nil, err
	}
	event, err := domain.DecodeEvent(eventType, r.SourcePayload)
	if err != nil {
		return nil, err
	}

	req := &domain.IntegrationRequest{
		ID:              r.ID,
		EventType:       eventType,
		SourcePayload:   append(json.RawMessage(nil), r.SourcePayload...),
		Event:           event,
		Status:          domain.Status(r.Status),
		LastError:       r.LastError,
		DeployStartedAt: r.DeployStartedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.CorrelationID != nil {
		req.CorrelationID = *r.CorrelationID
	}

	if err := json.Unmarshal(r.TargetTicketIDs, &req.TargetTicketIDs); err != nil {
		return nil, fmt.Errorf("decode target ticket ids: %w", err)
	}
	if err := json.Unmarshal(r.History, &req.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if len(r.ValidationResult) > 0 {
		req.ValidationResult = &domain.ValidationResult{}
		if err := json.Unmarshal(r.ValidationResult, req.ValidationResult); err != nil {
			return nil, fmt.Errorf("decode validation result: %w", err)
		}
	}

	return req, nil
}
