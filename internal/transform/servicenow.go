package transform

import (
	"fmt"

	"github.com/crossgrid/orchestrator/internal/domain"
)

// ServiceNowTicket is the JSON document posted to the ServiceNow tickets
// endpoint, shaped after the Table-API idiom.
type ServiceNowTicket struct {
	ShortDescription string `json:"short_description"`
	Description      string `json:"description,omitempty"`
	Category         string `json:"category"`
	Urgency          string `json:"urgency,omitempty"`
	CallerID         string `json:"caller_id,omitempty"`
	CorrelationID    string `json:"correlation_id"`
}

func CaseToServiceNow(ev *domain.CaseEvent, correlationID string) ServiceNowTicket {
	return ServiceNowTicket{
		ShortDescription: ev.Subject,
		Description:      ev.Description,
		Category:         "case",
		Urgency:          ev.Priority,
		CallerID:         ev.CustomerID,
		CorrelationID:    correlationID,
	}
}

func AccountCreationToServiceNow(ev *domain.AccountCreationEvent, correlationID string) ServiceNowTicket {
	return ServiceNowTicket{
		ShortDescription: fmt.Sprintf("Account creation: %s", ev.Name),
		Description:      fmt.Sprintf("Provision %s account %s (%s)", ev.AccountType, ev.Name, ev.AccountID),
		Category:         "account_creation",
		CallerID:         ev.OwnerEmail,
		CorrelationID:    correlationID,
	}
}

func PasswordResetToServiceNow(ev *domain.PasswordResetEvent, correlationID string) ServiceNowTicket {
	return ServiceNowTicket{
		ShortDescription: fmt.Sprintf("Password reset for %s on %s", ev.Username, ev.System),
		Description:      ev.Reason,
		Category:         "password_reset",
		CallerID:         ev.Email,
		CorrelationID:    correlationID,
	}
}
