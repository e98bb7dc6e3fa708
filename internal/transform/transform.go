// Package transform maps canonical events onto target-system wire formats.
// Every function here is pure: the UI preview and the dispatcher render
// through the same code path, and rendering twice yields identical bytes.
package transform

import (
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/crossgrid/orchestrator/internal/domain"
)

// Content types of rendered payloads.
const (
	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
)

// Payload renders the wire payload for an (event, target) pair. It returns
// the encoded bytes and their content type.
func Payload(ev domain.Event, target, correlationID string) ([]byte, string, error) {
	switch target {
	case domain.TargetSAP:
		doc, err := sapDocument(ev, correlationID)
		if err != nil {
			return nil, "", err
		}
		body, err := xml.Marshal(doc)
		if err != nil {
			return nil, "", fmt.Errorf("encode sap payload: %w", err)
		}
		return body, ContentTypeXML, nil

	case domain.TargetServiceNow:
		ticket, err := serviceNowTicket(ev, correlationID)
		if err != nil {
			return nil, "", err
		}
		body, err := json.Marshal(ticket)
		if err != nil {
			return nil, "", fmt.Errorf("encode servicenow payload: %w", err)
		}
		return body, ContentTypeJSON, nil

	default:
		return nil, "", domain.NewUnknownTargetError(target)
	}
}

func sapDocument(ev domain.Event, correlationID string) (any, error) {
	switch e := ev.(type) {
	case *domain.CaseEvent:
		return CaseToSAP(e, correlationID), nil
	case *domain.AccountCreationEvent:
		return AccountCreationToSAP(e, correlationID), nil
	case *domain.PasswordResetEvent:
		return PasswordResetToSAP(e, correlationID), nil
	default:
		return nil, domain.NewUnknownEventTypeError(fmt.Sprintf("%T", ev))
	}
}

func serviceNowTicket(ev domain.Event, correlationID string) (ServiceNowTicket, error) {
	switch e := ev.(type) {
	case *domain.CaseEvent:
		return CaseToServiceNow(e, correlationID), nil
	case *domain.AccountCreationEvent:
		return AccountCreationToServiceNow(e, correlationID), nil
	case *domain.PasswordResetEvent:
		return PasswordResetToServiceNow(e, correlationID), nil
	default:
		return ServiceNowTicket{}, domain.NewUnknownEventTypeError(fmt.Sprintf("%T", ev))
	}
}
