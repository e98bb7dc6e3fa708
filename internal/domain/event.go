package domain

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the canonical event union.
type EventType string

const (
	EventCase            EventType = "CASE"
	EventAccountCreation EventType = "ACCOUNT_CREATION"
	EventPasswordReset   EventType = "PASSWORD_RESET"
)

// ParseEventType converts a wire string into an EventType.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventCase, EventAccountCreation, EventPasswordReset:
		return EventType(s), nil
	default:
		return "", NewUnknownEventTypeError(s)
	}
}

// Event is the canonical, normalized form of an inbound business event,
// independent of source-system field names. Transform functions pattern-match
// on the concrete type.
type Event interface {
	Type() EventType
	// NaturalKey identifies the originating business object; duplicate
	// detection rejects a second non-terminal request with the same key.
	NaturalKey() string
}

// Address is the service address attached to a support case.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city"`
	PinCode string `json:"pinCode"`
}

// CaseEvent is a support case raised in the source system, e.g. a load
// enhancement request routed to SAP.
type CaseEvent struct {
	CaseID          string  `json:"caseId"`
	CustomerID      string  `json:"customerId"`
	Subject         string  `json:"subject"`
	Description     string  `json:"description,omitempty"`
	Priority        string  `json:"priority,omitempty"`
	ServiceType     string  `json:"serviceType,omitempty"`
	CurrentLoadKW   float64 `json:"currentLoadKW,omitempty"`
	RequestedLoadKW float64 `json:"requestedLoadKW,omitempty"`
	PropertyType    string  `json:"propertyType,omitempty"`
	Address         Address `json:"address"`
}

func (e *CaseEvent) Type() EventType    { return EventCase }
func (e *CaseEvent) NaturalKey() string { return "case:" + e.CaseID }

// AccountCreationEvent is a request to provision a new account downstream.
type AccountCreationEvent struct {
	AccountID   string `json:"accountId"`
	Name        string `json:"name"`
	AccountType string `json:"accountType"`
	Industry    string `json:"industry,omitempty"`
	OwnerEmail  string `json:"ownerEmail,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

func (e *AccountCreationEvent) Type() EventType    { return EventAccountCreation }
func (e *AccountCreationEvent) NaturalKey() string { return "account:" + e.AccountID }

// PasswordResetEvent is a credential-reset ticket raised against a target
// system on behalf of a user.
type PasswordResetEvent struct {
	TicketID string `json:"ticketId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	System   string `json:"system"`
	Reason   string `json:"reason,omitempty"`
}

func (e *PasswordResetEvent) Type() EventType { return EventPasswordReset }
func (e *PasswordResetEvent) NaturalKey() string {
	return "pwreset:" + e.System + ":" + e.TicketID
}

// DecodeEvent parses a canonical source payload into its typed variant.
func DecodeEvent(eventType EventType, payload json.RawMessage) (Event, error) {
	var ev Event
	switch eventType {
	case EventCase:
		ev = &CaseEvent{}
	case EventAccountCreation:
		ev = &AccountCreationEvent{}
	case EventPasswordReset:
		ev = &PasswordResetEvent{}
	default:
		return nil, NewUnknownEventTypeError(string(eventType))
	}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return ev, nil
}
