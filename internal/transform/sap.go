package transform

import "github.com/crossgrid/orchestrator/internal/domain"

// SAPLoadRequest is the XML document accepted by the SAP load-request
// endpoint. Field order is fixed by struct order, which keeps rendering
// deterministic.
type SAPLoadRequest struct {
	XMLName        struct{} `xml:"LoadRequest"`
	RequestID      string   `xml:"RequestID"`
	CustomerID     string   `xml:"CustomerID"`
	CurrentLoad    float64  `xml:"CurrentLoad"`
	RequestedLoad  float64  `xml:"RequestedLoad"`
	ConnectionType string   `xml:"ConnectionType"`
	City           string   `xml:"City"`
	PinCode        string   `xml:"PinCode"`
	CorrelationID  string   `xml:"CorrelationID"`
}

// SAPAccountRequest is the XML document for provisioning an account in SAP.
type SAPAccountRequest struct {
	XMLName       struct{} `xml:"AccountRequest"`
	RequestID     string   `xml:"RequestID"`
	AccountName   string   `xml:"AccountName"`
	AccountType   string   `xml:"AccountType"`
	Industry      string   `xml:"Industry,omitempty"`
	CorrelationID string   `xml:"CorrelationID"`
}

// SAPCredentialRequest is the XML document for a credential reset in SAP.
type SAPCredentialRequest struct {
	XMLName       struct{} `xml:"CredentialRequest"`
	RequestID     string   `xml:"RequestID"`
	UserID        string   `xml:"UserID"`
	System        string   `xml:"System"`
	Reason        string   `xml:"Reason,omitempty"`
	CorrelationID string   `xml:"CorrelationID"`
}

// CaseToSAP maps a support case onto the SAP load-request schema.
// serviceType has no SAP counterpart and is dropped intentionally.
func CaseToSAP(ev *domain.CaseEvent, correlationID string) SAPLoadRequest {
	return SAPLoadRequest{
		RequestID:      ev.CaseID,
		CustomerID:     ev.CustomerID,
		CurrentLoad:    ev.CurrentLoadKW,
		RequestedLoad:  ev.RequestedLoadKW,
		ConnectionType: ev.PropertyType,
		City:           ev.Address.City,
		PinCode:        ev.Address.PinCode,
		CorrelationID:  correlationID,
	}
}

func AccountCreationToSAP(ev *domain.AccountCreationEvent, correlationID string) SAPAccountRequest {
	return SAPAccountRequest{
		RequestID:     ev.AccountID,
		AccountName:   ev.Name,
		AccountType:   ev.AccountType,
		Industry:      ev.Industry,
		CorrelationID: correlationID,
	}
}

func PasswordResetToSAP(ev *domain.PasswordResetEvent, correlationID string) SAPCredentialRequest {
	return SAPCredentialRequest{
		RequestID:     ev.TicketID,
		UserID:        ev.Username,
		System:        ev.System,
		Reason:        ev.Reason,
		CorrelationID: correlationID,
	}
}
