package dispatch

import (
	"context"
	"fmt"
	"net/http"
)

// SAPLoadResponse is the XML body returned by the SAP load-request endpoint.
// Older gateways report the identifier as sap_ticket_id instead of
// SAPOrderID; OrderID() folds the two together.
type SAPLoadResponse struct {
	SAPOrderID  string `xml:"SAPOrderID"`
	SAPTicketID string `xml:"sap_ticket_id"`
	Status      string `xml:"Status"`
	Message     string `xml:"Message"`
}

func (r *SAPLoadResponse) OrderID() string {
	if r.SAPOrderID != "" {
		return r.SAPOrderID
	}
	return r.SAPTicketID
}

// SAPClient submits transformed XML documents to the SAP-style endpoint.
type SAPClient interface {
	SubmitLoadRequest(ctx context.Context, body []byte, correlationID string) (*SAPLoadResponse, error)
}

type HTTPSAPClient struct {
	cfg        TargetConfig
	httpClient *http.Client
}

func NewSAPClient(cfg TargetConfig, httpClient *http.Client) *HTTPSAPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPSAPClient{cfg: cfg, httpClient: httpClient}
}

func (c *HTTPSAPClient) SubmitLoadRequest(ctx context.Context, body []byte, correlationID string) (*SAPLoadResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	url := fmt.Sprintf("%s/integration/mulesoft/load-request/xml", c.cfg.BaseURL)
	var resp SAPLoadResponse
	if err := send(ctx, c.httpClient, "sap", http.MethodPost, url, "application/xml", body, correlationID, decodeXML, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
