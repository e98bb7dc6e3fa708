package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	for _, s := range []string{"CASE", "ACCOUNT_CREATION", "PASSWORD_RESET"} {
		et, err := ParseEventType(s)
		require.NoError(t, err)
		assert.Equal(t, EventType(s), et)
	}

	_, err := ParseEventType("INVOICE")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeUnknownEventType))
}

func TestDecodeEvent_NaturalKeys(t *testing.T) {
	tests := []struct {
		eventType EventType
		payload   string
		wantKey   string
	}{
		{EventCase, `{"caseId":"CS-42","customerId":"CU-1","subject":"Load upgrade"}`, "case:CS-42"},
		{EventAccountCreation, `{"accountId":"acc-9","name":"Acme","accountType":"SMB"}`, "account:acc-9"},
		{EventPasswordReset, `{"ticketId":"T-7","username":"jdoe","system":"sap"}`, "pwreset:sap:T-7"},
	}
	for _, tc := range tests {
		ev, err := DecodeEvent(tc.eventType, json.RawMessage(tc.payload))
		require.NoError(t, err)
		assert.Equal(t, tc.eventType, ev.Type())
		assert.Equal(t, tc.wantKey, ev.NaturalKey())
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	_, err := DecodeEvent("INVOICE", json.RawMessage(`{}`))
	assert.True(t, IsErrorCode(err, ErrCodeUnknownEventType))

	_, err = DecodeEvent(EventCase, json.RawMessage(`not json`))
	assert.Error(t, err)
}
