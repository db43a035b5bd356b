package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDTMF_JSONObject(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/vonage-dtmf?call_uuid=leg-1&order_id=o1&retry=true",
		strings.NewReader(`{"dtmf":{"digits":"2","timed_out":false},"uuid":"ignored"}`))
	r.Header.Set("Content-Type", "application/json")

	req, err := ParseDTMF(r)
	require.NoError(t, err)
	assert.Equal(t, "leg-1", req.CallUUID)
	assert.Equal(t, "o1", req.OrderID)
	assert.Equal(t, "2", req.Digits)
	assert.True(t, req.Retry)
}

func TestParseDTMF_StringAndBodyCorrelation(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/vonage-dtmf", strings.NewReader(`{"dtmf":"1","call_uuid":"leg-9"}`))
	r.Header.Set("Content-Type", "application/json")

	req, err := ParseDTMF(r)
	require.NoError(t, err)
	assert.Equal(t, "leg-9", req.CallUUID)
	assert.Equal(t, "1", req.Digits)
	assert.False(t, req.Retry)
}

func TestParseDTMF_TimedOut(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/vonage-dtmf?call_uuid=leg-1",
		strings.NewReader(`{"dtmf":{"digits":"","timed_out":true}}`))
	req, err := ParseDTMF(r)
	require.NoError(t, err)
	assert.Empty(t, req.Digits)
	assert.True(t, req.TimedOut)
}

func TestParseDTMF_GetAndForm(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/vonage-dtmf?call_uuid=leg-1&dtmf=1", nil)
	req, err := ParseDTMF(r)
	require.NoError(t, err)
	assert.Equal(t, "1", req.Digits)

	r = httptest.NewRequest(http.MethodPost, "/api/vonage-dtmf?call_uuid=leg-1", strings.NewReader("dtmf=2"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, err = ParseDTMF(r)
	require.NoError(t, err)
	assert.Equal(t, "2", req.Digits)
}

func TestParseDTMF_MalformedBodyKeepsQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/vonage-dtmf?call_uuid=leg-1&dtmf=1", strings.NewReader(`{`))
	req, err := ParseDTMF(r)
	assert.Error(t, err)
	assert.Equal(t, "leg-1", req.CallUUID)
	assert.Equal(t, "1", req.Digits)
}

func TestParseAnswer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/vonage-answer?orderId=o1&uuid=leg-1&fallback=true", nil)
	req, err := ParseAnswer(r)
	require.NoError(t, err)
	assert.Equal(t, AnswerRequest{OrderID: "o1", CallUUID: "leg-1", Fallback: true}, req)

	r = httptest.NewRequest(http.MethodPost, "/api/vonage-answer?orderId=o2", strings.NewReader(`{"uuid":"leg-2"}`))
	req, err = ParseAnswer(r)
	require.NoError(t, err)
	assert.Equal(t, "o2", req.OrderID)
	assert.Equal(t, "leg-2", req.CallUUID)
	assert.False(t, req.Fallback)
}

func TestParseEvent(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/vonage-events",
		strings.NewReader(`{"status":" Busy ","uuid":"leg-1","timestamp":"2026-03-01T12:00:00.000Z"}`))
	ev, err := ParseEvent(r)
	require.NoError(t, err)
	assert.Equal(t, "busy", ev.Status)
	assert.Equal(t, "leg-1", ev.UUID)
}

func TestNCCO(t *testing.T) {
	final := FinalTalk("bye")
	require.NotNil(t, final.Style)
	require.NotNil(t, final.BargeIn)
	assert.Equal(t, 0, *final.Style)
	assert.False(t, *final.BargeIn)

	n := NCCO{Talk("hola"), Input("https://app/api/vonage-dtmf?call_uuid=x")}
	assert.True(t, n.CollectsInput())
	assert.Equal(t, 1, n[1].MaxDigit)
	assert.Equal(t, InputTimeoutSeconds, n[1].TimeOut)
	assert.False(t, NCCO{final}.CollectsInput())
}
