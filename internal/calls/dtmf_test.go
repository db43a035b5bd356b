package calls

import (
	"context"
	"sync"
	"testing"

	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCalling(t *testing.T, h *harness) {
	t.Helper()
	o := sampleOrder()
	o.CallUUID = "call-1"
	o.CallStatus = orders.CallStatusPending
	o.CallAttempts = 1
	h.seed(t, o)
}

func dtmf(h *harness, digits string, retry bool) telephony.NCCO {
	return h.wf.DTMF(context.Background(), telephony.DTMFRequest{CallUUID: "call-1", OrderID: testOrderID, Digits: digits, Retry: retry})
}

func TestDTMF_Confirm(t *testing.T) {
	h := newHarness(t)
	seedCalling(t, h)

	ncco := dtmf(h, "1", false)
	require.Len(t, ncco, 1)
	assert.Equal(t, textConfirmed, ncco[0].Text)
	require.NotNil(t, ncco[0].BargeIn)
	assert.False(t, *ncco[0].BargeIn)

	o := h.get(t, testOrderID)
	assert.Equal(t, orders.State{Status: orders.StatusConfirmed, CallStatus: orders.CallStatusCompleted}, o.State())
	assert.Equal(t, "1", o.DTMFResponse)
	require.NotNil(t, o.ConfirmedAt)

	tags, notes := h.commerce.snapshot()
	assert.Equal(t, []string{commerce.TagConfirmed}, tags)
	assert.Equal(t, []string{commerce.NoteConfirmed}, notes)
}

func TestDTMF_Decline(t *testing.T) {
	h := newHarness(t)
	seedCalling(t, h)

	ncco := dtmf(h, "2", false)
	assert.Equal(t, textDeclined, ncco[0].Text)

	o := h.get(t, testOrderID)
	assert.Equal(t, orders.State{Status: orders.StatusDeclined, CallStatus: orders.CallStatusCompleted}, o.State())
	require.NotNil(t, o.DeclinedAt)

	tags, notes := h.commerce.snapshot()
	assert.Equal(t, []string{commerce.TagDeclined}, tags)
	assert.Empty(t, notes)
}

func TestDTMF_RetryOnceThenNoResponse(t *testing.T) {
	h := newHarness(t)
	seedCalling(t, h)

	ncco := dtmf(h, "7", false)
	require.Len(t, ncco, 2)
	assert.Equal(t, textReprompt, ncco[0].Text)
	assert.Equal(t, []string{"https://cod.example.com/api/vonage-dtmf?call_uuid=call-1&order_id=" + testOrderID + "&retry=true"}, ncco[1].EventURL)

	o := h.get(t, testOrderID)
	assert.Equal(t, 1, o.RetryCount)
	assert.Equal(t, orders.StatusPendingCall, o.Status)

	ncco = dtmf(h, "", true)
	require.Len(t, ncco, 1)
	assert.Equal(t, textNoResponse, ncco[0].Text)

	o = h.get(t, testOrderID)
	assert.Equal(t, orders.State{Status: orders.StatusNoAnswer, CallStatus: orders.CallStatusFailed}, o.State())

	tags, _ := h.commerce.snapshot()
	assert.Equal(t, []string{commerce.TagNoResponse}, tags)
}

func TestDTMF_StoredRetryCountWinsOverFlag(t *testing.T) {
	h := newHarness(t)
	seedCalling(t, h)

	// A forged retry flag must not skip the second chance.
	ncco := dtmf(h, "5", true)
	require.Len(t, ncco, 2)
	assert.Equal(t, textReprompt, ncco[0].Text)
	assert.Equal(t, orders.StatusPendingCall, h.get(t, testOrderID).Status)
}

func TestDTMF_ReplayHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	seedCalling(t, h)

	dtmf(h, "1", false)
	ncco := dtmf(h, "2", false)
	assert.Equal(t, textConfirmed, ncco[0].Text)

	o := h.get(t, testOrderID)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	tags, notes := h.commerce.snapshot()
	assert.Len(t, tags, 1)
	assert.Len(t, notes, 1)
}

func TestDTMF_ConcurrentDeliveriesDecideOnce(t *testing.T) {
	h := newHarness(t)
	seedCalling(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ncco := dtmf(h, "1", false)
			assert.Equal(t, textConfirmed, ncco[0].Text)
		}()
	}
	wg.Wait()

	tags, _ := h.commerce.snapshot()
	assert.Len(t, tags, 1)
}

func TestDTMF_MissingOrUnknownCall(t *testing.T) {
	h := newHarness(t)

	ncco := h.wf.DTMF(context.Background(), telephony.DTMFRequest{Digits: "1"})
	require.Len(t, ncco, 1)
	assert.Equal(t, textThanks, ncco[0].Text)

	ncco = h.wf.DTMF(context.Background(), telephony.DTMFRequest{CallUUID: "ghost", OrderID: "test", Digits: "1"})
	assert.Equal(t, textConfirmed, ncco[0].Text)

	ncco = h.wf.DTMF(context.Background(), telephony.DTMFRequest{CallUUID: "ghost", OrderID: "test", Digits: "9"})
	require.Len(t, ncco, 2)
	assert.Contains(t, ncco[1].EventURL[0], "retry=true")

	ncco = h.wf.DTMF(context.Background(), telephony.DTMFRequest{CallUUID: "ghost", OrderID: "test", Digits: "9", Retry: true})
	assert.Equal(t, textNoResponse, ncco[0].Text)

	tags, _ := h.commerce.snapshot()
	assert.Empty(t, tags)
}
