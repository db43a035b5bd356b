package calls

import (
	"context"
	"regexp"

	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
)

var orderIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Answer builds the script played when the customer picks up. It never
// fails: problems fall back to a generic prompt.
func (w *Workflow) Answer(ctx context.Context, req telephony.AnswerRequest) telephony.NCCO {
	if req.Fallback {
		w.log.WarnContext(ctx, "fallback answer requested", "order_id", req.OrderID, "call_uuid", req.CallUUID)
		return fallbackScript()
	}

	if !orderIDPattern.MatchString(req.OrderID) {
		w.log.InfoContext(ctx, "answering test call", "order_id", req.OrderID, "call_uuid", req.CallUUID)
		return answerScript(testOrder(req.OrderID), w.dtmfURL(req.CallUUID, req.OrderID, false))
	}

	log := w.log.With("order_id", req.OrderID)
	o, err := w.store.Get(ctx, req.OrderID)
	if err != nil {
		log.WarnContext(ctx, "answer: load order failed", "err", err)
		return answerErrorScript()
	}
	if o.Status != orders.StatusPendingCall {
		log.WarnContext(ctx, "answer: order not pending", "status", o.Status)
		return answerErrorScript()
	}

	callUUID := req.CallUUID
	if callUUID == "" {
		callUUID = o.CallUUID
	}
	log.InfoContext(ctx, "answering call", "call_uuid", callUUID)
	return answerScript(o, w.dtmfURL(callUUID, o.ID, false))
}
