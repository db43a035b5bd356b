package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/audit"
	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/metrics"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"

	"golang.org/x/sync/errgroup"
)

// DTMF decides the order from the customer's keypress and returns the next
// script. The retry budget comes from the stored order; the request's retry
// flag is only compared against it.
//
// Decisions are guarded updates by call uuid, so a duplicate delivery finds
// the order already decided and replays its script without side effects.
func (w *Workflow) DTMF(ctx context.Context, req telephony.DTMFRequest) telephony.NCCO {
	if req.CallUUID == "" {
		w.log.WarnContext(ctx, "dtmf without call uuid", "order_id", req.OrderID)
		return thanksScript()
	}
	log := w.log.With("call_uuid", req.CallUUID)

	o, err := w.store.GetByCallUUID(ctx, req.CallUUID)
	if errors.Is(err, orders.ErrNotFound) {
		// Test calls and stale legs: answer, change nothing.
		retries := 0
		if req.Retry {
			retries = 1
		}
		out := classify(req.Digits, retries)
		log.InfoContext(ctx, "dtmf for unknown call", "order_id", req.OrderID, "outcome", out)
		if out == OutcomeReprompt {
			return repromptScript(w.dtmfURL(req.CallUUID, req.OrderID, true))
		}
		return outcomeScript(out)
	}
	if err != nil {
		log.ErrorContext(ctx, "dtmf: load order failed", "err", err)
		return thanksScript()
	}
	log = log.With("order_id", o.ID)

	if o.Status != orders.StatusPendingCall {
		log.InfoContext(ctx, "dtmf for decided order", "status", o.Status)
		return w.replay(o)
	}
	if req.Retry != (o.RetryCount > 0) {
		log.DebugContext(ctx, "retry flag disagrees with stored count", "flag", req.Retry, "retry_count", o.RetryCount)
	}

	out := classify(req.Digits, o.RetryCount)
	now := w.Now().UTC()
	ch := orders.Changes{DTMFResponse: orders.Ptr(req.Digits), UpdatedAt: now}

	var t orders.Transition
	switch out {
	case OutcomeConfirmed:
		t = orders.TransitionConfirm
		ch.ConfirmedAt = orders.Ptr(now)
	case OutcomeDeclined:
		t = orders.TransitionDecline
		ch.DeclinedAt = orders.Ptr(now)
	case OutcomeReprompt:
		t = orders.TransitionReprompt
		ch.RetryCount = orders.Ptr(1)
		ch.IfRetryCount = orders.Ptr(0)
	default:
		t = orders.TransitionNoResponse
	}

	n, err := w.store.ApplyByCallUUID(ctx, req.CallUUID, t, ch)
	if err != nil {
		log.ErrorContext(ctx, "dtmf: update failed", "outcome", out, "err", err)
		return thanksScript()
	}
	if n == 0 {
		cur, err := w.store.GetByCallUUID(ctx, req.CallUUID)
		if err != nil {
			log.ErrorContext(ctx, "dtmf: reload failed", "err", err)
			return thanksScript()
		}
		log.InfoContext(ctx, "dtmf lost the race, replaying", "status", cur.Status)
		return w.replay(cur)
	}

	log.InfoContext(ctx, "dtmf decided", "outcome", out, "digits", req.Digits)
	metrics.DTMFOutcome(string(out))

	switch out {
	case OutcomeConfirmed:
		w.applyCommerce(ctx, o, commerce.TagConfirmed, commerce.NoteConfirmed)
	case OutcomeDeclined:
		w.applyCommerce(ctx, o, commerce.TagDeclined, "")
	case OutcomeNoResponse:
		w.applyCommerce(ctx, o, commerce.TagNoResponse, "")
	}
	if out != OutcomeReprompt {
		w.record(ctx, audit.Event{
			ShopDomain: o.ShopDomain,
			OrderID:    o.ID,
			CallUUID:   req.CallUUID,
			Type:       audit.EventTypeCallOutcome,
			Actor:      audit.ActorProvider,
			Message:    string(out),
		}, map[string]any{"digits": req.Digits, "retry_count": o.RetryCount})
	}

	if out == OutcomeReprompt {
		return repromptScript(w.dtmfURL(req.CallUUID, o.ID, true))
	}
	return outcomeScript(out)
}

// replay returns the script matching what was already recorded.
func (w *Workflow) replay(o orders.Order) telephony.NCCO {
	switch o.Status {
	case orders.StatusConfirmed:
		return outcomeScript(OutcomeConfirmed)
	case orders.StatusDeclined:
		return outcomeScript(OutcomeDeclined)
	case orders.StatusNoAnswer, orders.StatusExpired:
		return outcomeScript(OutcomeNoResponse)
	case orders.StatusPendingCall:
		if o.RetryCount > 0 && !o.CallStatus.Failed() {
			return repromptScript(w.dtmfURL(o.CallUUID, o.ID, true))
		}
	}
	return thanksScript()
}

// applyCommerce writes the tag and, when set, the note. Failures are logged;
// the local decision stands either way.
func (w *Workflow) applyCommerce(ctx context.Context, o orders.Order, tag, note string) {
	if w.commerce == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.CommerceTimeout)
	defer cancel()

	log := w.log.With("order_id", o.ID, "shop", o.ShopDomain)
	start := time.Now()

	var g errgroup.Group
	g.Go(func() error {
		if err := w.commerce.TagOrder(ctx, o, tag); err != nil {
			logCommerceErr(ctx, log, "tag order failed", err)
		}
		return nil
	})
	if note != "" {
		g.Go(func() error {
			if err := w.commerce.NoteOrder(ctx, o, note); err != nil {
				logCommerceErr(ctx, log, "note order failed", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	log.DebugContext(ctx, "commerce updated", "tag", tag, "took", time.Since(start).String())
}

func logCommerceErr(ctx context.Context, log *slog.Logger, msg string, err error) {
	if errors.Is(err, commerce.ErrNoCommerceOrder) {
		log.DebugContext(ctx, msg, "err", err)
		return
	}
	log.WarnContext(ctx, msg, "err", err)
}
