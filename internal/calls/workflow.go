// Package calls runs the confirmation call workflow: placing the call,
// answering it with a script and deciding the order from the keypress.
package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/audit"
	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/metrics"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/phone"
	"github.com/Andres1439/verify-cod-orders/internal/ratelimit"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
)

// Commerce applies call outcomes to the commerce order.
type Commerce interface {
	TagOrder(ctx context.Context, o orders.Order, tag string) error
	NoteOrder(ctx context.Context, o orders.Order, note string) error
}

// Recorder appends audit events.
type Recorder interface {
	Record(ctx context.Context, e audit.Event, meta map[string]any) error
}

type Options struct {
	// PublicURL is the base of every callback URL handed to the provider.
	PublicURL string

	MaxOrderAge    time.Duration
	RingingTimer   time.Duration
	LengthTimer    time.Duration
	DefaultCountry string

	// LockTTL bounds how long one initiate holds the per-order lock.
	LockTTL time.Duration
	// CommerceTimeout bounds tag and note writes after a decision.
	CommerceTimeout time.Duration
}

func (o *Options) defaults() {
	if o.MaxOrderAge <= 0 {
		o.MaxOrderAge = 24 * time.Hour
	}
	if o.RingingTimer <= 0 {
		o.RingingTimer = 30 * time.Second
	}
	if o.LengthTimer <= 0 {
		o.LengthTimer = 300 * time.Second
	}
	if o.DefaultCountry == "" {
		o.DefaultCountry = "PE"
	}
	if o.LockTTL <= 0 {
		o.LockTTL = time.Minute
	}
	if o.CommerceTimeout <= 0 {
		o.CommerceTimeout = 10 * time.Second
	}
}

// Deps are the collaborators of the workflow. Locker, Commerce and Audit
// are optional.
type Deps struct {
	Store    orders.Store
	Gateway  telephony.Gateway
	Commerce Commerce
	Locker   ratelimit.Locker
	Audit    Recorder
	Log      *slog.Logger
}

type Workflow struct {
	store    orders.Store
	gateway  telephony.Gateway
	commerce Commerce
	locker   ratelimit.Locker
	audit    Recorder
	log      *slog.Logger
	opts     Options

	Now func() time.Time
}

func NewWorkflow(d Deps, opts Options) *Workflow {
	opts.defaults()
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{
		store:    d.Store,
		gateway:  d.Gateway,
		commerce: d.Commerce,
		locker:   d.Locker,
		audit:    d.Audit,
		log:      log.With("component", "calls"),
		opts:     opts,
		Now:      time.Now,
	}
}

// Initiate places the confirmation call for one order.
//
// Errors:
//   - orders.ErrInvalidInput: empty id or unusable phone
//   - orders.ErrNotFound: missing or no longer eligible
//   - orders.ErrStaleOrder: older than MaxOrderAge; the order is expired
//   - orders.ErrConflict: another initiate holds the order or won the update
//   - telephony.ErrInvalidNumber: the provider rejected the destination
//   - *telephony.ProviderError: any other provider failure
func (w *Workflow) Initiate(ctx context.Context, orderID string) (InitiateResult, error) {
	if orderID == "" {
		return InitiateResult{}, fmt.Errorf("%w: order id is required", orders.ErrInvalidInput)
	}
	log := w.log.With("order_id", orderID)

	o, err := w.store.Get(ctx, orderID)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("load order: %w", err)
	}
	if o.Status != orders.StatusPendingCall || o.CallStatus.Failed() {
		return InitiateResult{}, fmt.Errorf("%w: order %s is %s", orders.ErrNotFound, o.ID, o.State())
	}

	now := w.Now().UTC()
	if o.Age(now) > w.opts.MaxOrderAge {
		w.expire(ctx, o, now)
		metrics.CallInitiated("too_old")
		return InitiateResult{}, fmt.Errorf("%w: created %s", orders.ErrStaleOrder, o.CreatedAt.Format(time.RFC3339))
	}

	country := o.ShippingAddress.Country
	if country == "" {
		country = o.CountryCode
	}
	if country == "" {
		country = w.opts.DefaultCountry
	}
	to, err := phone.Format(o.CustomerPhone, country)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("%w: %v", orders.ErrInvalidInput, err)
	}

	if w.locker != nil {
		key := "cod:initiate:" + o.ID
		ok, err := w.locker.Acquire(ctx, key, w.opts.LockTTL)
		switch {
		case err != nil:
			log.WarnContext(ctx, "initiate lock unavailable", "err", err)
		case !ok:
			return InitiateResult{}, fmt.Errorf("%w: call already being placed", orders.ErrConflict)
		default:
			defer func() {
				if err := w.locker.Release(context.WithoutCancel(ctx), key); err != nil {
					log.WarnContext(ctx, "initiate lock release failed", "err", err)
				}
			}()
		}
	}

	res, err := w.gateway.PlaceCall(ctx, telephony.CallRequest{
		OrderID:      o.ID,
		To:           to,
		AnswerURL:    w.answerURL(o.ID, false),
		EventURL:     w.opts.PublicURL + "/api/vonage-events",
		FallbackURL:  w.answerURL(o.ID, true),
		RingingTimer: w.opts.RingingTimer,
		LengthTimer:  w.opts.LengthTimer,
	})
	if errors.Is(err, telephony.ErrInvalidNumber) {
		w.markInvalidNumber(ctx, o, err)
		metrics.CallInitiated("invalid_number")
		return InitiateResult{}, err
	}
	if err != nil {
		log.ErrorContext(ctx, "place call failed", "err", err)
		metrics.CallInitiated("provider_error")
		return InitiateResult{}, err
	}

	_, err = w.store.Apply(ctx, o.ID, orders.TransitionCallPlaced, orders.Changes{
		CallUUID:       orders.Ptr(res.CallUUID),
		RetryCount:     orders.Ptr(0),
		AddCallAttempt: true,
		CallStartedAt:  orders.Ptr(now),
		UpdatedAt:      now,
	})
	if err != nil {
		// The provider already dialed; its events resolve nothing until the
		// row carries this call uuid.
		log.ErrorContext(ctx, "record placed call failed", "call_uuid", res.CallUUID, "err", err)
		metrics.CallInitiated("conflict")
		return InitiateResult{}, fmt.Errorf("record call %s: %w", res.CallUUID, err)
	}

	log.InfoContext(ctx, "call placed", "call_uuid", res.CallUUID, "status", res.Status)
	metrics.CallInitiated("placed")
	w.record(ctx, audit.Event{
		ShopDomain: o.ShopDomain,
		OrderID:    o.ID,
		CallUUID:   res.CallUUID,
		Type:       audit.EventTypeCallInitiated,
		Message:    "call placed",
	}, map[string]any{"phone": to, "provider": w.gateway.Name(), "attempt": o.CallAttempts + 1})

	return InitiateResult{
		CallUUID:         res.CallUUID,
		OrderID:          o.ID,
		Phone:            to,
		Status:           res.Status,
		ConversationUUID: res.ConversationUUID,
	}, nil
}

// Pending lists orders waiting for a call, oldest first. Orders past
// MaxOrderAge are expired on the way and left out.
func (w *Workflow) Pending(ctx context.Context, limit int) ([]PendingOrder, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	list, err := w.store.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	now := w.Now().UTC()
	out := make([]PendingOrder, 0, len(list))
	for _, o := range list {
		if o.Age(now) > w.opts.MaxOrderAge {
			w.expire(ctx, o, now)
			continue
		}
		out = append(out, newPendingOrder(o, now))
	}
	return out, nil
}

func (w *Workflow) expire(ctx context.Context, o orders.Order, now time.Time) {
	_, err := w.store.Apply(ctx, o.ID, orders.TransitionTooOld, orders.Changes{
		ExpiresAt: orders.Ptr(now),
		UpdatedAt: now,
	})
	if err != nil && !errors.Is(err, orders.ErrConflict) {
		w.log.WarnContext(ctx, "expire order failed", "order_id", o.ID, "err", err)
		return
	}
	w.log.InfoContext(ctx, "order expired", "order_id", o.ID, "age", o.Age(now).String())
}

func (w *Workflow) markInvalidNumber(ctx context.Context, o orders.Order, cause error) {
	log := w.log.With("order_id", o.ID)
	now := w.Now().UTC()

	updated, err := w.store.Apply(ctx, o.ID, orders.TransitionInvalidNumber, orders.Changes{
		LastEventAt: orders.Ptr(now),
		UpdatedAt:   now,
	})
	if err != nil {
		log.WarnContext(ctx, "mark invalid number failed", "err", err)
		return
	}
	log.InfoContext(ctx, "invalid number", "err", cause)

	w.applyCommerce(ctx, updated, commerce.TagNoAnswer, "")
	w.record(ctx, audit.Event{
		ShopDomain: o.ShopDomain,
		OrderID:    o.ID,
		Type:       audit.EventTypeCallOutcome,
		Message:    "invalid_number",
	}, map[string]any{"error": cause.Error()})
}

func (w *Workflow) answerURL(orderID string, fallback bool) string {
	u := w.opts.PublicURL + "/api/vonage-answer?orderId=" + url.QueryEscape(orderID)
	if fallback {
		u += "&fallback=true"
	}
	return u
}

func (w *Workflow) dtmfURL(callUUID, orderID string, retry bool) string {
	q := url.Values{}
	q.Set("call_uuid", callUUID)
	q.Set("order_id", orderID)
	if retry {
		q.Set("retry", "true")
	}
	return w.opts.PublicURL + "/api/vonage-dtmf?" + q.Encode()
}

func (w *Workflow) record(ctx context.Context, e audit.Event, meta map[string]any) {
	if w.audit == nil {
		return
	}
	if err := w.audit.Record(ctx, e, meta); err != nil {
		w.log.WarnContext(ctx, "audit append failed", "order_id", e.OrderID, "err", err)
	}
}
