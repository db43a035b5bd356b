// Package events applies provider call lifecycle callbacks to orders.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/metrics"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
)

// Response messages returned to the provider.
const (
	MessageMissingData = "Event ignored - missing data"
	MessageUnknown     = "Unknown status ignored"
	MessageProcessed   = "Event processed"
	MessageReceived    = "Event received"
)

// ErrMissingData is returned for events without status or uuid.
var ErrMissingData = errors.New("events: missing status or uuid")

// ErrUnknownStatus is returned for statuses outside the mapping.
var ErrUnknownStatus = errors.New("events: unknown status")

type kind int

const (
	kindProgress kind = iota + 1
	kindCompleted
	kindFailed
)

var statusKinds = map[string]kind{
	"started":  kindProgress,
	"ringing":  kindProgress,
	"answered": kindProgress,

	"completed": kindCompleted,

	"failed":             kindFailed,
	"timeout":            kindFailed,
	"unanswered":         kindFailed,
	"busy":               kindFailed,
	"cancelled":          kindFailed,
	"rejected":           kindFailed,
	"invalid_number":     kindFailed,
	"unallocated_number": kindFailed,
}

func (k kind) transition() orders.Transition {
	switch k {
	case kindProgress:
		return orders.TransitionLegInProgress
	case kindCompleted:
		return orders.TransitionLegCompleted
	default:
		return orders.TransitionLegFailed
	}
}

// Tagger writes the no-answer tag for failed legs.
type Tagger interface {
	TagOrder(ctx context.Context, o orders.Order, tag string) error
}

// Result describes what an event did.
type Result struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
	Updated int64  `json:"updated"`
}

type Ingestor struct {
	store  orders.Store
	tagger Tagger
	log    *slog.Logger

	Now func() time.Time
}

func NewIngestor(store orders.Store, tagger Tagger, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: store, tagger: tagger, log: log.With("component", "events"), Now: time.Now}
}

// Ingest maps the event to a guarded update by call uuid. Matching no row
// is normal: the leg may belong to a test call, an older attempt, or an
// order already decided.
func (in *Ingestor) Ingest(ctx context.Context, ev telephony.Event) (Result, error) {
	if ev.Status == "" || ev.UUID == "" {
		metrics.CallEvent("missing", false)
		return Result{Message: MessageMissingData}, ErrMissingData
	}
	log := in.log.With("call_uuid", ev.UUID, "status", ev.Status)

	k, ok := statusKinds[ev.Status]
	if !ok {
		metrics.CallEvent(ev.Status, false)
		log.InfoContext(ctx, "unknown call status")
		return Result{Message: MessageUnknown, Status: ev.Status}, ErrUnknownStatus
	}
	metrics.CallEvent(ev.Status, true)

	now := in.Now().UTC()
	n, err := in.store.ApplyByCallUUID(ctx, ev.UUID, k.transition(), orders.Changes{
		LastEventAt: orders.Ptr(now),
		UpdatedAt:   now,
	})
	if err != nil {
		return Result{Message: MessageReceived, Status: ev.Status}, fmt.Errorf("apply %s: %w", ev.Status, err)
	}
	log.InfoContext(ctx, "call event applied", "rows", n, "reason", ev.Reason)

	if k == kindFailed && n > 0 {
		in.tagNoAnswer(ctx, ev.UUID)
	}
	return Result{Message: MessageProcessed, Status: ev.Status, Updated: n}, nil
}

func (in *Ingestor) tagNoAnswer(ctx context.Context, callUUID string) {
	if in.tagger == nil {
		return
	}
	o, err := in.store.GetByCallUUID(ctx, callUUID)
	if err != nil {
		in.log.WarnContext(ctx, "reload for tag failed", "call_uuid", callUUID, "err", err)
		return
	}
	if err := in.tagger.TagOrder(ctx, o, commerce.TagNoAnswer); err != nil && !errors.Is(err, commerce.ErrNoCommerceOrder) {
		in.log.WarnContext(ctx, "tag no-answer failed", "order_id", o.ID, "err", err)
	}
}
