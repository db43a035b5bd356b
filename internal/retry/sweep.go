// Package retry re-surfaces orders whose call leg failed so an external
// actor can call them again, and closes them out when it gives up.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
	_ "time/tzdata"

	"github.com/Andres1439/verify-cod-orders/internal/audit"
	"github.com/Andres1439/verify-cod-orders/internal/metrics"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
)

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultHoursAgo = 2

	DefaultTimezone = "America/Lima"

	retryInterval = 2 * time.Hour
)

// Action names accepted by Act.
type Action string

const (
	ActionRetryAttempted Action = "retry_attempted"
	ActionMarkExpired    Action = "mark_expired"
)

var ErrUnknownAction = errors.New("retry: unknown action")

type Options struct {
	// Ceiling excludes orders created before now-Ceiling.
	Ceiling time.Duration
	// Cooldown is the idle window used when a query omits HoursAgo.
	Cooldown time.Duration
	// DefaultTimezone judges calling hours for orders without a shop zone.
	DefaultTimezone string
	// CallingHours bounds the local hour. Nil means 09..20.
	CallingHours *Hours
}

// Hours is an inclusive range of local hours.
type Hours struct {
	From int
	To   int
}

func (o *Options) defaults() {
	if o.Ceiling <= 0 {
		o.Ceiling = 48 * time.Hour
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultHoursAgo * time.Hour
	}
	if o.DefaultTimezone == "" {
		o.DefaultTimezone = DefaultTimezone
	}
	if o.CallingHours == nil {
		o.CallingHours = &Hours{From: 9, To: 20}
	}
}

type Query struct {
	Limit    int
	HoursAgo int
}

// Candidate is one order eligible for another call.
type Candidate struct {
	ID                   string            `json:"id"`
	InternalOrderNumber  string            `json:"internal_order_number"`
	Phone                string            `json:"phone"`
	Name                 string            `json:"name,omitempty"`
	ShopDomain           string            `json:"shop_domain"`
	CallStatus           orders.CallStatus `json:"call_status"`
	Status               orders.Status     `json:"status"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	CallStartedAt        *time.Time        `json:"call_started_at,omitempty"`
	EstimatedRetries     int               `json:"estimated_retries"`
	HoursSinceLastUpdate float64           `json:"hours_since_last_update"`
	ShopTimezone         string            `json:"shop_timezone"`
}

type Candidates struct {
	Success   bool        `json:"success"`
	Count     int         `json:"count"`
	Orders    []Candidate `json:"orders"`
	Timestamp time.Time   `json:"timestamp"`
}

type ActionResult struct {
	Success   bool      `json:"success"`
	OrderID   string    `json:"order_id"`
	Action    Action    `json:"action"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Sweep struct {
	store orders.Store
	audit *audit.Service
	log   *slog.Logger
	opts  Options

	Now func() time.Time
}

func NewSweep(store orders.Store, auditSvc *audit.Service, log *slog.Logger, opts Options) *Sweep {
	opts.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Sweep{store: store, audit: auditSvc, log: log.With("component", "retry"), opts: opts, Now: time.Now}
}

// Candidates lists failed legs idle for at least HoursAgo whose shop is
// currently inside calling hours.
func (s *Sweep) Candidates(ctx context.Context, q Query) (Candidates, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	idle := time.Duration(q.HoursAgo) * time.Hour
	if q.HoursAgo <= 0 {
		idle = s.opts.Cooldown
	}

	now := s.Now().UTC()
	list, err := s.store.ListStale(ctx, orders.StaleQuery{
		CallStatuses:    []orders.CallStatus{orders.CallStatusNoAnswer, orders.CallStatusFailed},
		ExcludeStatuses: []orders.Status{orders.StatusConfirmed, orders.StatusDeclined, orders.StatusExpired},
		UpdatedBefore:   now.Add(-idle),
		CreatedAfter:    now.Add(-s.opts.Ceiling),
		Limit:           q.Limit,
	})
	if err != nil {
		return Candidates{}, fmt.Errorf("list stale: %w", err)
	}

	out := Candidates{Success: true, Orders: []Candidate{}, Timestamp: now}
	for _, o := range list {
		tz := o.Timezone
		if tz == "" {
			tz = s.opts.DefaultTimezone
		}
		if !s.withinCallingHours(now, tz) {
			continue
		}
		out.Orders = append(out.Orders, newCandidate(o, tz, now))
	}
	out.Count = len(out.Orders)
	metrics.RetryCandidates(out.Count)
	s.log.InfoContext(ctx, "retry candidates", "stale", len(list), "callable", out.Count)
	return out, nil
}

func (s *Sweep) withinCallingHours(now time.Time, tz string) bool {
	hour := now.Hour()
	if loc, err := time.LoadLocation(tz); err == nil {
		hour = now.In(loc).Hour()
	} else {
		s.log.Warn("unknown shop timezone, using UTC", "timezone", tz, "err", err)
	}
	return hour >= s.opts.CallingHours.From && hour <= s.opts.CallingHours.To
}

func newCandidate(o orders.Order, tz string, now time.Time) Candidate {
	c := Candidate{
		ID:                   o.ID,
		InternalOrderNumber:  o.InternalOrderNumber,
		Phone:                o.CustomerPhone,
		Name:                 o.CustomerName,
		ShopDomain:           o.ShopDomain,
		CallStatus:           o.CallStatus,
		Status:               o.Status,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		CallStartedAt:        o.CallStartedAt,
		HoursSinceLastUpdate: math.Round(now.Sub(o.UpdatedAt).Hours()*10) / 10,
		ShopTimezone:         tz,
	}
	if o.CallStartedAt != nil {
		c.EstimatedRetries = int(o.CallStartedAt.Sub(o.CreatedAt) / retryInterval)
	}
	return c
}

// Act records the sweep's decision for one order.
func (s *Sweep) Act(ctx context.Context, orderID string, action Action, actor string) (ActionResult, error) {
	if orderID == "" {
		return ActionResult{}, fmt.Errorf("%w: order id is required", orders.ErrInvalidInput)
	}

	now := s.Now().UTC()
	var (
		t  orders.Transition
		ch = orders.Changes{LastEventAt: orders.Ptr(now), UpdatedAt: now}
	)
	switch action {
	case ActionRetryAttempted:
		t = orders.TransitionRetryAttempted
		ch.CallStartedAt = orders.Ptr(now)
		ch.RetryCount = orders.Ptr(0)
	case ActionMarkExpired:
		t = orders.TransitionMarkExpired
		ch.ExpiresAt = orders.Ptr(now)
	default:
		return ActionResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	o, err := s.store.Apply(ctx, orderID, t, ch)
	if err != nil {
		return ActionResult{}, fmt.Errorf("%s %s: %w", action, orderID, err)
	}
	s.log.InfoContext(ctx, "retry action applied", "order_id", orderID, "action", action, "status", o.Status)

	if s.audit != nil {
		if err := s.audit.Record(ctx, audit.Event{
			ShopDomain: o.ShopDomain,
			OrderID:    o.ID,
			CallUUID:   o.CallUUID,
			Type:       audit.EventTypeRetryAction,
			Actor:      actor,
			Message:    string(action),
		}, nil); err != nil {
			s.log.WarnContext(ctx, "audit append failed", "order_id", orderID, "err", err)
		}
	}

	return ActionResult{Success: true, OrderID: o.ID, Action: action, UpdatedAt: o.UpdatedAt}, nil
}
