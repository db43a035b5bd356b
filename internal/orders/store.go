package orders

import (
	"context"
	"time"
)

// Store is the persistence contract for confirmation orders.
//
// Rules:
// - Every state change goes through Apply/ApplyByCallUUID with a Transition;
//   implementations must guard on the transition's source states atomically.
// - ApplyByCallUUID matching zero rows is not an error.
type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	GetByCallUUID(ctx context.Context, callUUID string) (Order, error)

	// Apply returns ErrNotFound when the order is missing and ErrConflict when
	// the guard did not match.
	Apply(ctx context.Context, id string, t Transition, ch Changes) (Order, error)
	// ApplyByCallUUID returns the number of rows changed.
	ApplyByCallUUID(ctx context.Context, callUUID string, t Transition, ch Changes) (int64, error)

	ListPending(ctx context.Context, limit int) ([]Order, error)
	ListStale(ctx context.Context, q StaleQuery) ([]Order, error)
}

// ShopStore resolves merchant shops.
type ShopStore interface {
	GetShop(ctx context.Context, domain string) (Shop, error)
	UpsertShop(ctx context.Context, s Shop) error
}

// Changes are the non-state columns written together with a transition.
// IfRetryCount is an extra guard, not a write.
type Changes struct {
	CallUUID       *string
	DTMFResponse   *string
	RetryCount     *int
	IfRetryCount   *int
	AddCallAttempt bool

	CallStartedAt *time.Time
	ConfirmedAt   *time.Time
	DeclinedAt    *time.Time
	LastEventAt   *time.Time
	ExpiresAt     *time.Time

	UpdatedAt time.Time
}

// apply mutates o in place; used by the in-memory store.
func (ch Changes) apply(o *Order) {
	if ch.CallUUID != nil {
		o.CallUUID = *ch.CallUUID
	}
	if ch.DTMFResponse != nil {
		o.DTMFResponse = *ch.DTMFResponse
	}
	if ch.RetryCount != nil {
		o.RetryCount = *ch.RetryCount
	}
	if ch.AddCallAttempt {
		o.CallAttempts++
	}
	if ch.CallStartedAt != nil {
		o.CallStartedAt = timePtr(*ch.CallStartedAt)
	}
	if ch.ConfirmedAt != nil {
		o.ConfirmedAt = timePtr(*ch.ConfirmedAt)
	}
	if ch.DeclinedAt != nil {
		o.DeclinedAt = timePtr(*ch.DeclinedAt)
	}
	if ch.LastEventAt != nil {
		o.LastEventAt = timePtr(*ch.LastEventAt)
	}
	if ch.ExpiresAt != nil {
		o.ExpiresAt = timePtr(*ch.ExpiresAt)
	}
	if !ch.UpdatedAt.IsZero() {
		o.UpdatedAt = ch.UpdatedAt
	}
}

// StaleQuery selects orders whose last call leg failed and that have been
// idle for a while.
type StaleQuery struct {
	CallStatuses    []CallStatus
	ExcludeStatuses []Status
	UpdatedBefore   time.Time
	CreatedAfter    time.Time
	Limit           int
}

// StatusCounts is a per-status tally for one shop.
type StatusCounts map[Status]int

func timePtr(t time.Time) *time.Time { return &t }

// Ptr returns a pointer to v; convenient for building Changes.
func Ptr[T any](v T) *T { return &v }
