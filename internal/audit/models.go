package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - order_id is required; shop_domain is copied from the order when known.
// - actor capture is best-effort; do not block call flows on audit failures.
//
// Storage (Postgres): table audit_events, INSERT-only.
type Event struct {
	ID         string `json:"id" db:"id"`
	ShopDomain string `json:"shop_domain,omitempty" db:"shop_domain"`
	OrderID    string `json:"order_id" db:"order_id"`
	CallUUID   string `json:"call_uuid,omitempty" db:"call_uuid"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Actor is the service token subject or "provider" for webhooks.
	Actor string `json:"actor,omitempty" db:"actor"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeOrderCreated  EventType = "order_created"
	EventTypeCallInitiated EventType = "call_initiated"
	EventTypeCallOutcome   EventType = "call_outcome"
	EventTypeRetryAction   EventType = "retry_action"
)

// ActorProvider marks events caused by voice provider callbacks.
const ActorProvider = "provider"
